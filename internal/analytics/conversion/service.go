// Package conversion computes empirical stage-conversion priors from pipeline
// history. The output feeds both deal scoring and forecasting.
package conversion

import (
	"context"
	"fmt"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repo is the persistence surface the analyzer needs.
type Repo interface {
	repository.LeadReader
	repository.PriorWriter
}

// Service is the historical conversion analyzer.
type Service struct {
	repo          Repo
	log           *logger.Logger
	analysisDays  int
	minSampleSize int
	now           func() time.Time
}

// New creates the analyzer. analysisDays sets the default window length when
// a run does not specify one.
func New(repo Repo, log *logger.Logger, analysisDays, minSampleSize int) *Service {
	return &Service{
		repo:          repo,
		log:           log.WithComponent("conversion_analyzer"),
		analysisDays:  analysisDays,
		minSampleSize: minSampleSize,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RunParams narrows an analyzer run. A zero window defaults to the configured
// analysis length ending now.
type RunParams struct {
	WindowStart time.Time
	WindowEnd   time.Time
	UserID      uuid.UUID
	PipelineID  uuid.UUID
}

// RunResult reports the outcome of one analyzer run. Skipped counts groups
// whose persistence failed; those are logged and do not abort the batch.
type RunResult struct {
	Groups  int `json:"groups"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type groupKey struct {
	stageID    uuid.UUID
	pipelineID uuid.UUID
	userID     uuid.UUID
}

type groupStats struct {
	size     int
	won      int
	dwellSum float64
	dwellN   int
}

// Run recomputes conversion priors for every (stage, pipeline, user) group in
// the window. Re-runs upsert on the natural key and never duplicate rows.
func (s *Service) Run(ctx context.Context, params RunParams) (RunResult, error) {
	now := s.now()

	windowEnd := params.WindowEnd
	if windowEnd.IsZero() {
		windowEnd = now
	}
	windowStart := params.WindowStart
	if windowStart.IsZero() {
		windowStart = windowEnd.AddDate(0, 0, -s.analysisDays)
	}
	if !windowEnd.After(windowStart) {
		return RunResult{}, fmt.Errorf("analysis window end %s not after start %s", windowEnd, windowStart)
	}

	leads, err := s.repo.ListLeadsInWindow(ctx, windowStart, windowEnd, repository.LeadFilter{
		UserID:     params.UserID,
		PipelineID: params.PipelineID,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("list leads: %w", err)
	}

	wonStages, err := s.repo.WonStageIDs(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("load won stages: %w", err)
	}

	groups := make(map[groupKey]*groupStats)
	for _, lead := range leads {
		key := groupKey{stageID: lead.StageID, pipelineID: lead.PipelineID, userID: lead.UserID}
		stats := groups[key]
		if stats == nil {
			stats = &groupStats{}
			groups[key] = stats
		}

		stats.size++
		if isWon(lead, wonStages) {
			stats.won++
		}
		if days := lead.DaysInPipeline(now); days > 0 {
			stats.dwellSum += days
			stats.dwellN++
		}
	}

	var result RunResult
	for key, stats := range groups {
		if stats.size < s.minSampleSize {
			continue // insufficient statistical basis, never materialized
		}
		result.Groups++

		inserted, err := s.repo.UpsertHistoricalConversion(ctx, repository.UpsertHistoricalConversionParams{
			StageID:            key.stageID,
			PipelineID:         key.pipelineID,
			UserID:             key.userID,
			PeriodStart:        windowStart,
			PeriodEnd:          windowEnd,
			ConversionRate:     conversionRate(stats.won, stats.size),
			AverageTimeInStage: averageDwell(stats.dwellSum, stats.dwellN),
			SampleSize:         stats.size,
		})
		if err != nil {
			s.log.ItemError("conversion_refresh", key.stageID.String(), err)
			result.Skipped++
			continue
		}
		if inserted {
			result.New++
		} else {
			result.Updated++
		}
	}

	s.log.BatchOutcome("conversion_refresh", result.Groups, result.New+result.Updated, result.Skipped)
	return result, nil
}

func isWon(lead domain.Lead, wonStages map[uuid.UUID]bool) bool {
	return lead.Status == domain.LeadStatusWon || wonStages[lead.StageID]
}

func conversionRate(won, size int) decimal.Decimal {
	if size == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(won)).
		Div(decimal.NewFromInt(int64(size))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

func averageDwell(sum float64, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(sum / float64(n)).Round(2)
}

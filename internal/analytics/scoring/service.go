// Package scoring computes composite deal scores and win probabilities for
// open leads from engagement, velocity, value, and historical priors.
package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/platform/apperr"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// Sub-score weights for the composite score. These are fixed policy
	// constants and must sum to 1.
	weightEngagement = 0.30
	weightVelocity   = 0.20
	weightValue      = 0.20
	weightHistorical = 0.30

	// Win probability blends the current stage's historical rate with the
	// lead's confidence-weighted pattern score. Tuned independently from the
	// composite weights.
	winProbStageWeight   = 0.70
	winProbPatternWeight = 0.30

	// neutralScore is the midpoint low-confidence signals are pulled toward.
	neutralScore = 50.0

	// patternPseudoCount controls how strongly small samples regress to the
	// neutral midpoint when weighting historical rates by confidence.
	patternPseudoCount = 10

	// scoreBatchConcurrency bounds parallel per-lead computation.
	scoreBatchConcurrency = 4

	// engagementWindowDays is the lookback for the recent-interaction count.
	engagementWindowDays = 30
)

// Factor names the four sub-scores for diagnostics.
type Factor string

const (
	FactorEngagement Factor = "engagement"
	FactorVelocity   Factor = "velocity"
	FactorValue      Factor = "value"
	FactorHistorical Factor = "historical_pattern"
)

// Repo is the persistence surface the scoring engine needs.
type Repo interface {
	repository.LeadReader
	repository.EngagementReader
	repository.PriorReader
	repository.ScoreReader
	repository.ScoreWriter
}

// Service is the deal scoring engine.
type Service struct {
	repo           Repo
	log            *logger.Logger
	minSampleSize  int
	stalenessHours int
	now            func() time.Time
}

// New creates the scoring engine.
func New(repo Repo, log *logger.Logger, minSampleSize, stalenessHours int) *Service {
	return &Service{
		repo:           repo,
		log:            log.WithComponent("deal_scoring"),
		minSampleSize:  minSampleSize,
		stalenessHours: stalenessHours,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ScoreData is one computed score with its derived diagnostics.
type ScoreData struct {
	LeadID                 uuid.UUID       `json:"lead_id"`
	Score                  decimal.Decimal `json:"score"`
	WinProbability         decimal.Decimal `json:"win_probability"`
	EngagementScore        decimal.Decimal `json:"engagement_score"`
	VelocityScore          decimal.Decimal `json:"velocity_score"`
	ValueScore             decimal.Decimal `json:"value_score"`
	HistoricalPatternScore decimal.Decimal `json:"historical_pattern_score"`
	GeneratedAt            time.Time       `json:"generated_at"`
	Priority               domain.Level    `json:"priority"`
	WinProbabilityLevel    domain.Level    `json:"win_probability_level"`
	DominantFactor         Factor          `json:"dominant_factor"`
	WeakestFactor          Factor          `json:"weakest_factor"`
}

// BatchItem is the per-lead outcome of a batch scoring run.
type BatchItem struct {
	LeadID  uuid.UUID  `json:"lead_id"`
	Success bool       `json:"success"`
	Data    *ScoreData `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// BatchResult is the batch result shape returned to callers.
type BatchResult struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Items      []BatchItem `json:"items"`
}

// ScoreParams narrows a batch scoring run. Zero-value fields are ignored.
type ScoreParams struct {
	UserID     uuid.UUID
	PipelineID uuid.UUID
}

// ScoreAll scores every active lead matching the filters. Individual lead
// failures are recorded per item and never abort the batch.
func (s *Service) ScoreAll(ctx context.Context, params ScoreParams) (BatchResult, error) {
	leads, err := s.repo.ListOpenLeads(ctx, repository.LeadFilter{
		UserID:     params.UserID,
		PipelineID: params.PipelineID,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("list open leads: %w", err)
	}

	openValues, err := s.repo.ListOpenLeadValues(ctx, params.PipelineID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list open lead values: %w", err)
	}

	priorCache := newPriorCache(s.repo, s.minSampleSize)

	items := make([]BatchItem, len(leads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreBatchConcurrency)
	for i, lead := range leads {
		g.Go(func() error {
			data, err := s.scoreOne(gctx, lead, openValues, priorCache)
			if err != nil {
				s.log.ItemError("score_refresh", lead.ID.String(), err)
				items[i] = BatchItem{LeadID: lead.ID, Success: false, Error: err.Error()}
				return nil
			}
			items[i] = BatchItem{LeadID: lead.ID, Success: true, Data: data}
			return nil
		})
	}
	_ = g.Wait() // per-item errors are captured in items, never returned

	result := BatchResult{Total: len(items), Items: items}
	for _, item := range items {
		if item.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	s.log.BatchOutcome("score_refresh", result.Total, result.Successful, result.Failed)
	return result, nil
}

// ScoreLead forces a recompute for a single lead.
func (s *Service) ScoreLead(ctx context.Context, leadID uuid.UUID) (*ScoreData, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}

	openValues, err := s.repo.ListOpenLeadValues(ctx, lead.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("list open lead values: %w", err)
	}

	return s.scoreOne(ctx, lead, openValues, newPriorCache(s.repo, s.minSampleSize))
}

// CurrentScore returns the latest stored score for a lead plus its staleness.
type CurrentScore struct {
	ScoreData
	Stale bool `json:"stale"`
}

// GetCurrentScore returns the most recent persisted score and whether it has
// exceeded the staleness threshold.
func (s *Service) GetCurrentScore(ctx context.Context, leadID uuid.UUID) (*CurrentScore, error) {
	score, err := s.repo.GetLatestDealScore(ctx, leadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("no score recorded for lead")
		}
		return nil, err
	}

	data := scoreDataFromRow(score)
	return &CurrentScore{
		ScoreData: data,
		Stale:     s.IsStale(score.GeneratedAt),
	}, nil
}

// IsStale reports whether a score generated at the given time is older than
// the configured staleness threshold.
func (s *Service) IsStale(generatedAt time.Time) bool {
	return s.now().Sub(generatedAt) > time.Duration(s.stalenessHours)*time.Hour
}

func (s *Service) scoreOne(ctx context.Context, lead domain.Lead, openValues []decimal.Decimal, priors *priorCache) (*ScoreData, error) {
	if lead.Value.IsNegative() {
		return nil, fmt.Errorf("lead %s has negative value %s", lead.ID, lead.Value)
	}

	now := s.now()

	signals, err := s.repo.GetEngagementSignals(ctx, lead.ID, now.AddDate(0, 0, -engagementWindowDays))
	if err != nil {
		return nil, fmt.Errorf("engagement signals: %w", err)
	}

	pipelinePriors, err := priors.forPipeline(ctx, lead.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("load priors: %w", err)
	}

	engagement := scoreEngagement(signals, now)
	velocity := scoreVelocity(lead, pipelinePriors, now)
	value := scoreValue(lead.Value, openValues)
	historical := scoreHistoricalPattern(lead, pipelinePriors)

	composite := weightEngagement*engagement +
		weightVelocity*velocity +
		weightValue*value +
		weightHistorical*historical

	winProbability := computeWinProbability(lead, pipelinePriors, historical)

	data := &ScoreData{
		LeadID:                 lead.ID,
		Score:                  toScore(composite),
		WinProbability:         toScore(winProbability),
		EngagementScore:        toScore(engagement),
		VelocityScore:          toScore(velocity),
		ValueScore:             toScore(value),
		HistoricalPatternScore: toScore(historical),
		GeneratedAt:            now,
	}
	data.Priority = domain.ClassifyPriority(data.Score)
	data.WinProbabilityLevel = domain.ClassifyWinProbability(data.WinProbability)
	data.DominantFactor, data.WeakestFactor = factorExtremes(data)

	if _, err := s.repo.InsertDealScore(ctx, repository.InsertDealScoreParams{
		LeadID:                 data.LeadID,
		Score:                  data.Score,
		WinProbability:         data.WinProbability,
		EngagementScore:        data.EngagementScore,
		VelocityScore:          data.VelocityScore,
		ValueScore:             data.ValueScore,
		HistoricalPatternScore: data.HistoricalPatternScore,
		GeneratedAt:            data.GeneratedAt,
	}); err != nil {
		return nil, fmt.Errorf("persist score: %w", err)
	}

	return data, nil
}

// scoreEngagement combines interaction frequency and recency signals.
func scoreEngagement(signals domain.EngagementSignals, now time.Time) float64 {
	if signals.LastActivityAt == nil && signals.InteractionsLast30Days == 0 {
		return 20 // never touched
	}

	score := 10.0

	interactions := signals.InteractionsLast30Days
	if interactions > 10 {
		interactions = 10
	}
	score += float64(interactions) * 5

	if signals.LastActivityAt != nil {
		hours := now.Sub(*signals.LastActivityAt).Hours()
		switch {
		case hours <= 24:
			score += 40
		case hours <= 72:
			score += 30
		case hours <= 24*7:
			score += 20
		case hours <= 24*30:
			score += 10
		}
	}

	return clamp(score)
}

// scoreVelocity compares the lead's time in its current stage to the
// historical average for that stage. Faster movement scores higher.
func scoreVelocity(lead domain.Lead, priors *pipelinePriors, now time.Time) float64 {
	avgDays := priors.averageStageDays(lead.StageID)
	if avgDays <= 0 {
		return neutralScore // no historical basis
	}

	daysInStage := now.Sub(lead.StageEnteredAt).Hours() / 24
	if daysInStage < 0 {
		daysInStage = 0
	}

	ratio := daysInStage / avgDays
	switch {
	case ratio <= 0.5:
		return 90
	case ratio <= 0.75:
		return 75
	case ratio <= 1.0:
		return 60
	case ratio <= 1.5:
		return 40
	case ratio <= 2.0:
		return 25
	default:
		return 10
	}
}

// scoreValue ranks the lead's value against the distribution of open-lead
// values (percentile rank, ties counted half).
func scoreValue(value decimal.Decimal, openValues []decimal.Decimal) float64 {
	if len(openValues) < 2 {
		return neutralScore // no distribution to rank against
	}

	below, equal := 0, 0
	for _, v := range openValues {
		switch v.Cmp(value) {
		case -1:
			below++
		case 0:
			equal++
		}
	}

	percentile := (float64(below) + float64(equal)/2) / float64(len(openValues))
	return clamp(percentile * 100)
}

// scoreHistoricalPattern uses the conversion prior for the lead's
// (stage, pipeline, user) group, regressed toward the neutral midpoint when
// the sample is small.
func scoreHistoricalPattern(lead domain.Lead, priors *pipelinePriors) float64 {
	rate, samples, ok := priors.groupRate(lead.StageID, lead.UserID)
	if !ok {
		return neutralScore
	}
	return confidenceWeight(rate, samples)
}

// computeWinProbability blends the current stage's overall historical rate
// with the lead's pattern score. Kept separate from the composite score so
// the two policies can be tuned independently.
func computeWinProbability(lead domain.Lead, priors *pipelinePriors, patternScore float64) float64 {
	stageRate, samples, ok := priors.stageRate(lead.StageID)
	if !ok {
		return clamp(winProbStageWeight*neutralScore + winProbPatternWeight*patternScore)
	}
	weighted := confidenceWeight(stageRate, samples)
	return clamp(winProbStageWeight*weighted + winProbPatternWeight*patternScore)
}

// confidenceWeight pulls a rate toward the neutral midpoint in proportion to
// how small its sample is.
func confidenceWeight(rate float64, samples int) float64 {
	n := float64(samples)
	return clamp((rate*n + neutralScore*patternPseudoCount) / (n + patternPseudoCount))
}

func factorExtremes(data *ScoreData) (dominant, weakest Factor) {
	factors := []struct {
		name  Factor
		value decimal.Decimal
	}{
		{FactorEngagement, data.EngagementScore},
		{FactorVelocity, data.VelocityScore},
		{FactorValue, data.ValueScore},
		{FactorHistorical, data.HistoricalPatternScore},
	}

	dominant, weakest = factors[0].name, factors[0].name
	maxVal, minVal := factors[0].value, factors[0].value
	for _, f := range factors[1:] {
		if f.value.GreaterThan(maxVal) {
			maxVal, dominant = f.value, f.name
		}
		if f.value.LessThan(minVal) {
			minVal, weakest = f.value, f.name
		}
	}
	return dominant, weakest
}

func scoreDataFromRow(row repository.DealScore) ScoreData {
	data := ScoreData{
		LeadID:                 row.LeadID,
		Score:                  row.Score,
		WinProbability:         row.WinProbability,
		EngagementScore:        row.EngagementScore,
		VelocityScore:          row.VelocityScore,
		ValueScore:             row.ValueScore,
		HistoricalPatternScore: row.HistoricalPatternScore,
		GeneratedAt:            row.GeneratedAt,
	}
	data.Priority = domain.ClassifyPriority(data.Score)
	data.WinProbabilityLevel = domain.ClassifyWinProbability(data.WinProbability)
	data.DominantFactor, data.WeakestFactor = factorExtremes(&data)
	return data
}

func clamp(value float64) float64 {
	return math.Min(100, math.Max(0, value))
}

func toScore(value float64) decimal.Decimal {
	return decimal.NewFromFloat(clamp(value)).Round(2)
}

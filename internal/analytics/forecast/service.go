// Package forecast aggregates open pipeline into period forecasts with
// best-case and worst-case scenario bands, backed by historical conversion
// priors.
package forecast

import (
	"context"
	"fmt"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/platform/apperr"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// Confidence score composition: historical depth contributes up to 70
	// points, prior freshness up to 30.
	confidenceSampleCap    = 70
	confidenceSamplesFull  = 100 // samples at which the depth component maxes out
	confidenceRecencyFresh = 30  // prior refreshed within 30 days
	confidenceRecencyOK    = 20  // within 90 days
	confidenceRecencyOld   = 10  // within 180 days

	trendMonthsBack = 6
)

// Repo is the persistence surface the forecast engine needs.
type Repo interface {
	repository.LeadReader
	repository.PriorReader
	repository.ForecastReader
	repository.ForecastWriter
}

// Service is the forecast calculation engine.
type Service struct {
	repo             Repo
	log              *logger.Logger
	minSampleSize    int
	worstCaseFloor   decimal.Decimal // fraction, e.g. 0.10
	defaultStageRate decimal.Decimal // fraction, e.g. 0.30
	now              func() time.Time
}

// New creates the forecast engine. worstCaseFloor and defaultStageRate are
// fractions in [0, 1] applied when no historical prior exists.
func New(repo Repo, log *logger.Logger, minSampleSize int, worstCaseFloor, defaultStageRate float64) *Service {
	return &Service{
		repo:             repo,
		log:              log.WithComponent("forecast_engine"),
		minSampleSize:    minSampleSize,
		worstCaseFloor:   decimal.NewFromFloat(worstCaseFloor),
		defaultStageRate: decimal.NewFromFloat(defaultStageRate),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GenerateParams identifies the forecast to compute. A zero PeriodStart
// defaults to the current period.
type GenerateParams struct {
	UserID      uuid.UUID
	TeamID      uuid.UUID
	PeriodType  domain.PeriodType
	PeriodStart time.Time
}

// Generate computes and upserts the forecast for its period key. Re-running
// replaces the existing row; there is never more than one per key.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (repository.SalesForecast, error) {
	if params.UserID == uuid.Nil {
		return repository.SalesForecast{}, apperr.Validation("user id is required")
	}
	if _, err := domain.ParsePeriodType(string(params.PeriodType)); err != nil {
		return repository.SalesForecast{}, apperr.Validation(err.Error())
	}

	periodStart := params.PeriodStart
	if periodStart.IsZero() {
		periodStart = domain.PeriodStart(s.now(), params.PeriodType)
	}
	periodEnd := domain.PeriodEnd(periodStart, params.PeriodType)

	leads, err := s.repo.ListOpenLeadsForForecast(ctx, params.UserID, params.TeamID)
	if err != nil {
		return repository.SalesForecast{}, fmt.Errorf("list open leads: %w", err)
	}

	scenarios, confidence, err := s.computeScenarios(ctx, leads)
	if err != nil {
		return repository.SalesForecast{}, err
	}

	forecast, err := s.repo.UpsertSalesForecast(ctx, repository.UpsertSalesForecastParams{
		UserID:      params.UserID,
		TeamID:      params.TeamID,
		PeriodType:  params.PeriodType,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		// The probability-weighted projection is the headline forecast value
		// that actuals are later compared against.
		ForecastValue:    scenarios.Weighted.Value,
		WeightedForecast: scenarios.Weighted.Value,
		BestCase:         scenarios.BestCase.Value,
		WorstCase:        scenarios.WorstCase.Value,
		ConfidenceScore:  confidence,
	})
	if err != nil {
		return repository.SalesForecast{}, fmt.Errorf("upsert forecast: %w", err)
	}

	s.log.Info("forecast generated",
		"user_id", params.UserID.String(),
		"period_type", string(params.PeriodType),
		"period_start", periodStart.Format(time.RFC3339),
		"weighted", scenarios.Weighted.Value.String(),
		"open_leads", len(leads),
	)
	return forecast, nil
}

// Scenarios returns the scenario bands for a user's current open pipeline
// without persisting a forecast.
func (s *Service) Scenarios(ctx context.Context, userID, teamID uuid.UUID) (ScenarioSet, error) {
	if userID == uuid.Nil {
		return ScenarioSet{}, apperr.Validation("user id is required")
	}

	leads, err := s.repo.ListOpenLeadsForForecast(ctx, userID, teamID)
	if err != nil {
		return ScenarioSet{}, fmt.Errorf("list open leads: %w", err)
	}

	scenarios, _, err := s.computeScenarios(ctx, leads)
	return scenarios, err
}

func (s *Service) computeScenarios(ctx context.Context, leads []domain.Lead) (ScenarioSet, decimal.Decimal, error) {
	priors, err := s.loadPriors(ctx, leads)
	if err != nil {
		return ScenarioSet{}, decimal.Zero, err
	}

	scenarios := s.buildScenarioSet(leads, priors)
	confidence := s.confidenceScore(priors)
	return scenarios, confidence, nil
}

// confidenceScore grows with the depth and freshness of the priors backing
// the forecast.
func (s *Service) confidenceScore(priors *priorIndex) decimal.Decimal {
	samples := priors.totalSamples()
	depth := float64(samples) * confidenceSampleCap / confidenceSamplesFull
	if depth > confidenceSampleCap {
		depth = confidenceSampleCap
	}

	recency := 0
	if latest := priors.latestPeriodEnd(); !latest.IsZero() {
		age := s.now().Sub(latest)
		switch {
		case age <= 30*24*time.Hour:
			recency = confidenceRecencyFresh
		case age <= 90*24*time.Hour:
			recency = confidenceRecencyOK
		case age <= 180*24*time.Hour:
			recency = confidenceRecencyOld
		}
	}

	return decimal.NewFromFloat(depth + float64(recency)).Round(2)
}

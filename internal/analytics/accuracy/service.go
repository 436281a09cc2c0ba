// Package accuracy closes out ended forecast periods by recording realized
// closed-won value and classifying how accurate each forecast was.
package accuracy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/platform/apperr"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repo is the persistence surface the accuracy tracker needs.
type Repo interface {
	repository.LeadReader
	repository.ForecastReader
	repository.ActualReader
	repository.ActualWriter
}

// Service is the forecast accuracy tracker.
type Service struct {
	repo      Repo
	log       *logger.Logger
	graceDays int
	now       func() time.Time
}

// New creates the tracker. graceDays delays close-out after a period ends so
// late data can settle.
func New(repo Repo, log *logger.Logger, graceDays int) *Service {
	return &Service{
		repo:      repo,
		log:       log.WithComponent("accuracy_tracker"),
		graceDays: graceDays,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CloseResult is the outcome of closing one forecast.
type CloseResult struct {
	ForecastID         uuid.UUID            `json:"forecast_id"`
	Success            bool                 `json:"success"`
	AlreadyClosed      bool                 `json:"already_closed,omitempty"`
	ActualValue        decimal.Decimal      `json:"actual_value"`
	Variance           decimal.Decimal      `json:"variance"`
	VariancePercentage decimal.Decimal      `json:"variance_percentage"`
	AccuracyLevel      domain.AccuracyLevel `json:"accuracy_level,omitempty"`
	Error              string               `json:"error,omitempty"`
}

// RunStats aggregates a close-out batch over its successes only.
type RunStats struct {
	HighCount            int             `json:"high_count"`
	ModerateCount        int             `json:"moderate_count"`
	PoorCount            int             `json:"poor_count"`
	MeanAbsVariancePct   decimal.Decimal `json:"mean_abs_variance_pct"`
	AlreadyClosedSkipped int             `json:"already_closed_skipped"`
}

// BatchResult is the batch result shape returned to callers.
type BatchResult struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Items      []CloseResult `json:"items"`
	Stats      RunStats      `json:"aggregate_stats"`
}

// Close records the actual for one explicitly targeted forecast. Closing a
// forecast that already has an actual is a no-op, not an error.
func (s *Service) Close(ctx context.Context, forecastID uuid.UUID) (CloseResult, error) {
	forecast, err := s.repo.GetForecastByID(ctx, forecastID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CloseResult{}, apperr.NotFound("forecast not found")
		}
		return CloseResult{}, err
	}

	if forecast.PeriodEnd.After(s.cutoff()) {
		return CloseResult{}, apperr.Validation("forecast period has not ended (grace period applies)")
	}

	return s.closeForecast(ctx, forecast)
}

// CloseEligible closes every forecast whose period ended at least the grace
// period ago and which has no actual yet. Per-forecast failures are recorded
// and do not abort the batch.
func (s *Service) CloseEligible(ctx context.Context) (BatchResult, error) {
	forecasts, err := s.repo.ListEligibleForecasts(ctx, s.cutoff())
	if err != nil {
		return BatchResult{}, fmt.Errorf("list eligible forecasts: %w", err)
	}

	result := BatchResult{Total: len(forecasts), Items: make([]CloseResult, 0, len(forecasts))}
	absPctSum := decimal.Zero

	for _, forecast := range forecasts {
		item, err := s.closeForecast(ctx, forecast)
		if err != nil {
			s.log.ItemError("accuracy_close", forecast.ID.String(), err)
			result.Items = append(result.Items, CloseResult{
				ForecastID: forecast.ID,
				Error:      err.Error(),
			})
			result.Failed++
			continue
		}

		result.Items = append(result.Items, item)
		if item.AlreadyClosed {
			result.Stats.AlreadyClosedSkipped++
			continue
		}

		result.Successful++
		absPctSum = absPctSum.Add(item.VariancePercentage.Abs())
		switch item.AccuracyLevel {
		case domain.AccuracyHigh:
			result.Stats.HighCount++
		case domain.AccuracyModerate:
			result.Stats.ModerateCount++
		default:
			result.Stats.PoorCount++
		}
	}

	if result.Successful > 0 {
		result.Stats.MeanAbsVariancePct = absPctSum.
			Div(decimal.NewFromInt(int64(result.Successful))).
			Round(2)
	}

	s.log.BatchOutcome("accuracy_close", result.Total, result.Successful, result.Failed)
	return result, nil
}

// Summary returns the dashboard comparison metrics over closed forecasts.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (repository.AccuracySummary, error) {
	return s.repo.GetAccuracySummary(ctx, userID)
}

func (s *Service) closeForecast(ctx context.Context, forecast repository.SalesForecast) (CloseResult, error) {
	exists, err := s.repo.HasActual(ctx, forecast.ID)
	if err != nil {
		return CloseResult{}, fmt.Errorf("check existing actual: %w", err)
	}
	if exists {
		s.log.Info("forecast already has actuals", "forecast_id", forecast.ID.String())
		return CloseResult{ForecastID: forecast.ID, Success: true, AlreadyClosed: true}, nil
	}

	actualValue, err := s.repo.SumClosedWonValue(ctx, forecast.UserID, forecast.TeamID, forecast.PeriodStart, forecast.PeriodEnd)
	if err != nil {
		return CloseResult{}, fmt.Errorf("sum closed-won value: %w", err)
	}

	variance := actualValue.Sub(forecast.ForecastValue)
	variancePct := decimal.Zero
	if !forecast.ForecastValue.IsZero() {
		variancePct = variance.
			Div(forecast.ForecastValue).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	if _, err := s.repo.InsertForecastActual(ctx, repository.InsertForecastActualParams{
		ForecastID:         forecast.ID,
		ActualValue:        actualValue,
		Variance:           variance,
		VariancePercentage: variancePct,
		ClosedAt:           s.now(),
	}); err != nil {
		return CloseResult{}, fmt.Errorf("insert actual: %w", err)
	}

	return CloseResult{
		ForecastID:         forecast.ID,
		Success:            true,
		ActualValue:        actualValue,
		Variance:           variance,
		VariancePercentage: variancePct,
		AccuracyLevel:      domain.ClassifyAccuracy(variancePct),
	}, nil
}

func (s *Service) cutoff() time.Time {
	return s.now().AddDate(0, 0, -s.graceDays)
}

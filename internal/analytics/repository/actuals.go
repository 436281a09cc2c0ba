package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForecastActual records the realized outcome of one forecast. Rows are
// insert-only; the latest closed_at is the operative actual.
type ForecastActual struct {
	ID                 uuid.UUID
	ForecastID         uuid.UUID
	ActualValue        decimal.Decimal
	Variance           decimal.Decimal
	VariancePercentage decimal.Decimal
	ClosedAt           time.Time
}

// InsertForecastActualParams carries one realized outcome.
type InsertForecastActualParams struct {
	ForecastID         uuid.UUID
	ActualValue        decimal.Decimal
	Variance           decimal.Decimal
	VariancePercentage decimal.Decimal
	ClosedAt           time.Time
}

// InsertForecastActual records the outcome for a forecast.
func (r *Repository) InsertForecastActual(ctx context.Context, params InsertForecastActualParams) (ForecastActual, error) {
	var a ForecastActual
	err := r.pool.QueryRow(ctx, `
		INSERT INTO forecast_actuals (
			forecast_id, actual_value, variance, variance_percentage, closed_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, forecast_id, actual_value, variance, variance_percentage, closed_at
	`,
		params.ForecastID, params.ActualValue, params.Variance,
		params.VariancePercentage, params.ClosedAt,
	).Scan(&a.ID, &a.ForecastID, &a.ActualValue, &a.Variance, &a.VariancePercentage, &a.ClosedAt)
	if err != nil {
		return ForecastActual{}, err
	}
	return a, nil
}

// HasActual reports whether a forecast already has a recorded outcome.
func (r *Repository) HasActual(ctx context.Context, forecastID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM forecast_actuals WHERE forecast_id = $1)
	`, forecastID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AccuracySummary aggregates forecast-vs-actual comparison metrics across all
// closed forecasts, using the latest actual per forecast.
type AccuracySummary struct {
	ClosedForecasts      int
	AverageAccuracy      decimal.Decimal // mean of |variance_percentage|
	OverForecastedCount  int             // actual below forecast
	UnderForecastedCount int             // actual above forecast
	Within10PctCount     int
}

// GetAccuracySummary computes the reporting comparison metrics consumed by
// dashboards.
func (r *Repository) GetAccuracySummary(ctx context.Context, userID uuid.UUID) (AccuracySummary, error) {
	var s AccuracySummary
	err := r.pool.QueryRow(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (a.forecast_id)
				a.forecast_id, a.variance, a.variance_percentage, f.user_id
			FROM forecast_actuals a
			JOIN sales_forecasts f ON f.id = a.forecast_id
			ORDER BY a.forecast_id, a.closed_at DESC
		)
		SELECT
			COUNT(*),
			COALESCE(AVG(ABS(variance_percentage)), 0),
			COUNT(*) FILTER (WHERE variance < 0),
			COUNT(*) FILTER (WHERE variance > 0),
			COUNT(*) FILTER (WHERE ABS(variance_percentage) <= 10)
		FROM latest
		WHERE ($1::uuid = '00000000-0000-0000-0000-000000000000' OR user_id = $1)
	`, userID).Scan(
		&s.ClosedForecasts, &s.AverageAccuracy,
		&s.OverForecastedCount, &s.UnderForecastedCount, &s.Within10PctCount,
	)
	if err != nil {
		return AccuracySummary{}, err
	}
	return s, nil
}

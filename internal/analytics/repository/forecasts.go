package repository

import (
	"context"
	"errors"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SalesForecast is one forecast row, unique per
// (user, team, period_type, period_start). team_id of uuid.Nil means no team.
type SalesForecast struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	TeamID           uuid.UUID
	PeriodType       domain.PeriodType
	PeriodStart      time.Time
	PeriodEnd        time.Time
	ForecastValue    decimal.Decimal
	WeightedForecast decimal.Decimal
	BestCase         decimal.Decimal
	WorstCase        decimal.Decimal
	ConfidenceScore  decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertSalesForecastParams carries one computed forecast.
type UpsertSalesForecastParams struct {
	UserID           uuid.UUID
	TeamID           uuid.UUID
	PeriodType       domain.PeriodType
	PeriodStart      time.Time
	PeriodEnd        time.Time
	ForecastValue    decimal.Decimal
	WeightedForecast decimal.Decimal
	BestCase         decimal.Decimal
	WorstCase        decimal.Decimal
	ConfidenceScore  decimal.Decimal
}

// UpsertSalesForecast inserts or replaces the forecast for its period key.
// Re-generation updates in place; there is exactly one row per key.
func (r *Repository) UpsertSalesForecast(ctx context.Context, params UpsertSalesForecastParams) (SalesForecast, error) {
	var f SalesForecast
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sales_forecasts (
			user_id, team_id, period_type, period_start, period_end,
			forecast_value, weighted_forecast, best_case, worst_case, confidence_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, team_id, period_type, period_start)
		DO UPDATE SET
			period_end = EXCLUDED.period_end,
			forecast_value = EXCLUDED.forecast_value,
			weighted_forecast = EXCLUDED.weighted_forecast,
			best_case = EXCLUDED.best_case,
			worst_case = EXCLUDED.worst_case,
			confidence_score = EXCLUDED.confidence_score,
			updated_at = NOW()
		RETURNING id, user_id, team_id, period_type, period_start, period_end,
			forecast_value, weighted_forecast, best_case, worst_case, confidence_score,
			created_at, updated_at
	`,
		params.UserID, params.TeamID, params.PeriodType,
		params.PeriodStart, params.PeriodEnd,
		params.ForecastValue, params.WeightedForecast,
		params.BestCase, params.WorstCase, params.ConfidenceScore,
	).Scan(
		&f.ID, &f.UserID, &f.TeamID, &f.PeriodType, &f.PeriodStart, &f.PeriodEnd,
		&f.ForecastValue, &f.WeightedForecast, &f.BestCase, &f.WorstCase,
		&f.ConfidenceScore, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return SalesForecast{}, err
	}
	return f, nil
}

// GetForecastByID returns a single forecast.
func (r *Repository) GetForecastByID(ctx context.Context, id uuid.UUID) (SalesForecast, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, team_id, period_type, period_start, period_end,
			forecast_value, weighted_forecast, best_case, worst_case, confidence_score,
			created_at, updated_at
		FROM sales_forecasts
		WHERE id = $1
	`, id)
	if err != nil {
		return SalesForecast{}, err
	}

	f, err := pgx.CollectExactlyOneRow(rows, scanSalesForecast)
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesForecast{}, ErrNotFound
	}
	return f, err
}

// ListEligibleForecasts returns forecasts whose period ended at or before the
// cutoff and which have no recorded actual yet.
func (r *Repository) ListEligibleForecasts(ctx context.Context, cutoff time.Time) ([]SalesForecast, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.user_id, f.team_id, f.period_type, f.period_start, f.period_end,
			f.forecast_value, f.weighted_forecast, f.best_case, f.worst_case, f.confidence_score,
			f.created_at, f.updated_at
		FROM sales_forecasts f
		WHERE f.period_end <= $1
			AND NOT EXISTS (
				SELECT 1 FROM forecast_actuals a WHERE a.forecast_id = f.id
			)
		ORDER BY f.period_end
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanSalesForecast)
}

// MonthlyTrendPoint aggregates forecasts generated in one calendar month.
type MonthlyTrendPoint struct {
	Month          time.Time
	ForecastCount  int
	TotalForecast  decimal.Decimal
	TotalWeighted  decimal.Decimal
	TotalBestCase  decimal.Decimal
	TotalWorstCase decimal.Decimal
	AvgConfidence  decimal.Decimal
}

// MonthlyForecastTrend returns per-month forecast aggregates for the last
// monthsBack months, oldest first.
func (r *Repository) MonthlyForecastTrend(ctx context.Context, userID uuid.UUID, monthsBack int) ([]MonthlyTrendPoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			date_trunc('month', period_start) AS month,
			COUNT(*),
			COALESCE(SUM(forecast_value), 0),
			COALESCE(SUM(weighted_forecast), 0),
			COALESCE(SUM(best_case), 0),
			COALESCE(SUM(worst_case), 0),
			COALESCE(AVG(confidence_score), 0)
		FROM sales_forecasts
		WHERE period_start >= date_trunc('month', NOW()) - make_interval(months => $2)
			AND ($1::uuid = '00000000-0000-0000-0000-000000000000' OR user_id = $1)
		GROUP BY month
		ORDER BY month
	`, userID, monthsBack)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MonthlyTrendPoint, error) {
		var p MonthlyTrendPoint
		err := row.Scan(
			&p.Month, &p.ForecastCount, &p.TotalForecast, &p.TotalWeighted,
			&p.TotalBestCase, &p.TotalWorstCase, &p.AvgConfidence,
		)
		return p, err
	})
}

// MonthlyWonTotal is the realized closed-won value for one calendar month.
type MonthlyWonTotal struct {
	Month time.Time
	Total decimal.Decimal
}

// MonthlyWonTotals returns realized closed-won totals per month for the last
// monthsBack months, oldest first. Feeds growth and volatility derivations.
func (r *Repository) MonthlyWonTotals(ctx context.Context, userID uuid.UUID, monthsBack int) ([]MonthlyWonTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('month', closed_at) AS month, COALESCE(SUM(value), 0)
		FROM leads
		WHERE status = 'won'
			AND closed_at >= date_trunc('month', NOW()) - make_interval(months => $2)
			AND ($1::uuid = '00000000-0000-0000-0000-000000000000' OR user_id = $1)
		GROUP BY month
		ORDER BY month
	`, userID, monthsBack)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MonthlyWonTotal, error) {
		var t MonthlyWonTotal
		err := row.Scan(&t.Month, &t.Total)
		return t, err
	})
}

func scanSalesForecast(row pgx.CollectableRow) (SalesForecast, error) {
	var f SalesForecast
	err := row.Scan(
		&f.ID, &f.UserID, &f.TeamID, &f.PeriodType, &f.PeriodStart, &f.PeriodEnd,
		&f.ForecastValue, &f.WeightedForecast, &f.BestCase, &f.WorstCase,
		&f.ConfidenceScore, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

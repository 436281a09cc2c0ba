package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// HistoricalConversion is an empirical prior for one (stage, pipeline, user)
// group over an analysis window. user_id of uuid.Nil means unassigned leads.
type HistoricalConversion struct {
	ID                 uuid.UUID
	StageID            uuid.UUID
	PipelineID         uuid.UUID
	UserID             uuid.UUID
	PeriodStart        time.Time
	PeriodEnd          time.Time
	ConversionRate     decimal.Decimal
	AverageTimeInStage decimal.Decimal
	SampleSize         int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UpsertHistoricalConversionParams carries the computed values for one group.
type UpsertHistoricalConversionParams struct {
	StageID            uuid.UUID
	PipelineID         uuid.UUID
	UserID             uuid.UUID
	PeriodStart        time.Time
	PeriodEnd          time.Time
	ConversionRate     decimal.Decimal
	AverageTimeInStage decimal.Decimal
	SampleSize         int
}

// UpsertHistoricalConversion inserts or updates the prior for its natural key.
// Returns true when a new row was inserted. xmax = 0 only holds for rows
// created in the current transaction, which distinguishes insert from update.
func (r *Repository) UpsertHistoricalConversion(ctx context.Context, params UpsertHistoricalConversionParams) (bool, error) {
	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO historical_conversions (
			stage_id, pipeline_id, user_id, period_start, period_end,
			conversion_rate, average_time_in_stage, sample_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stage_id, pipeline_id, user_id, period_start, period_end)
		DO UPDATE SET
			conversion_rate = EXCLUDED.conversion_rate,
			average_time_in_stage = EXCLUDED.average_time_in_stage,
			sample_size = EXCLUDED.sample_size,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`,
		params.StageID, params.PipelineID, params.UserID,
		params.PeriodStart, params.PeriodEnd,
		params.ConversionRate, params.AverageTimeInStage, params.SampleSize,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ListStagePriors returns the latest prior per (stage, user) group of a
// pipeline, aggregated across users when perStage is computed by the caller.
func (r *Repository) ListStagePriors(ctx context.Context, pipelineID uuid.UUID, minSampleSize int) ([]HistoricalConversion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (stage_id, user_id)
			id, stage_id, pipeline_id, user_id, period_start, period_end,
			conversion_rate, average_time_in_stage, sample_size, created_at, updated_at
		FROM historical_conversions
		WHERE pipeline_id = $1 AND sample_size >= $2
		ORDER BY stage_id, user_id, period_end DESC
	`, pipelineID, minSampleSize)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistoricalConversion)
}

// StageWorstRates returns the lowest observed conversion rate per stage of a
// pipeline, used for worst-case forecast scenarios.
func (r *Repository) StageWorstRates(ctx context.Context, pipelineID uuid.UUID, minSampleSize int) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stage_id, MIN(conversion_rate)
		FROM historical_conversions
		WHERE pipeline_id = $1 AND sample_size >= $2
		GROUP BY stage_id
	`, pipelineID, minSampleSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	worst := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var stageID uuid.UUID
		var rate decimal.Decimal
		if err := rows.Scan(&stageID, &rate); err != nil {
			return nil, err
		}
		worst[stageID] = rate
	}
	return worst, rows.Err()
}

func scanHistoricalConversion(row pgx.CollectableRow) (HistoricalConversion, error) {
	var hc HistoricalConversion
	err := row.Scan(
		&hc.ID, &hc.StageID, &hc.PipelineID, &hc.UserID,
		&hc.PeriodStart, &hc.PeriodEnd,
		&hc.ConversionRate, &hc.AverageTimeInStage, &hc.SampleSize,
		&hc.CreatedAt, &hc.UpdatedAt,
	)
	return hc, err
}

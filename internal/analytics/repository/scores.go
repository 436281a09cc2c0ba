package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DealScore is one scoring snapshot for a lead. Rows are append-only; the
// current score is the latest generated_at for the lead.
type DealScore struct {
	ID                     uuid.UUID
	LeadID                 uuid.UUID
	Score                  decimal.Decimal
	WinProbability         decimal.Decimal
	EngagementScore        decimal.Decimal
	VelocityScore          decimal.Decimal
	ValueScore             decimal.Decimal
	HistoricalPatternScore decimal.Decimal
	GeneratedAt            time.Time
}

// InsertDealScoreParams carries one computed score snapshot.
type InsertDealScoreParams struct {
	LeadID                 uuid.UUID
	Score                  decimal.Decimal
	WinProbability         decimal.Decimal
	EngagementScore        decimal.Decimal
	VelocityScore          decimal.Decimal
	ValueScore             decimal.Decimal
	HistoricalPatternScore decimal.Decimal
	GeneratedAt            time.Time
}

// InsertDealScore appends a new score row for a lead. Existing rows are never
// mutated; freshness is judged by generated_at.
func (r *Repository) InsertDealScore(ctx context.Context, params InsertDealScoreParams) (DealScore, error) {
	var score DealScore
	err := r.pool.QueryRow(ctx, `
		INSERT INTO deal_scores (
			lead_id, score, win_probability,
			engagement_score, velocity_score, value_score, historical_pattern_score,
			generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, lead_id, score, win_probability,
			engagement_score, velocity_score, value_score, historical_pattern_score,
			generated_at
	`,
		params.LeadID, params.Score, params.WinProbability,
		params.EngagementScore, params.VelocityScore, params.ValueScore,
		params.HistoricalPatternScore, params.GeneratedAt,
	).Scan(
		&score.ID, &score.LeadID, &score.Score, &score.WinProbability,
		&score.EngagementScore, &score.VelocityScore, &score.ValueScore,
		&score.HistoricalPatternScore, &score.GeneratedAt,
	)
	if err != nil {
		return DealScore{}, err
	}
	return score, nil
}

// GetLatestDealScore returns the current score for a lead.
func (r *Repository) GetLatestDealScore(ctx context.Context, leadID uuid.UUID) (DealScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, score, win_probability,
			engagement_score, velocity_score, value_score, historical_pattern_score,
			generated_at
		FROM deal_scores
		WHERE lead_id = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`, leadID)
	if err != nil {
		return DealScore{}, err
	}

	score, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (DealScore, error) {
		var s DealScore
		err := row.Scan(
			&s.ID, &s.LeadID, &s.Score, &s.WinProbability,
			&s.EngagementScore, &s.VelocityScore, &s.ValueScore,
			&s.HistoricalPatternScore, &s.GeneratedAt,
		)
		return s, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return DealScore{}, ErrNotFound
	}
	return score, err
}

// ListOpenLeadValues returns the monetary values of all currently open leads,
// used to rank a lead's value against the live distribution.
func (r *Repository) ListOpenLeadValues(ctx context.Context, pipelineID uuid.UUID) ([]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT value
		FROM leads
		WHERE status = 'open'
			AND ($1::uuid = '00000000-0000-0000-0000-000000000000' OR pipeline_id = $1)
	`, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]decimal.Decimal, 0)
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

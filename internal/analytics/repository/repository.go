// Package repository provides Postgres persistence for the analytics engine.
// Lead and stage tables are read-only here; the four analytics tables are
// written through natural-key upserts so every batch run is safe to retry.
package repository

import (
	"context"
	"errors"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("record not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks database connectivity for health endpoints.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// LeadFilter narrows lead reads. Zero-value fields are ignored.
type LeadFilter struct {
	UserID     uuid.UUID
	PipelineID uuid.UUID
}

const leadColumns = `id, pipeline_id, stage_id, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'),
	COALESCE(team_id, '00000000-0000-0000-0000-000000000000'), value, status,
	stage_entered_at, created_at, updated_at, closed_at`

func scanLead(row pgx.CollectableRow) (domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID, &lead.PipelineID, &lead.StageID, &lead.UserID, &lead.TeamID,
		&lead.Value, &lead.Status, &lead.StageEnteredAt, &lead.CreatedAt,
		&lead.UpdatedAt, &lead.ClosedAt,
	)
	return lead, err
}

// GetLead returns a single lead by ID.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id)
	if err != nil {
		return domain.Lead{}, err
	}

	lead, err := pgx.CollectExactlyOneRow(rows, scanLead)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// ListLeadsInWindow returns all leads created within [start, end), any status,
// matching the optional filters.
func (r *Repository) ListLeadsInWindow(ctx context.Context, start, end time.Time, filter LeadFilter) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE created_at >= $1 AND created_at < $2
			AND ($3::uuid = '00000000-0000-0000-0000-000000000000' OR user_id = $3)
			AND ($4::uuid = '00000000-0000-0000-0000-000000000000' OR pipeline_id = $4)
		ORDER BY created_at
	`, start, end, filter.UserID, filter.PipelineID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLead)
}

// ListOpenLeads returns open leads in non-terminal stages, matching the
// optional filters.
func (r *Repository) ListOpenLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.status = 'open'
			AND NOT EXISTS (
				SELECT 1 FROM pipeline_stages s
				WHERE s.id = l.stage_id AND s.is_terminal
			)
			AND ($1::uuid = '00000000-0000-0000-0000-000000000000' OR l.user_id = $1)
			AND ($2::uuid = '00000000-0000-0000-0000-000000000000' OR l.pipeline_id = $2)
		ORDER BY l.created_at
	`, filter.UserID, filter.PipelineID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLead)
}

// ListOpenLeadsForForecast returns a user's open leads, optionally widened to
// the whole team when teamID is set.
func (r *Repository) ListOpenLeadsForForecast(ctx context.Context, userID, teamID uuid.UUID) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.status = 'open'
			AND NOT EXISTS (
				SELECT 1 FROM pipeline_stages s
				WHERE s.id = l.stage_id AND s.is_terminal
			)
			AND (
				l.user_id = $1
				OR ($2::uuid <> '00000000-0000-0000-0000-000000000000' AND l.team_id = $2)
			)
		ORDER BY l.created_at
	`, userID, teamID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLead)
}

// SumClosedWonValue totals the closed-won lead value for a user (or team)
// whose close date falls within [periodStart, periodEnd).
func (r *Repository) SumClosedWonValue(ctx context.Context, userID, teamID uuid.UUID, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0)
		FROM leads
		WHERE status = 'won'
			AND closed_at >= $3 AND closed_at < $4
			AND (
				user_id = $1
				OR ($2::uuid <> '00000000-0000-0000-0000-000000000000' AND team_id = $2)
			)
	`, userID, teamID, periodStart, periodEnd).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// WonStageIDs returns the set of stage IDs marked as the won terminal stage.
func (r *Repository) WonStageIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM pipeline_stages WHERE is_won
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	won := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		won[id] = true
	}
	return won, rows.Err()
}

// GetEngagementSignals reads interaction activity for a lead from the
// pipeline subsystem's activity log. The recent-interaction count covers
// activity at or after the caller-supplied cutoff.
func (r *Repository) GetEngagementSignals(ctx context.Context, leadID uuid.UUID, since time.Time) (domain.EngagementSignals, error) {
	var signals domain.EngagementSignals
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $2),
			MAX(created_at)
		FROM lead_activities
		WHERE lead_id = $1
	`, leadID, since).Scan(&signals.InteractionsLast30Days, &signals.LastActivityAt)
	if err != nil {
		return domain.EngagementSignals{}, err
	}
	return signals, nil
}

// ListOpenLeadOwners returns the distinct owners of open leads, excluding
// unassigned leads. Used to fan out periodic forecast generation.
func (r *Repository) ListOpenLeadOwners(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT l.user_id
		FROM leads l
		WHERE l.status = 'open'
		  AND l.user_id IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// Package domain holds the analytics engine's view of the sales pipeline:
// lead and stage data read from the pipeline subsystem, plus the pure
// classification rules applied to computed metrics.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeadStatus is the lifecycle status of a lead.
type LeadStatus string

const (
	LeadStatusOpen LeadStatus = "open"
	LeadStatusWon  LeadStatus = "won"
	LeadStatusLost LeadStatus = "lost"
)

// Lead is a pipeline opportunity. The analytics engine reads leads but never
// writes them; ownership stays with the pipeline subsystem.
type Lead struct {
	ID             uuid.UUID
	PipelineID     uuid.UUID
	StageID        uuid.UUID
	UserID         uuid.UUID // uuid.Nil when unassigned
	TeamID         uuid.UUID // uuid.Nil when no team
	Value          decimal.Decimal
	Status         LeadStatus
	StageEnteredAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// IsClosed reports whether the lead reached a terminal status.
func (l Lead) IsClosed() bool {
	return l.Status == LeadStatusWon || l.Status == LeadStatusLost
}

// DaysInPipeline returns the lead's dwell time in days: creation to close for
// closed leads, last update to now for open ones. Zero and negative durations
// are data artifacts and surface as 0.
func (l Lead) DaysInPipeline(now time.Time) float64 {
	var d time.Duration
	if l.ClosedAt != nil {
		d = l.ClosedAt.Sub(l.CreatedAt)
	} else {
		d = now.Sub(l.UpdatedAt)
	}
	days := d.Hours() / 24
	if days <= 0 {
		return 0
	}
	return days
}

// EngagementSignals summarizes interaction activity on a lead. The signal
// extraction lives with the pipeline subsystem; the scoring engine only
// combines these values.
type EngagementSignals struct {
	InteractionsLast30Days int
	LastActivityAt         *time.Time
}

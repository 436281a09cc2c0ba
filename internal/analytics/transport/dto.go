// Package transport defines the request and response DTOs of the analytics
// HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// RefreshConversionsRequest narrows a historical conversion analyzer run.
// All fields are optional; the window defaults to the configured analysis
// length ending now. Async hands the run to the job queue instead of
// executing it in the request.
type RefreshConversionsRequest struct {
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
	UserID      *uuid.UUID `json:"user_id"`
	PipelineID  *uuid.UUID `json:"pipeline_id"`
	Async       bool       `json:"async"`
}

// RefreshScoresRequest narrows a batch scoring run.
type RefreshScoresRequest struct {
	UserID     *uuid.UUID `json:"user_id"`
	PipelineID *uuid.UUID `json:"pipeline_id"`
	Async      bool       `json:"async"`
}

// GenerateForecastRequest identifies the forecast period to compute.
type GenerateForecastRequest struct {
	UserID      uuid.UUID  `json:"user_id" validate:"required"`
	TeamID      *uuid.UUID `json:"team_id"`
	PeriodType  string     `json:"period_type" validate:"required,oneof=week month quarter"`
	PeriodStart *time.Time `json:"period_start"`
}

// BatchResponse is the generic batch result envelope returned by trigger
// endpoints: counts plus per-item outcomes and run-level aggregates.
type BatchResponse struct {
	Total          int         `json:"total"`
	Successful     int         `json:"successful"`
	Failed         int         `json:"failed"`
	Items          interface{} `json:"items,omitempty"`
	AggregateStats interface{} `json:"aggregate_stats,omitempty"`
}

// QueuedResponse acknowledges a refresh handed to the job queue.
type QueuedResponse struct {
	Task   string `json:"task"`
	Queued bool   `json:"queued"`
}

// UUIDOrNil unwraps an optional UUID pointer.
func UUIDOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

// UUIDStringOrEmpty renders an optional UUID for task payloads.
func UUIDStringOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// TimeOrZero unwraps an optional time pointer.
func TimeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

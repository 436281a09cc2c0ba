// Package handler exposes the analytics engines over HTTP.
package handler

import (
	"net/http"

	"pipeline_analytics_backend/internal/analytics/accuracy"
	"pipeline_analytics_backend/internal/analytics/conversion"
	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/forecast"
	"pipeline_analytics_backend/internal/analytics/scoring"
	"pipeline_analytics_backend/internal/analytics/transport"
	"pipeline_analytics_backend/internal/scheduler"
	"pipeline_analytics_backend/platform/httpkit"
	"pipeline_analytics_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgQueueUnavailable = "job queue not configured"
)

// Handler wires the four analytics engines to gin routes.
type Handler struct {
	conversions *conversion.Service
	scores      *scoring.Service
	forecasts   *forecast.Service
	accuracy    *accuracy.Service
	val         *validator.Validator
	jobs        scheduler.JobEnqueuer
}

// New creates the analytics handler. jobs may be nil when no job queue is
// configured; async refresh requests are then rejected.
func New(conversions *conversion.Service, scores *scoring.Service, forecasts *forecast.Service, acc *accuracy.Service, val *validator.Validator, jobs scheduler.JobEnqueuer) *Handler {
	return &Handler{
		conversions: conversions,
		scores:      scores,
		forecasts:   forecasts,
		accuracy:    acc,
		val:         val,
		jobs:        jobs,
	}
}

// RefreshConversions runs the historical conversion analyzer.
func (h *Handler) RefreshConversions(c *gin.Context) {
	var req transport.RefreshConversionsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	if req.Async {
		h.enqueueConversionRefresh(c, req)
		return
	}

	result, err := h.conversions.Run(c.Request.Context(), conversion.RunParams{
		WindowStart: transport.TimeOrZero(req.WindowStart),
		WindowEnd:   transport.TimeOrZero(req.WindowEnd),
		UserID:      transport.UUIDOrNil(req.UserID),
		PipelineID:  transport.UUIDOrNil(req.PipelineID),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) enqueueConversionRefresh(c *gin.Context, req transport.RefreshConversionsRequest) {
	if h.jobs == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, msgQueueUnavailable, nil)
		return
	}
	if err := h.jobs.EnqueueConversionRefresh(c.Request.Context(), scheduler.ConversionRefreshPayload{
		UserID:     transport.UUIDStringOrEmpty(req.UserID),
		PipelineID: transport.UUIDStringOrEmpty(req.PipelineID),
	}); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.QueuedResponse{Task: scheduler.TaskConversionRefresh, Queued: true})
}

// RefreshScores runs batch deal scoring.
func (h *Handler) RefreshScores(c *gin.Context) {
	var req transport.RefreshScoresRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	if req.Async {
		if h.jobs == nil {
			httpkit.Error(c, http.StatusServiceUnavailable, msgQueueUnavailable, nil)
			return
		}
		if err := h.jobs.EnqueueScoreRefresh(c.Request.Context(), scheduler.ScoreRefreshPayload{
			UserID:     transport.UUIDStringOrEmpty(req.UserID),
			PipelineID: transport.UUIDStringOrEmpty(req.PipelineID),
		}); err != nil {
			httpkit.HandleError(c, err)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, transport.QueuedResponse{Task: scheduler.TaskScoreRefresh, Queued: true})
		return
	}

	result, err := h.scores.ScoreAll(c.Request.Context(), scoring.ScoreParams{
		UserID:     transport.UUIDOrNil(req.UserID),
		PipelineID: transport.UUIDOrNil(req.PipelineID),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.BatchResponse{
		Total:      result.Total,
		Successful: result.Successful,
		Failed:     result.Failed,
		Items:      result.Items,
	})
}

// ScoreLead forces a recompute for one lead.
func (h *Handler) ScoreLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	data, err := h.scores.ScoreLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, data)
}

// GetLeadScore returns the current stored score with derived labels.
func (h *Handler) GetLeadScore(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	current, err := h.scores.GetCurrentScore(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, current)
}

// GenerateForecast computes and upserts a period forecast.
func (h *Handler) GenerateForecast(c *gin.Context) {
	var req transport.GenerateForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.forecasts.Generate(c.Request.Context(), forecast.GenerateParams{
		UserID:      req.UserID,
		TeamID:      transport.UUIDOrNil(req.TeamID),
		PeriodType:  domain.PeriodType(req.PeriodType),
		PeriodStart: transport.TimeOrZero(req.PeriodStart),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetScenarios returns scenario bands for a user's open pipeline.
func (h *Handler) GetScenarios(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "user_id query parameter is required", nil)
		return
	}

	teamID := uuid.Nil
	if raw := c.Query("team_id"); raw != "" {
		teamID, err = uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	scenarios, err := h.forecasts.Scenarios(c.Request.Context(), userID, teamID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, scenarios)
}

// GetTrends returns the monthly trend series with growth and volatility.
func (h *Handler) GetTrends(c *gin.Context) {
	userID := uuid.Nil
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		userID = parsed
	}

	trends, err := h.forecasts.Trends(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, trends)
}

// CloseForecast records actuals for one explicitly targeted forecast.
func (h *Handler) CloseForecast(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.accuracy.Close(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// RunAccuracy closes out all eligible forecasts.
func (h *Handler) RunAccuracy(c *gin.Context) {
	result, err := h.accuracy.CloseEligible(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.BatchResponse{
		Total:          result.Total,
		Successful:     result.Successful,
		Failed:         result.Failed,
		Items:          result.Items,
		AggregateStats: result.Stats,
	})
}

// GetAccuracySummary returns the dashboard comparison metrics.
func (h *Handler) GetAccuracySummary(c *gin.Context) {
	userID := uuid.Nil
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		userID = parsed
	}

	summary, err := h.accuracy.Summary(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, summary)
}

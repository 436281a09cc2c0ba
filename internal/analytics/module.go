// Package analytics provides the pipeline analytics bounded context module.
// This file defines the module that encapsulates all analytics setup and
// route registration.
package analytics

import (
	"pipeline_analytics_backend/internal/analytics/accuracy"
	"pipeline_analytics_backend/internal/analytics/conversion"
	"pipeline_analytics_backend/internal/analytics/forecast"
	"pipeline_analytics_backend/internal/analytics/handler"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/internal/analytics/scoring"
	apphttp "pipeline_analytics_backend/internal/http"
	"pipeline_analytics_backend/internal/scheduler"
	"pipeline_analytics_backend/platform/config"
	"pipeline_analytics_backend/platform/logger"
	"pipeline_analytics_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the analytics bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	conversions *conversion.Service
	scores      *scoring.Service
	forecasts   *forecast.Service
	accuracy    *accuracy.Service
}

// NewModule creates and initializes the analytics module with all its
// dependencies. jobs is optional; without it the refresh endpoints only run
// inline.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, cfg config.AnalyticsConfig, log *logger.Logger, jobs scheduler.JobEnqueuer) *Module {
	repo := repository.New(pool)

	conversionSvc := conversion.New(repo, log, cfg.GetAnalysisDays(), cfg.GetMinSampleSize())
	scoringSvc := scoring.New(repo, log, cfg.GetMinSampleSize(), cfg.GetScoreStalenessHours())
	forecastSvc := forecast.New(repo, log, cfg.GetMinSampleSize(), cfg.GetWorstCaseFloorRate(), cfg.GetDefaultStageWinRate())
	accuracySvc := accuracy.New(repo, log, cfg.GetGracePeriodDays())

	h := handler.New(conversionSvc, scoringSvc, forecastSvc, accuracySvc, val, jobs)

	return &Module{
		handler:     h,
		conversions: conversionSvc,
		scores:      scoringSvc,
		forecasts:   forecastSvc,
		accuracy:    accuracySvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "analytics"
}

// ConversionService returns the historical conversion analyzer for external use.
func (m *Module) ConversionService() *conversion.Service {
	return m.conversions
}

// ScoringService returns the deal scoring engine for external use.
func (m *Module) ScoringService() *scoring.Service {
	return m.scores
}

// ForecastService returns the forecast calculation engine for external use.
func (m *Module) ForecastService() *forecast.Service {
	return m.forecasts
}

// AccuracyService returns the forecast accuracy tracker for external use.
func (m *Module) AccuracyService() *accuracy.Service {
	return m.accuracy
}

// RegisterRoutes mounts analytics routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/analytics"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

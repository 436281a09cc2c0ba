package repository

import (
	"context"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to pipeline lead data.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListLeadsInWindow(ctx context.Context, start, end time.Time, filter LeadFilter) ([]domain.Lead, error)
	ListOpenLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
	ListOpenLeadsForForecast(ctx context.Context, userID, teamID uuid.UUID) ([]domain.Lead, error)
	ListOpenLeadOwners(ctx context.Context) ([]uuid.UUID, error)
	SumClosedWonValue(ctx context.Context, userID, teamID uuid.UUID, periodStart, periodEnd time.Time) (decimal.Decimal, error)
	WonStageIDs(ctx context.Context) (map[uuid.UUID]bool, error)
}

// EngagementReader provides interaction signals for scoring.
type EngagementReader interface {
	GetEngagementSignals(ctx context.Context, leadID uuid.UUID, since time.Time) (domain.EngagementSignals, error)
}

// PriorReader provides access to computed historical conversion priors.
type PriorReader interface {
	ListStagePriors(ctx context.Context, pipelineID uuid.UUID, minSampleSize int) ([]HistoricalConversion, error)
	StageWorstRates(ctx context.Context, pipelineID uuid.UUID, minSampleSize int) (map[uuid.UUID]decimal.Decimal, error)
}

// PriorWriter persists historical conversion priors.
type PriorWriter interface {
	UpsertHistoricalConversion(ctx context.Context, params UpsertHistoricalConversionParams) (bool, error)
}

// ScoreReader provides access to deal score history.
type ScoreReader interface {
	GetLatestDealScore(ctx context.Context, leadID uuid.UUID) (DealScore, error)
	ListOpenLeadValues(ctx context.Context, pipelineID uuid.UUID) ([]decimal.Decimal, error)
}

// ScoreWriter appends deal score snapshots.
type ScoreWriter interface {
	InsertDealScore(ctx context.Context, params InsertDealScoreParams) (DealScore, error)
}

// ForecastReader provides access to sales forecasts and trends.
type ForecastReader interface {
	GetForecastByID(ctx context.Context, id uuid.UUID) (SalesForecast, error)
	ListEligibleForecasts(ctx context.Context, cutoff time.Time) ([]SalesForecast, error)
	MonthlyForecastTrend(ctx context.Context, userID uuid.UUID, monthsBack int) ([]MonthlyTrendPoint, error)
	MonthlyWonTotals(ctx context.Context, userID uuid.UUID, monthsBack int) ([]MonthlyWonTotal, error)
}

// ForecastWriter upserts sales forecasts.
type ForecastWriter interface {
	UpsertSalesForecast(ctx context.Context, params UpsertSalesForecastParams) (SalesForecast, error)
}

// ActualReader provides access to forecast outcomes.
type ActualReader interface {
	HasActual(ctx context.Context, forecastID uuid.UUID) (bool, error)
	GetAccuracySummary(ctx context.Context, userID uuid.UUID) (AccuracySummary, error)
}

// ActualWriter records forecast outcomes.
type ActualWriter interface {
	InsertForecastActual(ctx context.Context, params InsertForecastActualParams) (ForecastActual, error)
}

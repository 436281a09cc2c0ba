package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pipeline_analytics_backend/internal/analytics/accuracy"
	"pipeline_analytics_backend/internal/analytics/conversion"
	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/forecast"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/internal/analytics/scoring"
	"pipeline_analytics_backend/internal/analytics/transport"
	"pipeline_analytics_backend/internal/scheduler"
	"pipeline_analytics_backend/platform/logger"
	"pipeline_analytics_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	inserted []repository.InsertDealScoreParams
}

func (f *fakeRepo) GetLead(context.Context, uuid.UUID) (domain.Lead, error) {
	return domain.Lead{}, repository.ErrNotFound
}

func (f *fakeRepo) ListLeadsInWindow(context.Context, time.Time, time.Time, repository.LeadFilter) ([]domain.Lead, error) {
	return nil, nil
}

func (f *fakeRepo) ListOpenLeads(context.Context, repository.LeadFilter) ([]domain.Lead, error) {
	return nil, nil
}

func (f *fakeRepo) ListOpenLeadsForForecast(context.Context, uuid.UUID, uuid.UUID) ([]domain.Lead, error) {
	return nil, nil
}

func (f *fakeRepo) ListOpenLeadOwners(context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeRepo) SumClosedWonValue(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeRepo) WonStageIDs(context.Context) (map[uuid.UUID]bool, error) {
	return map[uuid.UUID]bool{}, nil
}

func (f *fakeRepo) GetEngagementSignals(context.Context, uuid.UUID, time.Time) (domain.EngagementSignals, error) {
	return domain.EngagementSignals{}, nil
}

func (f *fakeRepo) ListStagePriors(context.Context, uuid.UUID, int) ([]repository.HistoricalConversion, error) {
	return nil, nil
}

func (f *fakeRepo) StageWorstRates(context.Context, uuid.UUID, int) (map[uuid.UUID]decimal.Decimal, error) {
	return map[uuid.UUID]decimal.Decimal{}, nil
}

func (f *fakeRepo) UpsertHistoricalConversion(context.Context, repository.UpsertHistoricalConversionParams) (bool, error) {
	return true, nil
}

func (f *fakeRepo) GetLatestDealScore(context.Context, uuid.UUID) (repository.DealScore, error) {
	return repository.DealScore{}, repository.ErrNotFound
}

func (f *fakeRepo) ListOpenLeadValues(context.Context, uuid.UUID) ([]decimal.Decimal, error) {
	return nil, nil
}

func (f *fakeRepo) InsertDealScore(_ context.Context, params repository.InsertDealScoreParams) (repository.DealScore, error) {
	f.inserted = append(f.inserted, params)
	return repository.DealScore{}, nil
}

func (f *fakeRepo) GetForecastByID(context.Context, uuid.UUID) (repository.SalesForecast, error) {
	return repository.SalesForecast{}, repository.ErrNotFound
}

func (f *fakeRepo) ListEligibleForecasts(context.Context, time.Time) ([]repository.SalesForecast, error) {
	return nil, nil
}

func (f *fakeRepo) MonthlyForecastTrend(context.Context, uuid.UUID, int) ([]repository.MonthlyTrendPoint, error) {
	return nil, nil
}

func (f *fakeRepo) MonthlyWonTotals(context.Context, uuid.UUID, int) ([]repository.MonthlyWonTotal, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertSalesForecast(context.Context, repository.UpsertSalesForecastParams) (repository.SalesForecast, error) {
	return repository.SalesForecast{}, nil
}

func (f *fakeRepo) HasActual(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeRepo) GetAccuracySummary(context.Context, uuid.UUID) (repository.AccuracySummary, error) {
	return repository.AccuracySummary{}, nil
}

func (f *fakeRepo) InsertForecastActual(context.Context, repository.InsertForecastActualParams) (repository.ForecastActual, error) {
	return repository.ForecastActual{}, nil
}

type fakeEnqueuer struct {
	conversionJobs []scheduler.ConversionRefreshPayload
	scoreJobs      []scheduler.ScoreRefreshPayload
}

func (f *fakeEnqueuer) EnqueueConversionRefresh(_ context.Context, payload scheduler.ConversionRefreshPayload) error {
	f.conversionJobs = append(f.conversionJobs, payload)
	return nil
}

func (f *fakeEnqueuer) EnqueueScoreRefresh(_ context.Context, payload scheduler.ScoreRefreshPayload) error {
	f.scoreJobs = append(f.scoreJobs, payload)
	return nil
}

func newTestRouter(t *testing.T, jobs scheduler.JobEnqueuer) (*gin.Engine, *fakeRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &fakeRepo{}
	log := logger.New("test")
	h := New(
		conversion.New(repo, log, 90, 5),
		scoring.New(repo, log, 5, 24),
		forecast.New(repo, log, 5, 0.10, 0.30),
		accuracy.New(repo, log, 1),
		validator.New(),
		jobs,
	)

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1/analytics"))
	return engine, repo
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRefreshScoresAsyncEnqueues(t *testing.T) {
	jobs := &fakeEnqueuer{}
	engine, repo := newTestRouter(t, jobs)

	userID := uuid.New()
	rec := postJSON(engine, "/api/v1/analytics/scores/refresh", `{"async":true,"user_id":"`+userID.String()+`"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(jobs.scoreJobs) != 1 {
		t.Fatalf("expected one enqueued score refresh, got %d", len(jobs.scoreJobs))
	}
	if jobs.scoreJobs[0].UserID != userID.String() {
		t.Fatalf("expected user filter %s in payload, got %q", userID, jobs.scoreJobs[0].UserID)
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("async refresh must not score inline, got %d inserts", len(repo.inserted))
	}

	var resp transport.QueuedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Queued || resp.Task != scheduler.TaskScoreRefresh {
		t.Fatalf("unexpected ack: %+v", resp)
	}
}

func TestRefreshConversionsAsyncEnqueues(t *testing.T) {
	jobs := &fakeEnqueuer{}
	engine, _ := newTestRouter(t, jobs)

	pipelineID := uuid.New()
	rec := postJSON(engine, "/api/v1/analytics/conversions/refresh", `{"async":true,"pipeline_id":"`+pipelineID.String()+`"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(jobs.conversionJobs) != 1 {
		t.Fatalf("expected one enqueued conversion refresh, got %d", len(jobs.conversionJobs))
	}
	if jobs.conversionJobs[0].PipelineID != pipelineID.String() {
		t.Fatalf("expected pipeline filter %s in payload, got %q", pipelineID, jobs.conversionJobs[0].PipelineID)
	}
}

func TestRefreshScoresRunsInlineByDefault(t *testing.T) {
	jobs := &fakeEnqueuer{}
	engine, _ := newTestRouter(t, jobs)

	rec := postJSON(engine, "/api/v1/analytics/scores/refresh", `{}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(jobs.scoreJobs) != 0 {
		t.Fatalf("inline refresh must not enqueue, got %d jobs", len(jobs.scoreJobs))
	}
}

func TestRefreshAsyncWithoutQueueIsRejected(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := postJSON(engine, "/api/v1/analytics/scores/refresh", `{"async":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", rec.Code)
	}

	rec = postJSON(engine, "/api/v1/analytics/conversions/refresh", `{"async":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", rec.Code)
	}
}

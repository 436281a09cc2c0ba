package accuracy

import (
	"context"
	"testing"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/platform/apperr"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	forecasts map[uuid.UUID]repository.SalesForecast
	eligible  []repository.SalesForecast
	actuals   map[uuid.UUID]repository.ForecastActual
	wonValues map[uuid.UUID]decimal.Decimal // keyed by forecast user
	summary   repository.AccuracySummary
	inserted  []repository.InsertForecastActualParams
}

func (f *fakeRepo) GetForecastByID(_ context.Context, id uuid.UUID) (repository.SalesForecast, error) {
	forecast, ok := f.forecasts[id]
	if !ok {
		return repository.SalesForecast{}, repository.ErrNotFound
	}
	return forecast, nil
}

func (f *fakeRepo) ListEligibleForecasts(context.Context, time.Time) ([]repository.SalesForecast, error) {
	return f.eligible, nil
}

func (f *fakeRepo) MonthlyForecastTrend(context.Context, uuid.UUID, int) ([]repository.MonthlyTrendPoint, error) {
	return nil, nil
}

func (f *fakeRepo) MonthlyWonTotals(context.Context, uuid.UUID, int) ([]repository.MonthlyWonTotal, error) {
	return nil, nil
}

func (f *fakeRepo) HasActual(_ context.Context, forecastID uuid.UUID) (bool, error) {
	_, ok := f.actuals[forecastID]
	return ok, nil
}

func (f *fakeRepo) GetAccuracySummary(context.Context, uuid.UUID) (repository.AccuracySummary, error) {
	return f.summary, nil
}

func (f *fakeRepo) InsertForecastActual(_ context.Context, params repository.InsertForecastActualParams) (repository.ForecastActual, error) {
	if f.actuals == nil {
		f.actuals = make(map[uuid.UUID]repository.ForecastActual)
	}
	actual := repository.ForecastActual{
		ID:                 uuid.New(),
		ForecastID:         params.ForecastID,
		ActualValue:        params.ActualValue,
		Variance:           params.Variance,
		VariancePercentage: params.VariancePercentage,
		ClosedAt:           params.ClosedAt,
	}
	f.actuals[params.ForecastID] = actual
	f.inserted = append(f.inserted, params)
	return actual, nil
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

func (f *fakeRepo) SumClosedWonValue(_ context.Context, userID, _ uuid.UUID, _, _ time.Time) (decimal.Decimal, error) {
	if v, ok := f.wonValues[userID]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (f *fakeRepo) WonStageIDs(context.Context) (map[uuid.UUID]bool, error) {
	return map[uuid.UUID]bool{}, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func endedForecast(now time.Time, value int64) repository.SalesForecast {
	start := now.AddDate(0, -1, 0)
	return repository.SalesForecast{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		PeriodType:    domain.PeriodMonth,
		PeriodStart:   start,
		PeriodEnd:     now.AddDate(0, 0, -5),
		ForecastValue: decimal.NewFromInt(value),
	}
}

func TestCloseRecordsVarianceAndAccuracy(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	forecast := endedForecast(now, 1000)
	repo := &fakeRepo{
		forecasts: map[uuid.UUID]repository.SalesForecast{forecast.ID: forecast},
		wonValues: map[uuid.UUID]decimal.Decimal{forecast.UserID: decimal.NewFromInt(1100)},
	}
	svc := New(repo, logger.New("test"), 1).WithClock(fixedClock(now))

	result, err := svc.Close(context.Background(), forecast.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Variance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected variance 100, got %s", result.Variance)
	}
	if !result.VariancePercentage.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected variance 10%%, got %s", result.VariancePercentage)
	}
	if result.AccuracyLevel != domain.AccuracyHigh {
		t.Fatalf("expected high accuracy at 10%%, got %s", result.AccuracyLevel)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one actual recorded, got %d", len(repo.inserted))
	}
}

func TestCloseZeroForecastValueAvoidsDivisionByZero(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	forecast := endedForecast(now, 0)
	repo := &fakeRepo{
		forecasts: map[uuid.UUID]repository.SalesForecast{forecast.ID: forecast},
		wonValues: map[uuid.UUID]decimal.Decimal{forecast.UserID: decimal.NewFromInt(500)},
	}
	svc := New(repo, logger.New("test"), 1).WithClock(fixedClock(now))

	result, err := svc.Close(context.Background(), forecast.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Variance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected variance 500, got %s", result.Variance)
	}
	if !result.VariancePercentage.IsZero() {
		t.Fatalf("expected zero variance percentage for zero forecast, got %s", result.VariancePercentage)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	forecast := endedForecast(now, 1000)
	repo := &fakeRepo{
		forecasts: map[uuid.UUID]repository.SalesForecast{forecast.ID: forecast},
		wonValues: map[uuid.UUID]decimal.Decimal{forecast.UserID: decimal.NewFromInt(900)},
	}
	svc := New(repo, logger.New("test"), 1).WithClock(fixedClock(now))

	if _, err := svc.Close(context.Background(), forecast.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Close(context.Background(), forecast.ID)
	if err != nil {
		t.Fatalf("second close must be a no-op, got error: %v", err)
	}
	if !second.AlreadyClosed {
		t.Fatal("expected already-closed marker on repeat close")
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected exactly one recorded actual, got %d", len(repo.inserted))
	}
}

func TestCloseRejectsUnfinishedPeriod(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	forecast := endedForecast(now, 1000)
	forecast.PeriodEnd = now.AddDate(0, 0, 5)
	repo := &fakeRepo{forecasts: map[uuid.UUID]repository.SalesForecast{forecast.ID: forecast}}
	svc := New(repo, logger.New("test"), 1).WithClock(fixedClock(now))

	_, err := svc.Close(context.Background(), forecast.ID)
	if err == nil {
		t.Fatal("expected error for period that has not ended")
	}
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCloseMissingForecast(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	svc := New(&fakeRepo{}, logger.New("test"), 1).WithClock(fixedClock(now))

	_, err := svc.Close(context.Background(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCloseEligibleAggregatesAccuracyStats(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	accurate := endedForecast(now, 1000)  // actual 1050 -> 5% -> high
	wayOff := endedForecast(now, 1000)    // actual 400 -> -60% -> poor
	moderate := endedForecast(now, 1000)  // actual 1200 -> 20% -> moderate

	repo := &fakeRepo{
		eligible: []repository.SalesForecast{accurate, wayOff, moderate},
		wonValues: map[uuid.UUID]decimal.Decimal{
			accurate.UserID: decimal.NewFromInt(1050),
			wayOff.UserID:   decimal.NewFromInt(400),
			moderate.UserID: decimal.NewFromInt(1200),
		},
	}
	svc := New(repo, logger.New("test"), 1).WithClock(fixedClock(now))

	result, err := svc.CloseEligible(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 || result.Successful != 3 || result.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Stats.HighCount != 1 || result.Stats.ModerateCount != 1 || result.Stats.PoorCount != 1 {
		t.Fatalf("unexpected accuracy distribution: %+v", result.Stats)
	}
	// mean of |5|, |-60|, |20|
	if !result.Stats.MeanAbsVariancePct.Equal(decimal.NewFromFloat(28.33)) {
		t.Fatalf("expected mean abs variance 28.33, got %s", result.Stats.MeanAbsVariancePct)
	}
}

func TestCloseEligibleSkipsAlreadyClosed(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	closed := endedForecast(now, 1000)
	fresh := endedForecast(now, 2000)

	repo := &fakeRepo{
		eligible: []repository.SalesForecast{closed, fresh},
		actuals: map[uuid.UUID]repository.ForecastActual{
			closed.ID: {ForecastID: closed.ID},
		},
		wonValues: map[uuid.UUID]decimal.Decimal{fresh.UserID: decimal.NewFromInt(2000)},
	}
	svc := New(repo, logger.New("test"), 1).WithClock(fixedClock(now))

	result, err := svc.CloseEligible(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Successful != 1 || result.Stats.AlreadyClosedSkipped != 1 {
		t.Fatalf("expected one close and one skip, got %+v", result)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one inserted actual, got %d", len(repo.inserted))
	}
}

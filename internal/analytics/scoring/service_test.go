package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	mu            sync.Mutex
	leads         []domain.Lead
	signals       map[uuid.UUID]domain.EngagementSignals
	priors        map[uuid.UUID][]repository.HistoricalConversion
	openValues    []decimal.Decimal
	latest        map[uuid.UUID]repository.DealScore
	inserted      []repository.InsertDealScoreParams
	signalCutoffs []time.Time
}

func (f *fakeRepo) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	for _, lead := range f.leads {
		if lead.ID == id {
			return lead, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (f *fakeRepo) ListOpenLeads(context.Context, repository.LeadFilter) ([]domain.Lead, error) {
	return f.leads, nil
}

func (f *fakeRepo) ListLeadsInWindow(context.Context, time.Time, time.Time, repository.LeadFilter) ([]domain.Lead, error) {
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

func (f *fakeRepo) GetEngagementSignals(_ context.Context, leadID uuid.UUID, since time.Time) (domain.EngagementSignals, error) {
	f.mu.Lock()
	f.signalCutoffs = append(f.signalCutoffs, since)
	f.mu.Unlock()
	return f.signals[leadID], nil
}

func (f *fakeRepo) ListStagePriors(_ context.Context, pipelineID uuid.UUID, _ int) ([]repository.HistoricalConversion, error) {
	return f.priors[pipelineID], nil
}

func (f *fakeRepo) StageWorstRates(context.Context, uuid.UUID, int) (map[uuid.UUID]decimal.Decimal, error) {
	return map[uuid.UUID]decimal.Decimal{}, nil
}

func (f *fakeRepo) GetLatestDealScore(_ context.Context, leadID uuid.UUID) (repository.DealScore, error) {
	score, ok := f.latest[leadID]
	if !ok {
		return repository.DealScore{}, repository.ErrNotFound
	}
	return score, nil
}

func (f *fakeRepo) ListOpenLeadValues(context.Context, uuid.UUID) ([]decimal.Decimal, error) {
	return f.openValues, nil
}

func (f *fakeRepo) InsertDealScore(_ context.Context, params repository.InsertDealScoreParams) (repository.DealScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, params)
	return repository.DealScore{
		ID:                     uuid.New(),
		LeadID:                 params.LeadID,
		Score:                  params.Score,
		WinProbability:         params.WinProbability,
		EngagementScore:        params.EngagementScore,
		VelocityScore:          params.VelocityScore,
		ValueScore:             params.ValueScore,
		HistoricalPatternScore: params.HistoricalPatternScore,
		GeneratedAt:            params.GeneratedAt,
	}, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func openLead(now time.Time) domain.Lead {
	return domain.Lead{
		ID:             uuid.New(),
		PipelineID:     uuid.New(),
		StageID:        uuid.New(),
		UserID:         uuid.New(),
		Value:          decimal.NewFromInt(1000),
		Status:         domain.LeadStatusOpen,
		StageEnteredAt: now.AddDate(0, 0, -3),
		CreatedAt:      now.AddDate(0, 0, -14),
		UpdatedAt:      now.AddDate(0, 0, -1),
	}
}

func TestScoreLeadWithoutSignalsFallsBackToNeutral(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	lead := openLead(now)
	repo := &fakeRepo{leads: []domain.Lead{lead}}
	svc := New(repo, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	data, err := svc.ScoreLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Never-touched lead, no priors, no value distribution:
	// engagement 20, velocity 50, value 50, historical 50.
	if !data.EngagementScore.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected engagement 20, got %s", data.EngagementScore)
	}
	if !data.VelocityScore.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected velocity 50, got %s", data.VelocityScore)
	}
	if !data.Score.Equal(decimal.NewFromInt(41)) {
		t.Fatalf("expected composite 41, got %s", data.Score)
	}
	if !data.WinProbability.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected win probability 50, got %s", data.WinProbability)
	}
	if data.Priority != domain.LevelLow {
		t.Fatalf("expected low priority, got %s", data.Priority)
	}
	if data.DominantFactor != FactorVelocity || data.WeakestFactor != FactorEngagement {
		t.Fatalf("unexpected factor extremes: %s / %s", data.DominantFactor, data.WeakestFactor)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected score to be persisted, got %d inserts", len(repo.inserted))
	}
}

func TestScoreLeadUsesPriorsAndSignals(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	lead := openLead(now)
	lead.Value = decimal.NewFromInt(150)
	lead.StageEnteredAt = now.AddDate(0, 0, -2)

	lastActivity := now.Add(-2 * time.Hour)
	repo := &fakeRepo{
		leads: []domain.Lead{lead},
		signals: map[uuid.UUID]domain.EngagementSignals{
			lead.ID: {InteractionsLast30Days: 3, LastActivityAt: &lastActivity},
		},
		priors: map[uuid.UUID][]repository.HistoricalConversion{
			lead.PipelineID: {
				{
					StageID:            lead.StageID,
					PipelineID:         lead.PipelineID,
					UserID:             lead.UserID,
					ConversionRate:     decimal.NewFromInt(80),
					AverageTimeInStage: decimal.NewFromInt(10),
					SampleSize:         40,
				},
			},
		},
		openValues: []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(200)},
	}
	svc := New(repo, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	data, err := svc.ScoreLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// engagement: 10 + 3*5 + 40 (activity within 24h) = 65
	if !data.EngagementScore.Equal(decimal.NewFromInt(65)) {
		t.Fatalf("expected engagement 65, got %s", data.EngagementScore)
	}
	// velocity: 2 days in stage vs 10 day average -> ratio 0.2 -> 90
	if !data.VelocityScore.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected velocity 90, got %s", data.VelocityScore)
	}
	// value: 1 of 2 open values below, none equal -> 50th percentile
	if !data.ValueScore.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected value 50, got %s", data.ValueScore)
	}
	// historical: rate 80 over 40 samples pulled toward 50 -> (80*40+50*10)/50 = 74
	if !data.HistoricalPatternScore.Equal(decimal.NewFromInt(74)) {
		t.Fatalf("expected historical 74, got %s", data.HistoricalPatternScore)
	}
	if !data.Score.Equal(decimal.NewFromFloat(69.7)) {
		t.Fatalf("expected composite 69.7, got %s", data.Score)
	}
	if !data.WinProbability.Equal(decimal.NewFromInt(74)) {
		t.Fatalf("expected win probability 74, got %s", data.WinProbability)
	}
	if data.DominantFactor != FactorVelocity || data.WeakestFactor != FactorValue {
		t.Fatalf("unexpected factor extremes: %s / %s", data.DominantFactor, data.WeakestFactor)
	}
}

func TestScoreAllIsolatesMalformedLeads(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	good1, good2, bad := openLead(now), openLead(now), openLead(now)
	bad.Value = decimal.NewFromInt(-5)

	repo := &fakeRepo{leads: []domain.Lead{good1, bad, good2}}
	svc := New(repo, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	result, err := svc.ScoreAll(context.Background(), ScoreParams{})
	if err != nil {
		t.Fatalf("batch must not abort on one bad lead: %v", err)
	}
	if result.Total != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %+v", result)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("expected 2 persisted scores, got %d", len(repo.inserted))
	}
	for _, item := range result.Items {
		if item.LeadID == bad.ID {
			if item.Success || item.Error == "" {
				t.Fatalf("expected recorded failure for bad lead, got %+v", item)
			}
		} else if !item.Success {
			t.Fatalf("expected success for lead %s: %s", item.LeadID, item.Error)
		}
	}
}

func TestScoreAllKeepsScoresWithinBounds(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	leads := []domain.Lead{openLead(now), openLead(now), openLead(now), openLead(now)}
	repo := &fakeRepo{leads: leads}
	svc := New(repo, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	result, err := svc.ScoreAll(context.Background(), ScoreParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hundred := decimal.NewFromInt(100)
	for _, item := range result.Items {
		if item.Data == nil {
			t.Fatalf("missing data for lead %s", item.LeadID)
		}
		for _, score := range []decimal.Decimal{
			item.Data.Score, item.Data.WinProbability, item.Data.EngagementScore,
			item.Data.VelocityScore, item.Data.ValueScore, item.Data.HistoricalPatternScore,
		} {
			if score.IsNegative() || score.GreaterThan(hundred) {
				t.Fatalf("score %s out of bounds for lead %s", score, item.LeadID)
			}
		}
	}
}

func TestGetCurrentScoreReportsStaleness(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	leadID := uuid.New()
	repo := &fakeRepo{
		latest: map[uuid.UUID]repository.DealScore{
			leadID: {
				LeadID:      leadID,
				Score:       decimal.NewFromInt(62),
				GeneratedAt: now.Add(-25 * time.Hour),
			},
		},
	}
	svc := New(repo, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	current, err := svc.GetCurrentScore(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !current.Stale {
		t.Fatal("expected 25h old score to be stale at a 24h threshold")
	}
	if current.Priority != domain.LevelMedium {
		t.Fatalf("expected medium priority for score 62, got %s", current.Priority)
	}
}

func TestGetCurrentScoreMissingLead(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := New(&fakeRepo{}, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	if _, err := svc.GetCurrentScore(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error when no score exists")
	}
}

func TestEngagementWindowFollowsInjectedClock(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	lead := openLead(now)
	repo := &fakeRepo{leads: []domain.Lead{lead}}
	svc := New(repo, logger.New("test"), 5, 24).WithClock(fixedClock(now))

	if _, err := svc.ScoreLead(context.Background(), lead.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.signalCutoffs) != 1 {
		t.Fatalf("expected one engagement read, got %d", len(repo.signalCutoffs))
	}
	want := now.AddDate(0, 0, -30)
	if !repo.signalCutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.signalCutoffs[0])
	}
}

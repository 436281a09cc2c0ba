package scheduler

import (
	"context"
	"fmt"

	"pipeline_analytics_backend/internal/analytics/accuracy"
	"pipeline_analytics_backend/internal/analytics/conversion"
	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/forecast"
	"pipeline_analytics_backend/internal/analytics/repository"
	"pipeline_analytics_backend/internal/analytics/scoring"
	"pipeline_analytics_backend/platform/config"
	"pipeline_analytics_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker consumes the analytics queue and drives the four engines.
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	repo        *repository.Repository
	conversions *conversion.Service
	scores      *scoring.Service
	forecasts   *forecast.Service
	accuracy    *accuracy.Service
	log         *logger.Logger
}

// Engines bundles the analytics services the worker dispatches to.
type Engines struct {
	Conversions *conversion.Service
	Scores      *scoring.Service
	Forecasts   *forecast.Service
	Accuracy    *accuracy.Service
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, engines Engines, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		repo:        repository.New(pool),
		conversions: engines.Conversions,
		scores:      engines.Scores,
		forecasts:   engines.Forecasts,
		accuracy:    engines.Accuracy,
		log:         log,
	}

	mux.HandleFunc(TaskConversionRefresh, w.handleConversionRefresh)
	mux.HandleFunc(TaskScoreRefresh, w.handleScoreRefresh)
	mux.HandleFunc(TaskForecastGenerate, w.handleForecastGenerate)
	mux.HandleFunc(TaskAccuracyClose, w.handleAccuracyClose)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleConversionRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseConversionRefreshPayload(task)
	if err != nil {
		return err
	}

	userID, err := optionalUUID(payload.UserID)
	if err != nil {
		return err
	}
	pipelineID, err := optionalUUID(payload.PipelineID)
	if err != nil {
		return err
	}

	result, err := w.conversions.Run(ctx, conversion.RunParams{
		UserID:     userID,
		PipelineID: pipelineID,
	})
	if err != nil {
		return err
	}

	w.log.Info("conversion refresh complete",
		"groups", result.Groups, "new", result.New, "updated", result.Updated, "skipped", result.Skipped)
	return nil
}

func (w *Worker) handleScoreRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreRefreshPayload(task)
	if err != nil {
		return err
	}

	userID, err := optionalUUID(payload.UserID)
	if err != nil {
		return err
	}
	pipelineID, err := optionalUUID(payload.PipelineID)
	if err != nil {
		return err
	}

	_, err = w.scores.ScoreAll(ctx, scoring.ScoreParams{
		UserID:     userID,
		PipelineID: pipelineID,
	})
	return err
}

// handleForecastGenerate fans the periodic forecast out to every owner of an
// open lead. Per-owner failures are logged and do not fail the task.
func (w *Worker) handleForecastGenerate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseForecastGeneratePayload(task)
	if err != nil {
		return err
	}

	periodType, err := domain.ParsePeriodType(payload.PeriodType)
	if err != nil {
		return err
	}

	owners, err := w.repo.ListOpenLeadOwners(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, owner := range owners {
		if _, err := w.forecasts.Generate(ctx, forecast.GenerateParams{
			UserID:     owner,
			PeriodType: periodType,
		}); err != nil {
			w.log.ItemError("forecast_generate", owner.String(), err)
			failed++
		}
	}

	w.log.BatchOutcome("forecast_generate", len(owners), len(owners)-failed, failed)
	return nil
}

func (w *Worker) handleAccuracyClose(ctx context.Context, task *asynq.Task) error {
	_, err := w.accuracy.CloseEligible(ctx)
	return err
}

func optionalUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

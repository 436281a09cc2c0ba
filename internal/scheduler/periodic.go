package scheduler

import (
	"fmt"

	"pipeline_analytics_backend/platform/config"
	"pipeline_analytics_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron expressions for the recurring analytics jobs. Conversions run before
// scores so fresh priors feed the scoring pass, and forecasts run after both.
const (
	cronConversionRefresh = "0 2 * * *"
	cronScoreRefresh      = "0 */6 * * *"
	cronForecastGenerate  = "30 3 * * *"
	cronAccuracyClose     = "0 4 * * *"
)

// Periodic registers the recurring analytics jobs with asynq's scheduler.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	// Retry and timeout policy lives here, on the queue layer, not inside
	// the engines themselves.
	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(cfg.GetBatchMaxRetry()),
		asynq.Timeout(cfg.GetBatchTimeout()),
	}

	scheduler := asynq.NewScheduler(opt, nil)

	conversionTask, err := NewConversionRefreshTask(ConversionRefreshPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cronConversionRefresh, conversionTask, opts...); err != nil {
		return nil, err
	}

	scoreTask, err := NewScoreRefreshTask(ScoreRefreshPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cronScoreRefresh, scoreTask, opts...); err != nil {
		return nil, err
	}

	for _, periodType := range []string{"week", "month", "quarter"} {
		forecastTask, err := NewForecastGenerateTask(ForecastGeneratePayload{PeriodType: periodType})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cronForecastGenerate, forecastTask, opts...); err != nil {
			return nil, err
		}
	}

	if _, err := scheduler.Register(cronAccuracyClose, NewAccuracyCloseTask(), opts...); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run starts the scheduler and blocks until it stops.
func (p *Periodic) Run() error {
	if p == nil || p.scheduler == nil {
		return nil
	}
	return p.scheduler.Run()
}

// Shutdown stops the scheduler.
func (p *Periodic) Shutdown() {
	if p == nil || p.scheduler == nil {
		return
	}
	p.scheduler.Shutdown()
}

// Package scheduler runs the recurring analytics jobs over asynq.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskConversionRefresh = "analytics.conversions.refresh"

const TaskScoreRefresh = "analytics.scores.refresh"

const TaskForecastGenerate = "analytics.forecasts.generate"

const TaskAccuracyClose = "analytics.actuals.close"

type ConversionRefreshPayload struct {
	UserID     string `json:"userId,omitempty"`
	PipelineID string `json:"pipelineId,omitempty"`
}

type ScoreRefreshPayload struct {
	UserID     string `json:"userId,omitempty"`
	PipelineID string `json:"pipelineId,omitempty"`
}

type ForecastGeneratePayload struct {
	PeriodType string `json:"periodType"`
}

func NewConversionRefreshTask(payload ConversionRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversionRefresh, data), nil
}

func ParseConversionRefreshPayload(task *asynq.Task) (ConversionRefreshPayload, error) {
	var payload ConversionRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ConversionRefreshPayload{}, err
	}
	return payload, nil
}

func NewScoreRefreshTask(payload ScoreRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRefresh, data), nil
}

func ParseScoreRefreshPayload(task *asynq.Task) (ScoreRefreshPayload, error) {
	var payload ScoreRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreRefreshPayload{}, err
	}
	return payload, nil
}

func NewForecastGenerateTask(payload ForecastGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastGenerate, data), nil
}

func ParseForecastGeneratePayload(task *asynq.Task) (ForecastGeneratePayload, error) {
	var payload ForecastGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ForecastGeneratePayload{}, err
	}
	return payload, nil
}

func NewAccuracyCloseTask() *asynq.Task {
	return asynq.NewTask(TaskAccuracyClose, nil)
}

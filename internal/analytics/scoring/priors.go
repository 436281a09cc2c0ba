package scoring

import (
	"context"
	"sync"

	"pipeline_analytics_backend/internal/analytics/repository"

	"github.com/google/uuid"
)

// priorCache loads each pipeline's conversion priors once per batch run.
// Safe for concurrent use by the scoring workers.
type priorCache struct {
	reader        repository.PriorReader
	minSampleSize int

	mu         sync.Mutex
	byPipeline map[uuid.UUID]*pipelinePriors
}

func newPriorCache(reader repository.PriorReader, minSampleSize int) *priorCache {
	return &priorCache{
		reader:        reader,
		minSampleSize: minSampleSize,
		byPipeline:    make(map[uuid.UUID]*pipelinePriors),
	}
}

func (c *priorCache) forPipeline(ctx context.Context, pipelineID uuid.UUID) (*pipelinePriors, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if priors, ok := c.byPipeline[pipelineID]; ok {
		return priors, nil
	}

	rows, err := c.reader.ListStagePriors(ctx, pipelineID, c.minSampleSize)
	if err != nil {
		return nil, err
	}

	priors := buildPipelinePriors(rows)
	c.byPipeline[pipelineID] = priors
	return priors, nil
}

type stageUserKey struct {
	stageID uuid.UUID
	userID  uuid.UUID
}

type groupPrior struct {
	rate    float64
	avgDays float64
	samples int
}

// pipelinePriors indexes one pipeline's priors per (stage, user) group and as
// sample-weighted aggregates per stage.
type pipelinePriors struct {
	byGroup map[stageUserKey]groupPrior
	byStage map[uuid.UUID]groupPrior
}

func buildPipelinePriors(rows []repository.HistoricalConversion) *pipelinePriors {
	priors := &pipelinePriors{
		byGroup: make(map[stageUserKey]groupPrior),
		byStage: make(map[uuid.UUID]groupPrior),
	}

	type accum struct {
		rateWeighted float64
		daysWeighted float64
		samples      int
	}
	stageAccum := make(map[uuid.UUID]*accum)

	for _, row := range rows {
		rate, _ := row.ConversionRate.Float64()
		days, _ := row.AverageTimeInStage.Float64()

		priors.byGroup[stageUserKey{stageID: row.StageID, userID: row.UserID}] = groupPrior{
			rate:    rate,
			avgDays: days,
			samples: row.SampleSize,
		}

		acc := stageAccum[row.StageID]
		if acc == nil {
			acc = &accum{}
			stageAccum[row.StageID] = acc
		}
		acc.rateWeighted += rate * float64(row.SampleSize)
		acc.daysWeighted += days * float64(row.SampleSize)
		acc.samples += row.SampleSize
	}

	for stageID, acc := range stageAccum {
		if acc.samples == 0 {
			continue
		}
		priors.byStage[stageID] = groupPrior{
			rate:    acc.rateWeighted / float64(acc.samples),
			avgDays: acc.daysWeighted / float64(acc.samples),
			samples: acc.samples,
		}
	}

	return priors
}

// groupRate returns the conversion rate for the exact (stage, user) group,
// falling back to the stage aggregate when the user has no prior.
func (p *pipelinePriors) groupRate(stageID, userID uuid.UUID) (rate float64, samples int, ok bool) {
	if prior, found := p.byGroup[stageUserKey{stageID: stageID, userID: userID}]; found {
		return prior.rate, prior.samples, true
	}
	if prior, found := p.byStage[stageID]; found {
		return prior.rate, prior.samples, true
	}
	return 0, 0, false
}

// stageRate returns the sample-weighted conversion rate across all users of a
// stage.
func (p *pipelinePriors) stageRate(stageID uuid.UUID) (rate float64, samples int, ok bool) {
	prior, found := p.byStage[stageID]
	if !found {
		return 0, 0, false
	}
	return prior.rate, prior.samples, true
}

// averageStageDays returns the sample-weighted average dwell time for a
// stage, or 0 when no prior exists.
func (p *pipelinePriors) averageStageDays(stageID uuid.UUID) float64 {
	return p.byStage[stageID].avgDays
}

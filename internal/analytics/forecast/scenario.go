package forecast

import (
	"context"
	"fmt"
	"time"

	"pipeline_analytics_backend/internal/analytics/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scenario is one labeled projection band.
type Scenario struct {
	Name        string          `json:"name"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

// ScenarioSet holds the three projection bands plus derived spread metrics.
// For any non-negative lead set, WorstCase <= Weighted <= BestCase.
type ScenarioSet struct {
	Weighted  Scenario `json:"weighted"`
	BestCase  Scenario `json:"best_case"`
	WorstCase Scenario `json:"worst_case"`

	Upside     decimal.Decimal `json:"upside"`      // best - weighted
	Downside   decimal.Decimal `json:"downside"`    // weighted - worst
	Spread     decimal.Decimal `json:"spread"`      // best - worst
	RiskReward decimal.Decimal `json:"risk_reward"` // upside / downside, 0 when downside is 0
}

func (s *Service) buildScenarioSet(leads []domain.Lead, priors *priorIndex) ScenarioSet {
	weighted := decimal.Zero
	best := decimal.Zero
	worst := decimal.Zero

	for _, lead := range leads {
		prob := priors.stageProbability(lead.PipelineID, lead.StageID, s.defaultStageRate)
		worstRate := priors.stageWorstRate(lead.PipelineID, lead.StageID, s.worstCaseFloor)

		weighted = weighted.Add(lead.Value.Mul(prob))
		best = best.Add(lead.Value)
		worst = worst.Add(lead.Value.Mul(worstRate))
	}

	weighted = weighted.Round(2)
	best = best.Round(2)
	worst = worst.Round(2)

	upside := best.Sub(weighted)
	downside := weighted.Sub(worst)
	riskReward := decimal.Zero
	if !downside.IsZero() {
		riskReward = upside.Div(downside).Round(2)
	}

	return ScenarioSet{
		Weighted: Scenario{
			Name:        "weighted",
			Value:       weighted,
			Description: "Probability-weighted projection from historical stage conversion rates",
		},
		BestCase: Scenario{
			Name:        "best_case",
			Value:       best,
			Description: "Every open deal closes won",
		},
		WorstCase: Scenario{
			Name:        "worst_case",
			Value:       worst,
			Description: "Only the historically worst observed conversion per stage materializes",
		},
		Upside:     upside,
		Downside:   downside,
		Spread:     best.Sub(worst),
		RiskReward: riskReward,
	}
}

// priorIndex holds per-pipeline stage probabilities and worst-case rates for
// one scenario computation.
type priorIndex struct {
	stageRates map[uuid.UUID]map[uuid.UUID]stagePrior      // pipeline -> stage
	worstRates map[uuid.UUID]map[uuid.UUID]decimal.Decimal // pipeline -> stage
	samples    int
	latestEnd  time.Time
}

type stagePrior struct {
	rate    decimal.Decimal // percentage 0-100
	samples int
}

func (s *Service) loadPriors(ctx context.Context, leads []domain.Lead) (*priorIndex, error) {
	index := &priorIndex{
		stageRates: make(map[uuid.UUID]map[uuid.UUID]stagePrior),
		worstRates: make(map[uuid.UUID]map[uuid.UUID]decimal.Decimal),
	}

	for _, lead := range leads {
		if _, done := index.stageRates[lead.PipelineID]; done {
			continue
		}

		rows, err := s.repo.ListStagePriors(ctx, lead.PipelineID, s.minSampleSize)
		if err != nil {
			return nil, fmt.Errorf("list stage priors: %w", err)
		}

		type accum struct {
			rateWeighted decimal.Decimal
			samples      int
		}
		stageAccum := make(map[uuid.UUID]*accum)
		for _, row := range rows {
			acc := stageAccum[row.StageID]
			if acc == nil {
				acc = &accum{rateWeighted: decimal.Zero}
				stageAccum[row.StageID] = acc
			}
			acc.rateWeighted = acc.rateWeighted.Add(row.ConversionRate.Mul(decimal.NewFromInt(int64(row.SampleSize))))
			acc.samples += row.SampleSize
			index.samples += row.SampleSize
			if row.PeriodEnd.After(index.latestEnd) {
				index.latestEnd = row.PeriodEnd
			}
		}

		rates := make(map[uuid.UUID]stagePrior, len(stageAccum))
		for stageID, acc := range stageAccum {
			if acc.samples == 0 {
				continue
			}
			rates[stageID] = stagePrior{
				rate:    acc.rateWeighted.Div(decimal.NewFromInt(int64(acc.samples))),
				samples: acc.samples,
			}
		}
		index.stageRates[lead.PipelineID] = rates

		worst, err := s.repo.StageWorstRates(ctx, lead.PipelineID, s.minSampleSize)
		if err != nil {
			return nil, fmt.Errorf("stage worst rates: %w", err)
		}
		index.worstRates[lead.PipelineID] = worst
	}

	return index, nil
}

// stageProbability returns the win probability fraction for a stage, falling
// back to the configured default when no prior has sufficient samples.
func (p *priorIndex) stageProbability(pipelineID, stageID uuid.UUID, fallback decimal.Decimal) decimal.Decimal {
	if rates, ok := p.stageRates[pipelineID]; ok {
		if prior, ok := rates[stageID]; ok {
			return prior.rate.Div(decimal.NewFromInt(100))
		}
	}
	return fallback
}

// stageWorstRate returns the lowest observed conversion fraction for a stage,
// or the conservative floor when no prior exists.
func (p *priorIndex) stageWorstRate(pipelineID, stageID uuid.UUID, floor decimal.Decimal) decimal.Decimal {
	if rates, ok := p.worstRates[pipelineID]; ok {
		if rate, ok := rates[stageID]; ok {
			return rate.Div(decimal.NewFromInt(100))
		}
	}
	return floor
}

func (p *priorIndex) totalSamples() int { return p.samples }

func (p *priorIndex) latestPeriodEnd() time.Time { return p.latestEnd }

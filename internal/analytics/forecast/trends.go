package forecast

import (
	"context"
	"fmt"
	"math"

	"pipeline_analytics_backend/internal/analytics/domain"
	"pipeline_analytics_backend/internal/analytics/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrendAnalysis is the reporting view of recent forecast and realized
// performance, consumed by dashboards.
type TrendAnalysis struct {
	Months []repository.MonthlyTrendPoint `json:"months"`

	// GrowthRatePct is the month-over-month growth of realized closed-won
	// value, latest month vs the one before.
	GrowthRatePct decimal.Decimal `json:"growth_rate_pct"`

	// Volatility buckets the coefficient of variation of monthly realized
	// totals.
	Volatility             domain.Level `json:"volatility"`
	CoefficientOfVariation float64      `json:"coefficient_of_variation"`
}

// Trends returns the monthly trend series plus growth and volatility
// derivations. A nil userID aggregates across all users.
func (s *Service) Trends(ctx context.Context, userID uuid.UUID) (TrendAnalysis, error) {
	months, err := s.repo.MonthlyForecastTrend(ctx, userID, trendMonthsBack)
	if err != nil {
		return TrendAnalysis{}, fmt.Errorf("monthly forecast trend: %w", err)
	}

	wonTotals, err := s.repo.MonthlyWonTotals(ctx, userID, trendMonthsBack)
	if err != nil {
		return TrendAnalysis{}, fmt.Errorf("monthly won totals: %w", err)
	}

	cv := coefficientOfVariation(wonTotals)
	return TrendAnalysis{
		Months:                 months,
		GrowthRatePct:          growthRate(wonTotals),
		Volatility:             domain.ClassifyVolatility(cv),
		CoefficientOfVariation: cv,
	}, nil
}

// growthRate compares the two most recent months of realized value. Zero when
// there is no prior month to compare against.
func growthRate(totals []repository.MonthlyWonTotal) decimal.Decimal {
	if len(totals) < 2 {
		return decimal.Zero
	}

	latest := totals[len(totals)-1].Total
	previous := totals[len(totals)-2].Total
	if previous.IsZero() {
		return decimal.Zero
	}

	return latest.Sub(previous).
		Div(previous).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// coefficientOfVariation computes sigma/mu over monthly realized totals.
// Zero when fewer than two months or when the mean is zero.
func coefficientOfVariation(totals []repository.MonthlyWonTotal) float64 {
	if len(totals) < 2 {
		return 0
	}

	sum := 0.0
	for _, t := range totals {
		v, _ := t.Total.Float64()
		sum += v
	}
	mean := sum / float64(len(totals))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, t := range totals {
		v, _ := t.Total.Float64()
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(totals))

	return math.Sqrt(variance) / mean
}

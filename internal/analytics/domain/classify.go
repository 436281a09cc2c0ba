package domain

import "github.com/shopspring/decimal"

// Classification thresholds. These are policy constants, not derived values;
// boundary semantics are inclusive on the lower bound of each band.
const (
	ConversionRateHigh   = 70
	ConversionRateMedium = 40

	VelocityFastDays = 7
	VelocitySlowDays = 30

	ConfidenceHighSamples   = 100
	ConfidenceMediumSamples = 30

	PriorityHighScore   = 80
	PriorityMediumScore = 50

	WinProbabilityHigh   = 70
	WinProbabilityMedium = 40

	AccuracyHighPct     = 10
	AccuracyModeratePct = 25

	VolatilityLowCV  = 0.15
	VolatilityHighCV = 0.30
)

// Level is a three-valued classification band.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// VelocityLevel describes how quickly leads move through a stage.
type VelocityLevel string

const (
	VelocityFast     VelocityLevel = "fast"
	VelocityModerate VelocityLevel = "moderate"
	VelocitySlow     VelocityLevel = "slow"
)

// AccuracyLevel describes how close a forecast landed to the realized value.
type AccuracyLevel string

const (
	AccuracyHigh     AccuracyLevel = "high"
	AccuracyModerate AccuracyLevel = "moderate"
	AccuracyPoor     AccuracyLevel = "poor"
)

// ClassifyConversionRate bands a conversion rate percentage.
func ClassifyConversionRate(rate decimal.Decimal) Level {
	switch {
	case rate.GreaterThanOrEqual(decimal.NewFromInt(ConversionRateHigh)):
		return LevelHigh
	case rate.GreaterThanOrEqual(decimal.NewFromInt(ConversionRateMedium)):
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClassifyVelocity bands the average time in stage, in days.
func ClassifyVelocity(days decimal.Decimal) VelocityLevel {
	switch {
	case days.LessThan(decimal.NewFromInt(VelocityFastDays)):
		return VelocityFast
	case days.GreaterThanOrEqual(decimal.NewFromInt(VelocitySlowDays)):
		return VelocitySlow
	default:
		return VelocityModerate
	}
}

// ClassifyConfidence bands a sample size into statistical confidence.
func ClassifyConfidence(sampleSize int) Level {
	switch {
	case sampleSize >= ConfidenceHighSamples:
		return LevelHigh
	case sampleSize >= ConfidenceMediumSamples:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClassifyPriority bands a composite deal score.
func ClassifyPriority(score decimal.Decimal) Level {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(PriorityHighScore)):
		return LevelHigh
	case score.GreaterThanOrEqual(decimal.NewFromInt(PriorityMediumScore)):
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClassifyWinProbability bands a win probability percentage.
func ClassifyWinProbability(probability decimal.Decimal) Level {
	switch {
	case probability.GreaterThanOrEqual(decimal.NewFromInt(WinProbabilityHigh)):
		return LevelHigh
	case probability.GreaterThanOrEqual(decimal.NewFromInt(WinProbabilityMedium)):
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClassifyAccuracy bands the absolute variance percentage of a forecast.
func ClassifyAccuracy(variancePct decimal.Decimal) AccuracyLevel {
	abs := variancePct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(AccuracyHighPct)):
		return AccuracyHigh
	case abs.LessThanOrEqual(decimal.NewFromInt(AccuracyModeratePct)):
		return AccuracyModerate
	default:
		return AccuracyPoor
	}
}

// ClassifyVolatility bands a coefficient of variation (sigma over mu).
func ClassifyVolatility(cv float64) Level {
	switch {
	case cv < VolatilityLowCV:
		return LevelLow
	case cv < VolatilityHighCV:
		return LevelMedium
	default:
		return LevelHigh
	}
}

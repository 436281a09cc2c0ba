package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyConversionRateBoundaries(t *testing.T) {
	cases := []struct {
		rate float64
		want Level
	}{
		{70, LevelHigh},
		{69.99, LevelMedium},
		{40, LevelMedium},
		{39.99, LevelLow},
		{0, LevelLow},
		{100, LevelHigh},
	}
	for _, tc := range cases {
		if got := ClassifyConversionRate(decimal.NewFromFloat(tc.rate)); got != tc.want {
			t.Fatalf("rate %v: expected %s, got %s", tc.rate, tc.want, got)
		}
	}
}

func TestClassifyVelocityBoundaries(t *testing.T) {
	cases := []struct {
		days float64
		want VelocityLevel
	}{
		{6.99, VelocityFast},
		{7, VelocityModerate},
		{29.99, VelocityModerate},
		{30, VelocitySlow},
	}
	for _, tc := range cases {
		if got := ClassifyVelocity(decimal.NewFromFloat(tc.days)); got != tc.want {
			t.Fatalf("days %v: expected %s, got %s", tc.days, tc.want, got)
		}
	}
}

func TestClassifyConfidenceBoundaries(t *testing.T) {
	cases := []struct {
		samples int
		want    Level
	}{
		{100, LevelHigh},
		{99, LevelMedium},
		{30, LevelMedium},
		{29, LevelLow},
		{0, LevelLow},
	}
	for _, tc := range cases {
		if got := ClassifyConfidence(tc.samples); got != tc.want {
			t.Fatalf("samples %d: expected %s, got %s", tc.samples, tc.want, got)
		}
	}
}

func TestClassifyPriorityBoundaries(t *testing.T) {
	if got := ClassifyPriority(decimal.NewFromInt(80)); got != LevelHigh {
		t.Fatalf("score 80 should be high priority, got %s", got)
	}
	if got := ClassifyPriority(decimal.NewFromFloat(79.99)); got != LevelMedium {
		t.Fatalf("score 79.99 should be medium priority, got %s", got)
	}
	if got := ClassifyPriority(decimal.NewFromFloat(49.99)); got != LevelLow {
		t.Fatalf("score 49.99 should be low priority, got %s", got)
	}
}

func TestClassifyAccuracyUsesAbsoluteVariance(t *testing.T) {
	cases := []struct {
		pct  float64
		want AccuracyLevel
	}{
		{10, AccuracyHigh},
		{-10, AccuracyHigh},
		{10.01, AccuracyModerate},
		{-25, AccuracyModerate},
		{25.01, AccuracyPoor},
		{-80, AccuracyPoor},
	}
	for _, tc := range cases {
		if got := ClassifyAccuracy(decimal.NewFromFloat(tc.pct)); got != tc.want {
			t.Fatalf("variance %v%%: expected %s, got %s", tc.pct, tc.want, got)
		}
	}
}

func TestClassifyVolatilityBoundaries(t *testing.T) {
	if got := ClassifyVolatility(0.1499); got != LevelLow {
		t.Fatalf("cv 0.1499 should be low, got %s", got)
	}
	if got := ClassifyVolatility(0.15); got != LevelMedium {
		t.Fatalf("cv 0.15 should be medium, got %s", got)
	}
	if got := ClassifyVolatility(0.30); got != LevelHigh {
		t.Fatalf("cv 0.30 should be high, got %s", got)
	}
}

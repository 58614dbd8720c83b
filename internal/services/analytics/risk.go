package analytics

import (
	"math"

	"PatternScope/internal/domain/models"
	"PatternScope/internal/services/features"
)

// MaxDrawdown is the largest peak-to-trough fall as a fraction of the peak.
func MaxDrawdown(closes []float64) float64 {
	var peak, mdd float64
	for i, c := range closes {
		if i == 0 || c > peak {
			peak = c
		}
		if peak > 0 {
			mdd = math.Max(mdd, (peak-c)/peak)
		}
	}
	return mdd
}

// AggregatePatternRisk is the mean of (1 - confidence), 1 when there are no signals.
func AggregatePatternRisk(signals []models.PatternSignal) float64 {
	if len(signals) == 0 {
		return 1
	}
	var sum float64
	for _, s := range signals {
		sum += 1 - s.Confidence
	}
	return sum / float64(len(signals))
}

// ComputeRisk derives window-level risk metrics. Sharpe is per bar, not annualised.
func ComputeRisk(s *models.Series, signals []models.PatternSignal) models.RiskMetrics {
	rm := models.RiskMetrics{
		MaxDrawdown:          MaxDrawdown(s.Closes),
		ValueAtRisk95:        features.Percentile(s.Returns, 0.05),
		AggregatePatternRisk: AggregatePatternRisk(signals),
		Volatility:           features.RealizedVolatility(s.Returns, len(s.Returns), features.BarsPerYear(s.Timeframe)),
	}
	if sd, ok := features.StdDev(s.Returns); ok {
		rm.SharpeRatio = features.Mean(s.Returns) / sd
		rm.SharpeDefined = true
	}
	return rm
}

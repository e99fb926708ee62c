package indicators

import (
	"math"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// =============================================================================
// Rolling statistics
// =============================================================================

const (
	// LookbackDays 1년 영업일
	LookbackDays = 252

	// HistoryPoints processed 파일에 남기는 최근 관측치 수
	HistoryPoints = 60

	// MinSpreadPoints 이보다 짧은 스프레드는 skipped 로 보고
	MinSpreadPoints = 30

	// MinTrendPoints trend 계산에 필요한 최소 관측치 (positions [−20, −5) + 최근 5)
	MinTrendPoints = 20

	trendThresholdPct = 5.0
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev uses the N−1 divisor
func stdDev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// percentileBelow is the share of values strictly less than current, in [0, 100]
func percentileBelow(values []float64, current float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if v < current {
			n++
		}
	}
	return float64(n) / float64(len(values)) * 100
}

// ComputeStatistics returns the one-year statistics of the last value
func ComputeStatistics(values []float64) contracts.Statistics {
	if len(values) == 0 {
		return contracts.Statistics{Regime: contracts.RegimeNormal}
	}

	window := values
	if len(window) > LookbackDays {
		window = window[len(window)-LookbackDays:]
	}
	current := window[len(window)-1]

	m := mean(window)
	sd := stdDev(window, m)
	z := 0.0
	if sd > 0 {
		z = (current - m) / sd
	}
	pct := percentileBelow(window, current)

	return contracts.Statistics{
		Mean1Y:     round(m, 4),
		Std1Y:      round(sd, 4),
		ZScore1Y:   round(z, 4),
		Percentile: round(pct, 2),
		Regime:     ClassifyRegime(z, pct),
	}
}

// ClassifyRegime maps z-score and percentile to a regime
func ClassifyRegime(z, pct float64) contracts.Regime {
	switch {
	case math.Abs(z) > 2 || pct < 10 || pct > 90:
		return contracts.RegimeExtreme
	case math.Abs(z) > 1 || pct < 25 || pct > 75:
		if z > 0 {
			return contracts.RegimeDissonance
		}
		return contracts.RegimeCompression
	default:
		return contracts.RegimeNormal
	}
}

// ComputeTrend compares the mean of the last 5 values with the mean of positions [−20, −5)
func ComputeTrend(values []float64) (contracts.Trend, float64) {
	n := len(values)
	if n < MinTrendPoints {
		return contracts.TrendUndefined, 0
	}

	recent := mean(values[n-5:])
	base := mean(values[n-20 : n-5])
	if base == 0 {
		return contracts.TrendSideways, 0
	}

	delta := (recent - base) / math.Abs(base) * 100
	switch {
	case delta > trendThresholdPct:
		return contracts.TrendUp, round(delta, 2)
	case delta < -trendThresholdPct:
		return contracts.TrendDown, round(delta, 2)
	default:
		return contracts.TrendSideways, round(delta, 2)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

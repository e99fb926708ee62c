package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

func TestComputeStatistics(t *testing.T) {
	st := ComputeStatistics([]float64{1, 2, 3, 4, 5})

	assert.Equal(t, 3.0, st.Mean1Y)
	assert.InDelta(t, 1.5811, st.Std1Y, 1e-4)
	assert.InDelta(t, 1.2649, st.ZScore1Y, 1e-4)
	assert.Equal(t, 80.0, st.Percentile)
	assert.Equal(t, contracts.RegimeDissonance, st.Regime)
}

func TestComputeStatistics_Lookback(t *testing.T) {
	values := make([]float64, 300)
	for i := range values {
		values[i] = float64(i)
	}
	st := ComputeStatistics(values)

	// only the last 252 values (48..299) count
	assert.Equal(t, 173.5, st.Mean1Y)
	assert.InDelta(t, 99.6, st.Percentile, 0.01)
	assert.Equal(t, contracts.RegimeExtreme, st.Regime)
}

func TestComputeStatistics_ZeroStd(t *testing.T) {
	st := ComputeStatistics([]float64{7, 7, 7, 7})
	assert.Equal(t, 0.0, st.Std1Y)
	assert.Equal(t, 0.0, st.ZScore1Y)
}

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		name string
		z    float64
		pct  float64
		want contracts.Regime
	}{
		{"centre", 0, 50, contracts.RegimeNormal},
		{"high z", 2.5, 95, contracts.RegimeExtreme},
		{"high percentile only", 0.5, 95, contracts.RegimeExtreme},
		{"low percentile only", -0.5, 5, contracts.RegimeExtreme},
		{"moderately high", 1.5, 80, contracts.RegimeDissonance},
		{"moderately low", -1.5, 20, contracts.RegimeCompression},
		{"upper quartile", 0.5, 80, contracts.RegimeDissonance},
		{"lower quartile", -0.5, 20, contracts.RegimeCompression},
		{"boundary z", 1, 75, contracts.RegimeNormal},
		{"boundary z2", 2, 50, contracts.RegimeDissonance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegime(tt.z, tt.pct))
		})
	}
}

func TestComputeTrend(t *testing.T) {
	series := func(base, recent float64) []float64 {
		v := make([]float64, 0, 20)
		for i := 0; i < 15; i++ {
			v = append(v, base)
		}
		for i := 0; i < 5; i++ {
			v = append(v, recent)
		}
		return v
	}

	tests := []struct {
		name   string
		values []float64
		want   contracts.Trend
		pct    float64
	}{
		{"up", series(100, 110), contracts.TrendUp, 10},
		{"down", series(100, 90), contracts.TrendDown, -10},
		{"sideways", series(100, 102), contracts.TrendSideways, 2},
		{"exactly five", series(100, 105), contracts.TrendSideways, 5},
		{"too short", series(100, 110)[1:], contracts.TrendUndefined, 0},
		{"negative base", series(-100, -90), contracts.TrendUp, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pct := ComputeTrend(tt.values)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.pct, pct, 1e-9)
		})
	}
}

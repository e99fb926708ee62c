package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
)

func crushRegistry() *registry.Registry {
	return &registry.Registry{
		Symbols: map[string]registry.Symbol{
			"ZM": {Category: registry.CategoryGrains, Unit: "USD/short_ton"},
			"ZL": {Category: registry.CategoryGrains, Unit: "c/lb"},
			"ZS": {Category: registry.CategoryGrains, Unit: "c/bu"},
			"ZC": {Category: registry.CategoryGrains, Unit: "c/bu"},
		},
		Spreads: map[string]registry.Spread{
			"soy_crush": {
				Kind:       registry.KindSoyCrush,
				Components: []registry.Component{{Code: "ZM"}, {Code: "ZL"}, {Code: "ZS"}},
				Unit:       "USD/bu",
			},
			"zc_zs": {
				Kind:       registry.KindRatio,
				Components: []registry.Component{{Code: "ZC"}, {Code: "ZS"}},
				Unit:       "ratio",
			},
		},
	}
}

func TestSpreads_SoyCrushRederivation(t *testing.T) {
	h := contracts.PriceHistory{
		"ZM": weekdays(t, "2025-01-01", "2025-03-31", constant(340)),
		"ZL": weekdays(t, "2025-01-01", "2025-03-31", constant(54)),
		"ZS": weekdays(t, "2025-01-01", "2025-03-31", constant(1280)),
	}

	report, err := Spreads(crushRegistry(), h)
	require.NoError(t, err)

	crush, ok := report.Spreads["soy_crush"]
	require.True(t, ok)
	// 340·0.022 + 54·0.11 − 1280
	assert.InDelta(t, -1266.58, crush.Current, 0.01)
	assert.Equal(t, "USD/bu", crush.Unit)
	assert.Equal(t, []string{"ZM", "ZL", "ZS"}, crush.Inputs)
	assert.Equal(t, "2025-03-31", crush.AsOf)
	assert.Len(t, crush.History, HistoryPoints)
	assert.Equal(t, contracts.TrendSideways, crush.Trend)

	// ZC 없음 → skipped
	assert.Contains(t, report.Skipped["zc_zs"], "ZC")
}

func TestSpreads_IntersectsDates(t *testing.T) {
	zc := weekdays(t, "2025-01-01", "2025-03-31", func(d time.Time) float64 { return 400 })
	zs := weekdays(t, "2025-01-01", "2025-03-31", func(d time.Time) float64 { return 1000 })
	zc = zc[:len(zc)-3] // ZC 마지막 3일 결측

	reg := crushRegistry()
	delete(reg.Spreads, "soy_crush")

	report, err := Spreads(reg, contracts.PriceHistory{"ZC": zc, "ZS": zs})
	require.NoError(t, err)

	s := report.Spreads["zc_zs"]
	assert.Equal(t, zc[len(zc)-1].Date, s.AsOf)
	assert.Equal(t, len(zc), s.Points)
	assert.InDelta(t, 0.4, s.Current, 1e-9)
	assert.Nil(t, report.Skipped)
}

func TestSpreads_InsufficientHistory(t *testing.T) {
	reg := crushRegistry()
	delete(reg.Spreads, "soy_crush")
	h := contracts.PriceHistory{
		"ZC": weekdays(t, "2025-01-01", "2025-01-31", constant(400)),
		"ZS": weekdays(t, "2025-01-01", "2025-01-31", constant(1000)),
	}

	report, err := Spreads(reg, h)
	require.NoError(t, err)
	assert.Empty(t, report.Spreads)
	assert.Equal(t, "insufficient history: 23 points", report.Skipped["zc_zs"])
}

func TestSpreads_UnknownSymbol(t *testing.T) {
	reg := crushRegistry()
	reg.Spreads["bad"] = registry.Spread{Kind: registry.KindDifference, Components: []registry.Component{{Code: "ZC"}, {Code: "XX"}}}

	_, err := Spreads(reg, contracts.PriceHistory{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XX")
}

func TestSpreads_ShippedRegistryScales(t *testing.T) {
	reg := shippedRegistry(t)
	h := contracts.PriceHistory{
		"ZM": weekdays(t, "2025-01-01", "2025-03-31", constant(300)),
		"ZL": weekdays(t, "2025-01-01", "2025-03-31", constant(45)),
		"ZS": weekdays(t, "2025-01-01", "2025-03-31", constant(1000)),
	}

	report, err := Spreads(reg, h)
	require.NoError(t, err)

	// 300·0.022 + 45·0.11 − 1000·0.01
	assert.InDelta(t, 1.55, report.Spreads["soy_crush"].Current, 1e-9)
}

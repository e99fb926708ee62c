package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

func TestArbitrage_SoyDiscount(t *testing.T) {
	reg := shippedRegistry(t)
	h := contracts.PriceHistory{
		"ZS": weekdays(t, "2025-03-03", "2025-03-07", constant(1280)),
	}
	physical := map[string]contracts.PhysicalQuote{
		"SOJA_PARANAGUA": {Code: "SOJA_PARANAGUA", Price: 145.00, Unit: "BRL/sc60"},
	}

	report := Arbitrage(reg, h, physical, map[string]float64{"PTAX": 5.20})

	soy, ok := report.Pairs["soja_paranagua"]
	require.True(t, ok)
	// 1280/100 · (60/27.2155) · 5.20
	assert.InDelta(t, 146.74, soy.ReferenceInBRL, 0.01)
	assert.InDelta(t, -1.73, soy.SpreadBRL, 0.02)
	assert.InDelta(t, -1.18, soy.SpreadPct, 0.02)
	assert.Equal(t, DirectionDiscount, soy.Direction)
	assert.Equal(t, "c/bu", soy.ReferenceUnit)
	assert.Equal(t, "BRL/sc60", soy.LocalUnit)

	assert.Contains(t, report.Skipped["milho_campinas"], "ZC")
	assert.Contains(t, report.Skipped, "boi_sp")
}

func TestArbitrage_Premium(t *testing.T) {
	reg := shippedRegistry(t)
	h := contracts.PriceHistory{"LE": weekdays(t, "2025-03-03", "2025-03-07", constant(200))}
	physical := map[string]contracts.PhysicalQuote{"BOI_SP": {Price: 330, Unit: "BRL/arroba"}}

	report := Arbitrage(reg, h, physical, map[string]float64{"PTAX": 5.0})

	// 200/100 · (15/0.45359237) · 5.0 ≈ 330.69 → 330 is a discount
	boi := report.Pairs["boi_sp"]
	assert.InDelta(t, 330.69, boi.ReferenceInBRL, 0.01)
	assert.Equal(t, DirectionDiscount, boi.Direction)

	physical["BOI_SP"] = contracts.PhysicalQuote{Price: 340, Unit: "BRL/arroba"}
	report = Arbitrage(reg, h, physical, map[string]float64{"PTAX": 5.0})
	assert.Equal(t, DirectionPremium, report.Pairs["boi_sp"].Direction)
	assert.Greater(t, report.Pairs["boi_sp"].SpreadPct, 0.0)
}

func TestArbitrage_NoFX(t *testing.T) {
	reg := shippedRegistry(t)
	h := contracts.PriceHistory{"ZS": weekdays(t, "2025-03-03", "2025-03-07", constant(1280))}
	physical := map[string]contracts.PhysicalQuote{"SOJA_PARANAGUA": {Price: 145}}

	report := Arbitrage(reg, h, physical, nil)
	assert.Empty(t, report.Pairs)
	assert.Equal(t, "no fx rate PTAX", report.Skipped["soja_paranagua"])
}

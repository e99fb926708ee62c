package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ShippedRegistry(t *testing.T) {
	reg, data, err := Load("../../config/registry.yml")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Len(t, reg.ExchangeSymbols(), 19)
	assert.Equal(t, LevelCritical, reg.Level("prices"))
	assert.Equal(t, LevelImportant, reg.Level("eia"))
	assert.Equal(t, LevelOptional, reg.Level("weather"))
	assert.Equal(t, LevelOptional, reg.Level("not_listed"))
	assert.False(t, reg.Stocks.ProxyAllowedInReport)

	hash, err := Hash(reg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(reg)
	assert.Equal(t, hash, hash2)
}

func TestLoad_Minimal(t *testing.T) {
	reg, _, err := Load("testdata/minimal.yml")
	require.NoError(t, err)
	assert.Equal(t, []string{"ZC", "ZS"}, reg.SymbolsIn(CategoryGrains))
	assert.Equal(t, []string{"zc_zs"}, reg.SpreadNames())
	assert.Equal(t, []string{"prices", "cot", "news"}, reg.Adapters())
	assert.Empty(t, Warn(reg))
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, _, err := Load("testdata/typo.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plausible_rang")
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load("testdata/does_not_exist.yml")
	assert.Error(t, err)
}

func validRegistry() *Registry {
	return &Registry{
		Symbols: map[string]Symbol{
			"ZC":   {Category: CategoryGrains, Unit: "c/bu", PlausibleRange: [2]float64{250, 900}},
			"ZS":   {Category: CategoryGrains, Unit: "c/bu", PlausibleRange: [2]float64{800, 1800}},
			"ZM":   {Category: CategoryGrains, Unit: "USD/short_ton", PlausibleRange: [2]float64{250, 550}},
			"ZL":   {Category: CategoryGrains, Unit: "c/lb", PlausibleRange: [2]float64{30, 90}},
			"SOJA": {Category: CategoryPhysicalBR, Unit: "BRL/sc60", PlausibleRange: [2]float64{80, 200}},
			"PTAX": {Category: CategoryFX, Unit: "BRL/USD", PlausibleRange: [2]float64{4, 7}},
		},
		Spreads: map[string]Spread{
			"zc_zs": {Kind: KindRatio, Components: []Component{{Code: "ZC"}, {Code: "ZS"}}, Unit: "ratio"},
		},
		FailsafeLevels: FailsafeLevels{Critical: []string{"prices"}},
		Conversions: map[string]Conversion{
			"bu_soy": {KG: 27.2155, Source: "USDA"},
			"sc60":   {KG: 60, Source: "CEPEA"},
		},
		Arbitrage: map[string]ArbitragePair{
			"soja": {Reference: "ZS", Local: "SOJA", ReferenceUnit: "bu_soy", ReferenceScale: 0.01, LocalUnit: "sc60", FX: "PTAX"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *Registry)
		wantField string
	}{
		{"valid", func(r *Registry) {}, ""},
		{
			"energy unit on grain",
			func(r *Registry) {
				s := r.Symbols["ZC"]
				s.Unit = "USD/bbl"
				r.Symbols["ZC"] = s
			},
			"symbols.ZC.unit",
		},
		{
			"unknown category",
			func(r *Registry) {
				s := r.Symbols["ZC"]
				s.Category = "crypto"
				r.Symbols["ZC"] = s
			},
			"symbols.ZC.category",
		},
		{
			"inverted range",
			func(r *Registry) {
				s := r.Symbols["ZS"]
				s.PlausibleRange = [2]float64{1800, 800}
				r.Symbols["ZS"] = s
			},
			"symbols.ZS.plausible_range",
		},
		{
			"unknown spread kind",
			func(r *Registry) {
				r.Spreads["x"] = Spread{Kind: "formula", Components: []Component{{Code: "ZC"}}, Unit: "ratio"}
			},
			"spreads.x.kind",
		},
		{
			"wrong arity",
			func(r *Registry) {
				r.Spreads["crush"] = Spread{Kind: KindSoyCrush, Components: []Component{{Code: "ZM"}, {Code: "ZL"}}, Unit: "USD/bu"}
			},
			"spreads.crush.components",
		},
		{
			"unknown component",
			func(r *Registry) {
				r.Spreads["x"] = Spread{Kind: KindDifference, Components: []Component{{Code: "ZC"}, {Code: "XX"}}, Unit: "c/bu"}
			},
			"spreads.x.components[1]",
		},
		{
			"weighted without weight",
			func(r *Registry) {
				r.Spreads["w"] = Spread{Kind: KindWeighted, Components: []Component{{Code: "ZC"}}, Unit: "c/bu"}
			},
			"spreads.w.components[0].weight",
		},
		{
			"adapter in two levels",
			func(r *Registry) { r.FailsafeLevels.Optional = []string{"prices"} },
			"failsafe_levels",
		},
		{
			"no critical adapter",
			func(r *Registry) { r.FailsafeLevels.Critical = nil },
			"failsafe_levels.critical",
		},
		{
			"conversion without source",
			func(r *Registry) { r.Conversions["sc60"] = Conversion{KG: 60} },
			"conversions.sc60.source",
		},
		{
			"arbitrage unknown conversion",
			func(r *Registry) {
				p := r.Arbitrage["soja"]
				p.LocalUnit = "sc40"
				r.Arbitrage["soja"] = p
			},
			"arbitrage.soja.local_unit",
		},
		{
			"empty language trigger",
			func(r *Registry) { r.LanguageAudit = []LanguageRule{{Trigger: " "}} },
			"language_audit[0].trigger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := validRegistry()
			tt.mutate(reg)
			err := Validate(reg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var se SchemaError
			require.True(t, errors.As(err, &se), "expected SchemaError, got %v", err)
			assert.Equal(t, tt.wantField, se.Field)
		})
	}
}

func TestSpread_Evaluate(t *testing.T) {
	prices := map[string]float64{
		"ZC": 450, "ZS": 1050, "ZM": 300, "ZL": 45, "LE": 230, "GF": 330,
	}

	tests := []struct {
		name   string
		spread Spread
		want   float64
	}{
		{"ratio", Spread{Kind: KindRatio, Components: []Component{{Code: "ZC"}, {Code: "ZS"}}}, 450.0 / 1050.0},
		{"difference", Spread{Kind: KindDifference, Components: []Component{{Code: "ZS"}, {Code: "ZC"}}}, 600},
		{"weighted", Spread{Kind: KindWeighted, Components: []Component{{Code: "ZC", Weight: 0.5}, {Code: "ZS", Weight: 0.5}}}, 750},
		{"soy crush with scale", Spread{Kind: KindSoyCrush, Components: []Component{{Code: "ZM"}, {Code: "ZL"}, {Code: "ZS", Scale: 0.01}}}, 300*0.022 + 45*0.11 - 10.5},
		{"feedlot", Spread{Kind: KindFeedlot, Components: []Component{{Code: "LE"}, {Code: "GF"}, {Code: "ZC"}}}, 6*230 - 330 - 0.5*450},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spread.Evaluate(prices)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := Spread{Kind: KindRatio, Components: []Component{{Code: "ZC"}, {Code: "XX"}}}.Evaluate(prices)
	assert.Error(t, err)

	_, err = Spread{Kind: KindRatio, Components: []Component{{Code: "ZC"}, {Code: "Z0"}}}.Evaluate(map[string]float64{"ZC": 1, "Z0": 0})
	assert.Error(t, err)
}

func TestWarn(t *testing.T) {
	reg := validRegistry()
	reg.LanguageAudit = []LanguageRule{{Trigger: "crise", MinChangePct: 0}}
	s := reg.Symbols["ZC"]
	s.Origin = OriginReferenceExchange
	reg.Symbols["ZC"] = s

	var codes []string
	for _, w := range Warn(reg) {
		codes = append(codes, w.Code)
	}
	joined := strings.Join(codes, ",")
	assert.Contains(t, joined, "LANGUAGE_RULE_INERT")
	assert.Contains(t, joined, "NO_TICKER")
	assert.Contains(t, joined, "SPREAD_NO_RANGE")
}

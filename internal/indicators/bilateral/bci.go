package bilateral

import (
	"math"
	"sort"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// Component keys
const (
	ComponentFX          = "fx"
	ComponentBasis       = "basis"
	ComponentFreight     = "freight"
	ComponentSellingPace = "selling_pace"
	ComponentFOBPremium  = "fob_premium"
	ComponentCrushMargin = "crush_margin"
)

// Scoring methods
const (
	ScoringPercentile = "percentile"
	ScoringZ          = "zscore"
	ScoringMissing    = "missing"
)

// MinHistory is the number of observations needed before percentile scoring
const MinHistory = 20

// ComponentSpec describes one BCI input and its historical distribution.
// Invert: 원값이 클수록 브라질 경쟁력이 낮은 경우
type ComponentSpec struct {
	Key       string
	Name      string
	WeightPct int
	Mean      float64
	Std       float64
	Invert    bool
}

// Components of the index; weights sum to 100
var Components = []ComponentSpec{
	{Key: ComponentFX, Name: "Câmbio PTAX", WeightPct: 30, Mean: 5.15, Std: 0.55},
	{Key: ComponentBasis, Name: "Prêmio Santos vs base Golfo", WeightPct: 20, Mean: -35, Std: 30, Invert: true},
	{Key: ComponentFreight, Name: "Frete EUA − Brasil", WeightPct: 15, Mean: 12, Std: 8},
	{Key: ComponentSellingPace, Name: "Ritmo de comercialização MT", WeightPct: 15, Mean: 0, Std: 8},
	{Key: ComponentFOBPremium, Name: "FOB Golfo − FOB Brasil", WeightPct: 10, Mean: 10, Std: 18},
	{Key: ComponentCrushMargin, Name: "Margem de esmagamento BR − EUA", WeightPct: 10, Mean: 5, Std: 10},
}

// SellingPaceReference is the typical share (%) of the current MT soybean crop already sold, by month
var SellingPaceReference = map[int]float64{
	1: 38, 2: 45, 3: 55, 4: 63, 5: 70, 6: 76,
	7: 81, 8: 86, 9: 90, 10: 94, 11: 97, 12: 99,
}

// RawComponents derives the raw value of each component that has live inputs
func RawComponents(m Market, lc *contracts.LandedCost) map[string]float64 {
	raw := make(map[string]float64)

	if m.PTAX != nil && *m.PTAX > 0 {
		raw[ComponentFX] = *m.PTAX
	}

	if premium, ok := m.imea(imeaPremium); ok {
		raw[ComponentBasis] = premium - DefaultGulfBasisCentsBu
	}

	barge, bargeLive := m.Barge()
	oceanUS, oceanUSLive := m.OceanGulf()
	interior, interiorLive := m.InteriorBrazil()
	oceanBR, oceanBRLive := m.OceanBrazil("")
	if bargeLive || oceanUSLive || interiorLive || oceanBRLive {
		raw[ComponentFreight] = (barge + oceanUS) - (interior + oceanBR)
	}

	if sold, ok := m.imea(imeaSelling); ok {
		if ref, ok := SellingPaceReference[m.Month]; ok {
			raw[ComponentSellingPace] = sold - ref
		}
	}

	if lc != nil {
		raw[ComponentFOBPremium] = lc.FOBSpread
	}

	if brMargin, ok := m.imea(imeaCrush); ok && m.USCrushUSDBu != nil && m.PTAX != nil && *m.PTAX > 0 {
		raw[ComponentCrushMargin] = brMargin / *m.PTAX - *m.USCrushUSDBu*BushelsPerMT
	}

	return raw
}

// ScoreZ maps a raw value to 0..100 as 50 + 20·z against the registered distribution
func ScoreZ(raw float64, spec ComponentSpec) float64 {
	z := 0.0
	if spec.Std > 0 {
		z = (raw - spec.Mean) / spec.Std
	}
	if spec.Invert {
		z = -z
	}
	return clip(50 + 20*z)
}

// ScorePercentileOf is the empirical percentile of raw within history (ties count half)
func ScorePercentileOf(raw float64, history []float64, invert bool) float64 {
	below, equal := 0, 0
	for _, v := range history {
		switch {
		case v < raw:
			below++
		case v == raw:
			equal++
		}
	}
	pct := (float64(below) + 0.5*float64(equal)) / float64(len(history)) * 100
	if invert {
		pct = 100 - pct
	}
	return clip(pct)
}

// ComponentSignal labels a component score
func ComponentSignal(score float64) string {
	switch {
	case score >= 65:
		return contracts.SignalBullish
	case score <= 35:
		return contracts.SignalBearish
	default:
		return contracts.SignalNeutral
	}
}

// Bucket labels the composite score
func Bucket(score float64) string {
	switch {
	case score >= 80:
		return "STRONG"
	case score >= 60:
		return "MODERATE"
	case score >= 40:
		return "NEUTRAL"
	case score >= 20:
		return "WEAK"
	default:
		return "VERY_WEAK"
	}
}

// BCI scores each component by its own empirical percentile when history is
// long enough, otherwise by z against the registered distribution.
// 입력이 없는 구성요소는 중립(50)으로 처리하고 method=missing 으로 표시
func BCI(raw map[string]float64, history map[string][]float64) contracts.BCI {
	out := contracts.BCI{Commodity: "soybeans"}

	total := 0.0
	for _, spec := range Components {
		c := contracts.BCIComponent{Key: spec.Key, Name: spec.Name, WeightPct: spec.WeightPct}

		v, ok := raw[spec.Key]
		switch {
		case !ok:
			c.Score = 50
			c.Method = ScoringMissing
		case len(history[spec.Key]) >= MinHistory:
			c.RawValue = round(v, 4)
			c.Score = round(ScorePercentileOf(v, history[spec.Key], spec.Invert), 1)
			c.Method = ScoringPercentile
		default:
			c.RawValue = round(v, 4)
			c.Score = round(ScoreZ(v, spec), 1)
			c.Method = ScoringZ
		}

		c.WeightedScore = round(c.Score*float64(spec.WeightPct)/100, 2)
		c.Signal = ComponentSignal(c.Score)
		total += c.Score * float64(spec.WeightPct) / 100
		out.Components = append(out.Components, c)
	}

	out.Score = round(total, 1)
	out.Signal = Bucket(out.Score)

	ranked := make([]contracts.BCIComponent, 0, len(out.Components))
	for _, c := range out.Components {
		if c.Method != ScoringMissing {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) > 0 {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
		out.Strongest = ranked[0].Key
		out.Weakest = ranked[len(ranked)-1].Key
	}
	return out
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

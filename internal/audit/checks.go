package audit

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
)

// Thresholds
const (
	StaleHours     = 24.0
	VeryStaleHours = 48.0

	// 범위 중간값 대비 편차 (%)
	RangeCriticalPct = 50.0

	SpreadFlagRatio  = 0.003
	SpreadBlockRatio = 0.05
	spreadEpsilon    = 0.001

	StockFlagPct  = 50.0
	StockBlockPct = 100.0

	CrossPageRatio = 0.001
)

// Adapter names the checks read directly
const (
	adapterPrices       = "prices"
	adapterPhysicalBR   = "physical_br"
	adapterPhysicalIntl = "physical_intl"
	adapterEIA          = "eia"
	adapterBCB          = "bcb"
	adapterFAS          = "usda_fas"
	fxSeries            = "PTAX"
)

func finding(sev contracts.Severity, code, msg string, details map[string]interface{}) contracts.Finding {
	return contracts.Finding{Severity: sev, Code: code, Message: msg, Details: details}
}

// ============================================================================
// 1. Availability
// ============================================================================

// CheckAvailability requires every registered adapter to have usable output
func CheckAvailability(reg *registry.Registry, in *Inputs) []contracts.Finding {
	var out []contracts.Finding
	for _, name := range reg.Adapters() {
		if in.Snapshot(name).Usable() {
			continue
		}
		details := map[string]interface{}{"adapter": name}
		switch reg.Level(name) {
		case registry.LevelCritical:
			out = append(out, finding(contracts.SeverityBlock, contracts.CodeMissingCritical,
				fmt.Sprintf("critical source %s has no data", name), details))
		case registry.LevelImportant:
			out = append(out, finding(contracts.SeverityFlag, contracts.CodeMissingData,
				fmt.Sprintf("source %s has no data", name), details))
		default:
			out = append(out, finding(contracts.SeverityWarn, contracts.CodeMissingOptional,
				fmt.Sprintf("optional source %s has no data", name), details))
		}
	}
	return out
}

// ============================================================================
// 2. Freshness
// ============================================================================

// CheckFreshness ages the prices snapshot against the run clock
func CheckFreshness(_ *registry.Registry, in *Inputs) []contracts.Finding {
	snap := in.Snapshot(adapterPrices)
	if snap == nil {
		return nil
	}
	at, ok := snap.CollectedAt()
	if !ok {
		return nil
	}

	hours := in.Now.Sub(at).Hours()
	details := map[string]interface{}{
		"collected_at": snap.CollectionTimestamp,
		"age_hours":    math.Round(hours*10) / 10,
		"status":       string(snap.Status),
	}
	switch {
	case hours > VeryStaleHours:
		return []contracts.Finding{finding(contracts.SeverityBlock, contracts.CodeVeryStale,
			fmt.Sprintf("prices are %.0fh old", hours), details)}
	case hours > StaleHours:
		return []contracts.Finding{finding(contracts.SeverityFlag, contracts.CodeStale,
			fmt.Sprintf("prices are %.0fh old", hours), details)}
	}
	return nil
}

// ============================================================================
// 3. Range
// ============================================================================

// RangeFinding classifies a value against [lo, hi]; nil when inside.
// d = |x − mid| / mid · 100, d > 50 → BLOCK, 나머지 범위 밖 → FLAG
func RangeFinding(name string, x, lo, hi float64, unit string) *contracts.Finding {
	if x >= lo && x <= hi {
		return nil
	}
	mid := (lo + hi) / 2
	details := map[string]interface{}{
		"symbol": name,
		"value":  x,
		"range":  []float64{lo, hi},
		"unit":   unit,
	}
	if mid != 0 {
		d := math.Abs(x-mid) / math.Abs(mid) * 100
		details["deviation_pct"] = math.Round(d*10) / 10
		if d > RangeCriticalPct {
			f := finding(contracts.SeverityBlock, contracts.CodeRangeCritical,
				fmt.Sprintf("%s = %g %s is %.1f%% away from the range midpoint", name, x, unit, d), details)
			return &f
		}
	}
	f := finding(contracts.SeverityFlag, contracts.CodeRangeError,
		fmt.Sprintf("%s = %g %s outside [%g, %g]", name, x, unit, lo, hi), details)
	return &f
}

// CheckRanges applies the plausible ranges to every published scalar
func CheckRanges(reg *registry.Registry, in *Inputs) []contracts.Finding {
	var out []contracts.Finding
	add := func(code string, x float64) {
		sym, ok := reg.Symbols[code]
		if !ok {
			return
		}
		if f := RangeFinding(code, x, sym.PlausibleRange[0], sym.PlausibleRange[1], sym.Unit); f != nil {
			out = append(out, *f)
		}
	}

	// 거래소 종가
	closes := in.History.LastCloses()
	for _, code := range sortedKeys(closes) {
		add(code, closes[code])
	}

	// 현물
	for _, adapter := range []string{adapterPhysicalBR, adapterPhysicalIntl} {
		var data contracts.PhysicalData
		if in.decode(adapter, &data) {
			for _, code := range sortedKeys(data.Quotes) {
				add(code, data.Quotes[code].Price)
			}
		}
	}

	// EIA
	var eia contracts.EIAData
	if in.decode(adapterEIA, &eia) {
		for _, key := range sortedKeys(eia.Series) {
			add(key, eia.Series[key].LatestValue)
		}
	}

	// 환율
	var bcb contracts.BCBData
	if in.decode(adapterBCB, &bcb) {
		if s, ok := bcb.Series[fxSeries]; ok {
			add(fxSeries, s.Latest.Value)
		}
	}

	// 스프레드
	if in.Spreads != nil {
		for _, name := range sortedKeys(in.Spreads.Spreads) {
			sp, ok := reg.Spreads[name]
			if !ok || sp.PlausibleRange == nil {
				continue
			}
			r := *sp.PlausibleRange
			if f := RangeFinding(name, in.Spreads.Spreads[name].Current, r[0], r[1], sp.Unit); f != nil {
				out = append(out, *f)
			}
		}
	}

	return out
}

// ============================================================================
// 4. Unit coherence
// ============================================================================

// CheckUnits verifies registry units per category and the units adapters report
func CheckUnits(reg *registry.Registry, in *Inputs) []contracts.Finding {
	var out []contracts.Finding
	mismatch := func(code, got, want, where string) {
		out = append(out, finding(contracts.SeverityBlock, contracts.CodeUnitMismatch,
			fmt.Sprintf("%s reported in %s by %s, registry says %s", code, got, where, want),
			map[string]interface{}{"symbol": code, "reported": got, "expected": want, "source": where}))
	}

	for _, code := range sortedKeys(reg.Symbols) {
		sym := reg.Symbols[code]
		if !registry.UnitAllowed(sym.Category, sym.Unit) {
			out = append(out, finding(contracts.SeverityBlock, contracts.CodeUnitMismatch,
				fmt.Sprintf("%s unit %s is not allowed for %s", code, sym.Unit, sym.Category),
				map[string]interface{}{"symbol": code, "unit": sym.Unit, "category": sym.Category}))
		}
	}

	check := func(code, unit, where string) {
		sym, ok := reg.Symbols[code]
		if !ok || unit == "" || unit == sym.Unit {
			return
		}
		mismatch(code, unit, sym.Unit, where)
	}

	var prices contracts.PricesData
	if in.decode(adapterPrices, &prices) {
		for _, code := range sortedKeys(prices.Units) {
			check(code, prices.Units[code], adapterPrices)
		}
	}
	for _, adapter := range []string{adapterPhysicalBR, adapterPhysicalIntl} {
		var data contracts.PhysicalData
		if in.decode(adapter, &data) {
			for _, code := range sortedKeys(data.Quotes) {
				check(code, data.Quotes[code].Unit, adapter)
			}
		}
	}
	var eia contracts.EIAData
	if in.decode(adapterEIA, &eia) {
		for _, key := range sortedKeys(eia.Series) {
			check(key, eia.Series[key].Unit, adapterEIA)
		}
	}

	return out
}

// ============================================================================
// 5. Spread reconciliation
// ============================================================================

// pricesAt returns each component's close on date, falling back to the last close
func pricesAt(h contracts.PriceHistory, codes []string, date string) map[string]float64 {
	out := make(map[string]float64, len(codes))
	for _, code := range codes {
		series := h[code]
		found := false
		for i := len(series) - 1; i >= 0; i-- {
			if series[i].Date == date && series[i].Close != nil {
				out[code] = *series[i].Close
				found = true
				break
			}
		}
		if !found {
			if p, ok := series.LastClose(); ok {
				out[code] = p.Value
			}
		}
	}
	return out
}

// SpreadDiff is the relative difference used by the reconciliation
func SpreadDiff(stored, calc float64) float64 {
	den := math.Max(math.Max(math.Abs(stored), math.Abs(calc)), spreadEpsilon)
	return math.Abs(calc-stored) / den
}

// spreadCoefficients are the linear legs of each fixed-formula kind, in role order.
// ratio 는 선형이 아니므로 RecomputeSpread 에서 따로 계산
var spreadCoefficients = map[string][]float64{
	registry.KindDifference: {1, -1},
	registry.KindSoyCrush:   {0.022, 0.11, -1}, // zm, zl, zs
	registry.KindFeedlot:    {6, -1, -0.5},     // le, gf, zc
}

// RecomputeSpread derives a spread value from raw closes without going
// through the indicator engine's evaluator.
// weighted 는 component weight 를 계수로 사용
func RecomputeSpread(sp registry.Spread, prices map[string]float64) (float64, error) {
	legs := make([]float64, len(sp.Components))
	for i, c := range sp.Components {
		p, ok := prices[c.Code]
		if !ok {
			return 0, fmt.Errorf("no close for %s", c.Code)
		}
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		legs[i] = p * scale
	}

	var coef []float64
	switch sp.Kind {
	case registry.KindRatio:
		if len(legs) != 2 {
			return 0, fmt.Errorf("ratio needs 2 legs, got %d", len(legs))
		}
		if legs[1] == 0 {
			return 0, fmt.Errorf("ratio denominator %s is zero", sp.Components[1].Code)
		}
		return legs[0] / legs[1], nil
	case registry.KindWeighted:
		coef = make([]float64, len(sp.Components))
		for i, c := range sp.Components {
			coef[i] = c.Weight
		}
	default:
		var ok bool
		if coef, ok = spreadCoefficients[sp.Kind]; !ok {
			return 0, fmt.Errorf("unknown spread kind %q", sp.Kind)
		}
	}
	if len(coef) != len(legs) {
		return 0, fmt.Errorf("%s needs %d legs, got %d", sp.Kind, len(coef), len(legs))
	}

	total := 0.0
	for i, leg := range legs {
		total += coef[i] * leg
	}
	return total, nil
}

// CheckSpreads re-derives every registered spread from raw closes
func CheckSpreads(reg *registry.Registry, in *Inputs) []contracts.Finding {
	var out []contracts.Finding
	for _, name := range reg.SpreadNames() {
		sp := reg.Spreads[name]

		var stored contracts.ProcessedIndicator
		ok := false
		if in.Spreads != nil {
			stored, ok = in.Spreads.Spreads[name]
		}
		if !ok {
			details := map[string]interface{}{"spread": name}
			if in.Spreads != nil && in.Spreads.Skipped[name] != "" {
				details["reason"] = in.Spreads.Skipped[name]
			}
			out = append(out, finding(contracts.SeverityWarn, contracts.CodeSpreadMissing,
				fmt.Sprintf("spread %s missing from processed output", name), details))
			continue
		}

		calc, err := RecomputeSpread(sp, pricesAt(in.History, sp.Codes(), stored.AsOf))
		if err != nil {
			continue
		}
		diff := SpreadDiff(stored.Current, calc)
		details := map[string]interface{}{
			"spread":   name,
			"stored":   stored.Current,
			"computed": calc,
			"diff_pct": math.Round(diff*1e5) / 1e3,
			"as_of":    stored.AsOf,
		}
		switch {
		case diff > SpreadBlockRatio:
			out = append(out, finding(contracts.SeverityBlock, contracts.CodeSpreadMismatch,
				fmt.Sprintf("spread %s stored %g, recomputed %g", name, stored.Current, calc), details))
		case diff > SpreadFlagRatio:
			out = append(out, finding(contracts.SeverityFlag, contracts.CodeSpreadMismatch,
				fmt.Sprintf("spread %s stored %g, recomputed %g", name, stored.Current, calc), details))
		}
	}
	return out
}

// ============================================================================
// 6. Stock outliers
// ============================================================================

// CheckStocks flags deviations too large to be a real stocks move
func CheckStocks(_ *registry.Registry, in *Inputs) []contracts.Finding {
	var out []contracts.Finding
	if in.Stocks != nil {
		for _, sym := range sortedKeys(in.Stocks.Commodities) {
			e := in.Stocks.Commodities[sym]
			if e.DeviationPct == nil {
				continue
			}
			dev := *e.DeviationPct
			details := map[string]interface{}{
				"symbol":        sym,
				"deviation_pct": dev,
				"state":         string(e.State),
				"period":        e.Period,
			}
			switch {
			case math.Abs(dev) > StockBlockPct:
				out = append(out, finding(contracts.SeverityBlock, contracts.CodeStocksExtreme,
					fmt.Sprintf("%s stocks %+.1f%% vs average, check units", sym, dev), details))
			case math.Abs(dev) > StockFlagPct:
				out = append(out, finding(contracts.SeverityFlag, contracts.CodeStocksOutlier,
					fmt.Sprintf("%s stocks %+.1f%% vs average", sym, dev), details))
			}
		}
	}

	var fas contracts.FASData
	if in.decode(adapterFAS, &fas) {
		for _, m := range fas.MixedSeries {
			out = append(out, finding(contracts.SeverityInfo, contracts.CodeMixedSeries,
				fmt.Sprintf("%s %s mixes %d series", m.Commodity, m.Period, len(m.ShortDescs)),
				map[string]interface{}{"commodity": m.Commodity, "period": m.Period, "short_descs": m.ShortDescs}))
		}
	}
	return out
}

// ============================================================================
// 7. Cross-artifact consistency
// ============================================================================

// CheckCrossArtifact compares report scalars with the prices latest close
func CheckCrossArtifact(_ *registry.Registry, in *Inputs) []contracts.Finding {
	if in.Report == nil {
		return nil
	}
	closes := in.History.LastCloses()

	var out []contracts.Finding
	for _, code := range sortedKeys(in.Report.Scalars) {
		last, ok := closes[code]
		if !ok || last == 0 {
			continue
		}
		shown := in.Report.Scalars[code].Value
		diff := math.Abs(shown-last) / math.Abs(last)
		if diff > CrossPageRatio {
			out = append(out, finding(contracts.SeverityFlag, contracts.CodeCrossPageMismatch,
				fmt.Sprintf("%s shown as %g in the report, latest close is %g", code, shown, last),
				map[string]interface{}{"symbol": code, "report": shown, "prices": last}))
		}
	}
	return out
}

// ============================================================================
// 8. Language
// ============================================================================

// MaxDailyMove is the largest |daily % change| across the exchange roster
func MaxDailyMove(reg *registry.Registry, h contracts.PriceHistory) float64 {
	peak := 0.0
	for _, code := range reg.ExchangeSymbols() {
		if chg, ok := h[code].DailyChangePct(); ok && math.Abs(chg) > peak {
			peak = math.Abs(chg)
		}
	}
	return peak
}

// CheckLanguage flags strong wording on a quiet day
func CheckLanguage(reg *registry.Registry, in *Inputs) []contracts.Finding {
	if in.Report == nil {
		return nil
	}
	text := strings.ToLower(in.Report.Text())
	move := MaxDailyMove(reg, in.History)

	var out []contracts.Finding
	for _, rule := range reg.LanguageAudit {
		if !strings.Contains(text, strings.ToLower(rule.Trigger)) || move >= rule.MinChangePct {
			continue
		}
		out = append(out, finding(contracts.SeverityFlag, contracts.CodeLanguageOverstatement,
			fmt.Sprintf("%q used but the largest move today is %.1f%% (min %.1f%%)", rule.Trigger, move, rule.MinChangePct),
			map[string]interface{}{"trigger": rule.Trigger, "max_change_pct": math.Round(move*100) / 100, "min_change_pct": rule.MinChangePct}))
	}
	return out
}

// ============================================================================
// 9. Provenance
// ============================================================================

// CheckProvenance requires source and collection timestamp on every snapshot
func CheckProvenance(_ *registry.Registry, in *Inputs) []contracts.Finding {
	var out []contracts.Finding
	for _, name := range sortedKeys(in.Snapshots) {
		snap := in.Snapshots[name]
		var missing []string
		if snap.Source == "" {
			missing = append(missing, "source")
		}
		if snap.CollectionTimestamp == "" {
			missing = append(missing, "collection_timestamp")
		}
		if len(missing) > 0 {
			out = append(out, finding(contracts.SeverityWarn, contracts.CodeNoMeta,
				fmt.Sprintf("%s snapshot missing %s", name, strings.Join(missing, ", ")),
				map[string]interface{}{"adapter": name, "missing": missing}))
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

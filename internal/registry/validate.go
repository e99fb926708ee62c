package registry

import (
	"fmt"
	"strings"
)

// SchemaError 검증 실패 (프로그램 중단)
type SchemaError struct {
	Field   string
	Message string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var allowedUnits = map[string][]string{
	CategoryGrains:       {"c/bu", "USD/short_ton", "c/lb"},
	CategorySofts:        {"c/lb", "USD/mt"},
	CategoryLivestock:    {"c/lb"},
	CategoryEnergy:       {"USD/bbl", "USD/MMBtu", "USD/gal"},
	CategoryMetals:       {"USD/troy_oz"},
	CategoryMacro:        {"index", "pct"},
	CategoryPhysicalBR:   {"BRL/sc60", "BRL/sc50", "BRL/arroba", "BRL/mt"},
	CategoryPhysicalIntl: {"USD/mt", "USD/bu"},
	CategoryEIA:          {"kbbl", "kbbl/d", "USD/gal", "USD/bbl", "USD/MMBtu"},
	CategoryFX:           {"BRL/USD"},
	CategorySpread:       {"ratio", "USD/bu", "USD/mt", "c/bu", "c/lb", "USD/bbl", "USD/cwt", "USD/head"},
}

// AllowedUnits returns the unit set of a category (nil for unknown categories)
func AllowedUnits(category string) []string {
	return allowedUnits[category]
}

// UnitAllowed reports whether unit belongs to the category's set
func UnitAllowed(category, unit string) bool {
	for _, u := range allowedUnits[category] {
		if u == unit {
			return true
		}
	}
	return false
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(reg *Registry) error {
	if len(reg.Symbols) == 0 {
		return SchemaError{"symbols", "required"}
	}

	// === Symbols ===
	for _, code := range sortedKeys(reg.Symbols) {
		s := reg.Symbols[code]
		field := "symbols." + code
		if _, ok := allowedUnits[s.Category]; !ok {
			return SchemaError{field + ".category", fmt.Sprintf("unknown category %q", s.Category)}
		}
		if !UnitAllowed(s.Category, s.Unit) {
			return SchemaError{field + ".unit", fmt.Sprintf("%q not allowed for %s (allowed: %s)", s.Unit, s.Category, strings.Join(allowedUnits[s.Category], ", "))}
		}
		if s.PlausibleRange[0] >= s.PlausibleRange[1] {
			return SchemaError{field + ".plausible_range", "lo must be < hi"}
		}
		switch s.Origin {
		case "", OriginReferenceExchange, OriginDomesticCash, OriginForeignCash:
		default:
			return SchemaError{field + ".origin", fmt.Sprintf("unknown origin %q", s.Origin)}
		}
	}

	// === Spreads ===
	for _, name := range sortedKeys(reg.Spreads) {
		sp := reg.Spreads[name]
		field := "spreads." + name
		n, ok := arity(sp.Kind)
		if !ok {
			return SchemaError{field + ".kind", fmt.Sprintf("unknown kind %q", sp.Kind)}
		}
		if n > 0 && len(sp.Components) != n {
			return SchemaError{field + ".components", fmt.Sprintf("%s needs %d components, got %d", sp.Kind, n, len(sp.Components))}
		}
		if len(sp.Components) == 0 {
			return SchemaError{field + ".components", "required"}
		}
		for i, c := range sp.Components {
			if _, ok := reg.Symbols[c.Code]; !ok {
				return SchemaError{fmt.Sprintf("%s.components[%d]", field, i), fmt.Sprintf("unknown symbol %q", c.Code)}
			}
			if sp.Kind == KindWeighted && c.Weight == 0 {
				return SchemaError{fmt.Sprintf("%s.components[%d].weight", field, i), "required for weighted spreads"}
			}
		}
		if !UnitAllowed(CategorySpread, sp.Unit) {
			return SchemaError{field + ".unit", fmt.Sprintf("%q not allowed for spreads", sp.Unit)}
		}
		if sp.PlausibleRange != nil && sp.PlausibleRange[0] >= sp.PlausibleRange[1] {
			return SchemaError{field + ".plausible_range", "lo must be < hi"}
		}
	}

	// === Language audit ===
	for i, rule := range reg.LanguageAudit {
		if strings.TrimSpace(rule.Trigger) == "" {
			return SchemaError{fmt.Sprintf("language_audit[%d].trigger", i), "required"}
		}
	}

	// === Failsafe levels ===
	if len(reg.FailsafeLevels.Critical) == 0 {
		return SchemaError{"failsafe_levels.critical", "at least one critical adapter required"}
	}
	seen := make(map[string]Level)
	levels := []struct {
		level    Level
		adapters []string
	}{
		{LevelCritical, reg.FailsafeLevels.Critical},
		{LevelImportant, reg.FailsafeLevels.Important},
		{LevelOptional, reg.FailsafeLevels.Optional},
	}
	for _, l := range levels {
		for _, a := range l.adapters {
			if prev, dup := seen[a]; dup {
				return SchemaError{"failsafe_levels", fmt.Sprintf("adapter %q listed in both %s and %s", a, prev, l.level)}
			}
			seen[a] = l.level
		}
	}

	// === Stocks ===
	for _, code := range sortedKeys(reg.Stocks.Series) {
		if _, ok := reg.Symbols[code]; !ok {
			return SchemaError{"stocks.series." + code, "unknown symbol"}
		}
	}

	// === Conversions ===
	for _, unit := range sortedKeys(reg.Conversions) {
		c := reg.Conversions[unit]
		if c.KG <= 0 {
			return SchemaError{"conversions." + unit + ".kg", "must be > 0"}
		}
		if c.Source == "" {
			return SchemaError{"conversions." + unit + ".source", "required"}
		}
	}

	// === Arbitrage ===
	for _, name := range sortedKeys(reg.Arbitrage) {
		p := reg.Arbitrage[name]
		field := "arbitrage." + name
		if _, ok := reg.Symbols[p.Reference]; !ok {
			return SchemaError{field + ".reference", fmt.Sprintf("unknown symbol %q", p.Reference)}
		}
		if _, ok := reg.Symbols[p.Local]; !ok {
			return SchemaError{field + ".local", fmt.Sprintf("unknown symbol %q", p.Local)}
		}
		if _, ok := reg.Conversions[p.ReferenceUnit]; !ok {
			return SchemaError{field + ".reference_unit", fmt.Sprintf("unknown conversion %q", p.ReferenceUnit)}
		}
		if _, ok := reg.Conversions[p.LocalUnit]; !ok {
			return SchemaError{field + ".local_unit", fmt.Sprintf("unknown conversion %q", p.LocalUnit)}
		}
		if p.ReferenceScale <= 0 {
			return SchemaError{field + ".reference_scale", "must be > 0"}
		}
		if p.FX == "" {
			return SchemaError{field + ".fx", "required"}
		}
	}

	return nil
}

// Warn returns recommendations that do not stop the run
func Warn(reg *Registry) []Warning {
	var warnings []Warning

	for i, rule := range reg.LanguageAudit {
		if rule.MinChangePct <= 0 {
			warnings = append(warnings, Warning{
				Code:    "LANGUAGE_RULE_INERT",
				Message: fmt.Sprintf("language_audit[%d] %q has min_change_pct <= 0 and never fires", i, rule.Trigger),
			})
		}
	}

	for _, code := range sortedKeys(reg.Symbols) {
		s := reg.Symbols[code]
		if s.Origin == OriginReferenceExchange && s.Ticker == "" {
			warnings = append(warnings, Warning{
				Code:    "NO_TICKER",
				Message: fmt.Sprintf("symbols.%s is an exchange symbol without ticker; prices adapter will skip it", code),
			})
		}
	}

	for _, name := range sortedKeys(reg.Spreads) {
		if reg.Spreads[name].PlausibleRange == nil {
			warnings = append(warnings, Warning{
				Code:    "SPREAD_NO_RANGE",
				Message: fmt.Sprintf("spreads.%s has no plausible_range; range check skipped", name),
			})
		}
	}

	return warnings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

package registry

// Registry is the read-only description of everything a run knows about
// ⭐ SSOT: 심볼, 스프레드, 언어 규칙, 어댑터 등급, 단위 환산은 모두 registry.yml 에서만 정의
type Registry struct {
	Version        string                   `yaml:"version" json:"version"`
	Symbols        map[string]Symbol        `yaml:"symbols" json:"symbols"`
	Spreads        map[string]Spread        `yaml:"spreads" json:"spreads"`
	LanguageAudit  []LanguageRule           `yaml:"language_audit" json:"language_audit"`
	FailsafeLevels FailsafeLevels           `yaml:"failsafe_levels" json:"failsafe_levels"`
	Stocks         StocksConfig             `yaml:"stocks" json:"stocks"`
	Conversions    map[string]Conversion    `yaml:"conversions" json:"conversions"`
	Arbitrage      map[string]ArbitragePair `yaml:"arbitrage" json:"arbitrage"`
}

// Category of a symbol
const (
	CategoryGrains       = "grains"
	CategorySofts        = "softs"
	CategoryLivestock    = "livestock"
	CategoryEnergy       = "energy"
	CategoryMetals       = "metals"
	CategoryMacro        = "macro"
	CategoryPhysicalBR   = "physical_br"
	CategoryPhysicalIntl = "physical_intl"
	CategoryEIA          = "eia"
	CategorySpread       = "spread"
	CategoryFX           = "fx"
)

// Origin of a price
const (
	OriginReferenceExchange = "reference_exchange"
	OriginDomesticCash      = "domestic_cash"
	OriginForeignCash       = "foreign_cash"
)

// Symbol is one tracked instrument or series
type Symbol struct {
	DisplayName    string     `yaml:"display_name" json:"display_name"`
	Category       string     `yaml:"category" json:"category"`
	Unit           string     `yaml:"unit" json:"unit"`
	PlausibleRange [2]float64 `yaml:"plausible_range" json:"plausible_range"`
	Exchange       string     `yaml:"exchange,omitempty" json:"exchange,omitempty"`
	Origin         string     `yaml:"origin,omitempty" json:"origin,omitempty"`
	Ticker         string     `yaml:"ticker,omitempty" json:"ticker,omitempty"`
}

// InRange reports whether v lies inside the plausible range
func (s Symbol) InRange(v float64) bool {
	return v >= s.PlausibleRange[0] && v <= s.PlausibleRange[1]
}

// Spread kinds (closed set)
const (
	KindRatio      = "ratio"
	KindDifference = "difference"
	KindWeighted   = "weighted"
	KindSoyCrush   = "soy_crush"
	KindFeedlot    = "feedlot"
)

// Spread is a derived relationship between symbols
type Spread struct {
	DisplayName    string      `yaml:"display_name" json:"display_name"`
	Kind           string      `yaml:"kind" json:"kind"`
	Components     []Component `yaml:"components" json:"components"`
	Unit           string      `yaml:"unit" json:"unit"`
	PlausibleRange *[2]float64 `yaml:"plausible_range,omitempty" json:"plausible_range,omitempty"`
	Description    string      `yaml:"description,omitempty" json:"description,omitempty"`
}

// Component is one leg of a spread.
// Scale 은 평가 전에 가격에 곱해짐 (예: c/bu → USD/bu 는 0.01). 0 이면 1
type Component struct {
	Code   string  `yaml:"code" json:"code"`
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Scale  float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// Factor returns the effective scale
func (c Component) Factor() float64 {
	if c.Scale == 0 {
		return 1
	}
	return c.Scale
}

// Codes returns the component symbol codes in role order
func (s Spread) Codes() []string {
	out := make([]string, len(s.Components))
	for i, c := range s.Components {
		out[i] = c.Code
	}
	return out
}

// LanguageRule flags strong wording on a quiet day
type LanguageRule struct {
	Trigger      string  `yaml:"trigger" json:"trigger"`
	MinChangePct float64 `yaml:"min_change_pct" json:"min_change_pct"`
}

// FailsafeLevels assigns adapters to criticality levels
type FailsafeLevels struct {
	Critical  []string `yaml:"critical" json:"critical"`
	Important []string `yaml:"important" json:"important"`
	Optional  []string `yaml:"optional" json:"optional"`
}

// Level of an adapter
type Level string

const (
	LevelCritical  Level = "critical"
	LevelImportant Level = "important"
	LevelOptional  Level = "optional"
)

// StocksConfig controls the stocks-vs-average indicator
type StocksConfig struct {
	ProxyAllowedInReport bool              `yaml:"proxy_allowed_in_report" json:"proxy_allowed_in_report"`
	Series               map[string]string `yaml:"series" json:"series"` // symbol → stocks commodity key
}

// Conversion is a unit's mass in kilograms with its provenance
type Conversion struct {
	KG     float64 `yaml:"kg" json:"kg"`
	Source string  `yaml:"source" json:"source"`
}

// ArbitragePair compares an exchange price to a local cash quote
type ArbitragePair struct {
	DisplayName    string  `yaml:"display_name" json:"display_name"`
	Reference      string  `yaml:"reference" json:"reference"`
	Local          string  `yaml:"local" json:"local"`
	ReferenceUnit  string  `yaml:"reference_unit" json:"reference_unit"`
	ReferenceScale float64 `yaml:"reference_scale" json:"reference_scale"`
	LocalUnit      string  `yaml:"local_unit" json:"local_unit"`
	FX             string  `yaml:"fx" json:"fx"`
}

// Level returns the criticality of an adapter (optional when unlisted)
func (r *Registry) Level(adapter string) Level {
	for _, a := range r.FailsafeLevels.Critical {
		if a == adapter {
			return LevelCritical
		}
	}
	for _, a := range r.FailsafeLevels.Important {
		if a == adapter {
			return LevelImportant
		}
	}
	return LevelOptional
}

// Adapters returns every adapter named in failsafe_levels
func (r *Registry) Adapters() []string {
	out := make([]string, 0, len(r.FailsafeLevels.Critical)+len(r.FailsafeLevels.Important)+len(r.FailsafeLevels.Optional))
	out = append(out, r.FailsafeLevels.Critical...)
	out = append(out, r.FailsafeLevels.Important...)
	out = append(out, r.FailsafeLevels.Optional...)
	return out
}

// SymbolsIn returns symbol codes of a category, sorted
func (r *Registry) SymbolsIn(category string) []string {
	var out []string
	for code, s := range r.Symbols {
		if s.Category == category {
			out = append(out, code)
		}
	}
	sortStrings(out)
	return out
}

// ExchangeSymbols returns the codes the prices adapter fetches (those with a ticker), sorted
func (r *Registry) ExchangeSymbols() []string {
	var out []string
	for code, s := range r.Symbols {
		if s.Ticker != "" {
			out = append(out, code)
		}
	}
	sortStrings(out)
	return out
}

// SpreadNames returns spread keys, sorted
func (r *Registry) SpreadNames() []string {
	out := make([]string, 0, len(r.Spreads))
	for name := range r.Spreads {
		out = append(out, name)
	}
	sortStrings(out)
	return out
}

package contracts

// Component signals of the competitiveness index
const (
	SignalBullish = "BULLISH"
	SignalBearish = "BEARISH"
	SignalNeutral = "NEUTRAL"
)

// BCIComponent is one weighted input of the Brazil Competitiveness Index
type BCIComponent struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	RawValue      float64 `json:"raw_value"`
	Score         float64 `json:"score"`
	WeightPct     int     `json:"weight_pct"`
	WeightedScore float64 `json:"weighted_score"`
	Signal        string  `json:"signal"`
	Method        string  `json:"method"` // percentile, zscore, missing
}

// BCI is the Brazil Competitiveness Index (0..100, higher = Brazil more competitive)
type BCI struct {
	Commodity  string         `json:"commodity"`
	Score      float64        `json:"score"`
	Signal     string         `json:"signal"` // STRONG, MODERATE, NEUTRAL, WEAK, VERY_WEAK
	Components []BCIComponent `json:"components"`
	Strongest  string         `json:"strongest"`
	Weakest    string         `json:"weakest"`
}

// LandedCost compares delivered soybean cost in Shanghai (USD/mt)
type LandedCost struct {
	USLanded          float64           `json:"us_landed_usd_mt"`
	BRLanded          float64           `json:"br_landed_usd_mt"`
	Spread            float64           `json:"spread_usd_mt"` // US − BR, positive = BR cheaper
	SpreadPct         float64           `json:"spread_pct"`
	CompetitiveOrigin string            `json:"competitive_origin"`
	USFOB             float64           `json:"us_fob_usd_mt"`
	BRFOB             float64           `json:"br_fob_usd_mt"`
	FOBSpread         float64           `json:"fob_spread_usd_mt"`
	USOcean           float64           `json:"us_ocean_usd_mt"`
	BROcean           float64           `json:"br_ocean_usd_mt"`
	OceanAdvantage    float64           `json:"ocean_advantage_br"`
	BRPriceMethod     string            `json:"br_price_method"` // paranagua, mt_interior
	PTAX              float64           `json:"ptax"`
	CBOTCentsBu       float64           `json:"cbot_cents_bu"`
	Assumptions       map[string]string `json:"assumptions,omitempty"`
}

// ExportOrigin is one side of the export race
type ExportOrigin struct {
	Origin          string  `json:"origin"` // US, BR
	YTDMMT          float64 `json:"ytd_mmt"`
	ChinaMMT        float64 `json:"china_mmt"`
	ChinaSharePct   float64 `json:"china_share_pct"`
	TargetMMT       float64 `json:"target_mmt"`
	PacePct         float64 `json:"pace_pct"`
	ExpectedPacePct float64 `json:"expected_pace_pct"`
	PaceVsSeasonal  float64 `json:"pace_vs_seasonal"`
	PaceSignal      string  `json:"pace_signal"` // AHEAD, ON_PACE, BEHIND
}

// ExportRace compares year-to-date exports of Brazil and the US
type ExportRace struct {
	Commodity       string       `json:"commodity"`
	US              ExportOrigin `json:"us"`
	BR              ExportOrigin `json:"br"`
	TotalMMT        float64      `json:"br_us_total_mmt"`
	BRSharePct      float64      `json:"br_market_share_pct"`
	USSharePct      float64      `json:"us_market_share_pct"`
	ShareShiftPP    float64      `json:"share_shift_pp"`
	Leader          string       `json:"leader,omitempty"`
	LeadMMT         float64      `json:"lead_mmt"`
	LeadPacePct     float64      `json:"lead_pace_pct"`
	ChinaTotalMMT   float64      `json:"china_total_mmt"`
	BRChinaSharePct float64      `json:"br_china_share_pct"`
	USChinaSharePct float64      `json:"us_china_share_pct"`
}

// BilateralIndicators is processed/bilateral_indicators.json
type BilateralIndicators struct {
	Date       string                `json:"date"`
	BCI        *BCI                  `json:"bci,omitempty"`
	LandedCost *LandedCost           `json:"landed_cost,omitempty"`
	ExportRace map[string]ExportRace `json:"export_race"`
	Skipped    map[string]string     `json:"skipped,omitempty"`
}

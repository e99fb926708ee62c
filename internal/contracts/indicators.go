package contracts

// Regime classifies where a spread sits in its one-year distribution
type Regime string

const (
	RegimeNormal      Regime = "NORMAL"
	RegimeCompression Regime = "COMPRESSION" // 평균보다 낮음
	RegimeDissonance  Regime = "DISSONANCE"  // 평균보다 높음
	RegimeExtreme     Regime = "EXTREME"     // |z|>2 또는 percentile 10~90 밖
)

// Trend is the short-term direction of a series
type Trend string

const (
	TrendUp        Trend = "SUBINDO"
	TrendDown      Trend = "CAINDO"
	TrendSideways  Trend = "LATERAL"
	TrendUndefined Trend = "INDEFINIDO"
)

// Statistics are computed over the last 252 values
type Statistics struct {
	Mean1Y     float64 `json:"mean_1y"`
	Std1Y      float64 `json:"std_1y"`
	ZScore1Y   float64 `json:"zscore_1y"`
	Percentile float64 `json:"percentile"`
	Regime     Regime  `json:"regime"`
}

// ProcessedIndicator is one derived series written to processed/
// ⭐ SSOT: spreads.json 의 항목 형식
type ProcessedIndicator struct {
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Description string     `json:"description,omitempty"`
	Unit        string     `json:"unit"`
	Inputs      []string   `json:"inputs"`
	Current     float64    `json:"current"`
	AsOf        string     `json:"as_of"`
	Points      int        `json:"points"`
	History     []Point    `json:"history"`
	Statistics  Statistics `json:"statistics"`
	Trend       Trend      `json:"trend"`
	TrendPct    float64    `json:"trend_pct"`
}

// SpreadsReport is processed/spreads.json
type SpreadsReport struct {
	Spreads map[string]ProcessedIndicator `json:"spreads"`
	Skipped map[string]string             `json:"skipped,omitempty"`
}

// SeasonalPoint is one day-of-year close
type SeasonalPoint struct {
	Day   int     `json:"day"`
	Close float64 `json:"close"`
}

// SeasonalityEntry is the seasonal curve of one symbol
type SeasonalityEntry struct {
	Symbol string                     `json:"symbol"`
	Years  []string                   `json:"years"`
	Series map[string][]SeasonalPoint `json:"series"`
}

// AverageAt returns the average curve value for a day-of-year,
// falling back to the closest available day
func (e SeasonalityEntry) AverageAt(day int) (float64, bool) {
	avg := e.Series["average"]
	if len(avg) == 0 {
		return 0, false
	}
	best := avg[0]
	bestDist := absInt(best.Day - day)
	for _, p := range avg[1:] {
		if d := absInt(p.Day - day); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best.Close, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Seasonality is processed/seasonality.json
type Seasonality map[string]SeasonalityEntry

// StockState is the classification of a stocks-vs-average reading
type StockState string

const (
	StockTight          StockState = "APERTO"
	StockSurplus        StockState = "EXCESSO"
	StockNeutral        StockState = "NEUTRO"
	StockNeutralTight   StockState = "NEUTRO_VIES_APERTO"
	StockNeutralSurplus StockState = "NEUTRO_VIES_EXCESSO"
	StockCheckUnit      StockState = "VERIFICAR_UNIDADE"

	// 재고 데이터가 없는 심볼의 가격 proxy
	PriceElevated  StockState = "PRECO_ELEVADO"
	PriceAboveAvg  StockState = "PRECO_ACIMA_MEDIA"
	PriceNeutral   StockState = "PRECO_NEUTRO"
	PriceBelowAvg  StockState = "PRECO_ABAIXO_MEDIA"
	PriceDepressed StockState = "PRECO_DEPRIMIDO"
)

// IsProxy reports whether the state comes from the price proxy
func (s StockState) IsProxy() bool {
	switch s {
	case PriceElevated, PriceAboveAvg, PriceNeutral, PriceBelowAvg, PriceDepressed:
		return true
	}
	return false
}

// DataAvailability tells consumers where a stock reading came from
type DataAvailability struct {
	StockReal   bool   `json:"stock_real"`
	StockSource string `json:"stock_source,omitempty"`
	StockProxy  bool   `json:"stock_proxy"`
}

// StockEntry is one symbol in processed/stocks_watch.json
type StockEntry struct {
	Symbol        string           `json:"symbol"`
	Commodity     string           `json:"commodity,omitempty"`
	State         StockState       `json:"state"`
	Period        string           `json:"period,omitempty"`
	StockCurrent  *float64         `json:"stock_current,omitempty"`
	StockAvg      *float64         `json:"stock_avg,omitempty"`
	StockUnit     string           `json:"stock_unit,omitempty"`
	DeviationPct  *float64         `json:"deviation_pct,omitempty"`
	StockTrend    string           `json:"stock_trend,omitempty"`
	Price         *float64         `json:"price,omitempty"`
	PriceVsAvg    *float64         `json:"price_vs_avg,omitempty"`
	Flags         []string         `json:"flags,omitempty"`
	DataAvailable DataAvailability `json:"data_available"`
}

// StocksWatch is processed/stocks_watch.json
type StocksWatch struct {
	Commodities map[string]StockEntry `json:"commodities"`
}

// ArbitrageEntry compares a reference exchange price with a local cash price
type ArbitrageEntry struct {
	Name           string  `json:"name"`
	Reference      string  `json:"reference"`
	Local          string  `json:"local"`
	ReferencePrice float64 `json:"reference_price"`
	ReferenceUnit  string  `json:"reference_unit"`
	LocalPrice     float64 `json:"local_price"`
	LocalUnit      string  `json:"local_unit"`
	FX             float64 `json:"fx"`
	ReferenceInBRL float64 `json:"reference_in_brl"`
	SpreadBRL      float64 `json:"spread_brl"`
	SpreadPct      float64 `json:"spread_pct"`
	Direction      string  `json:"direction"` // PREMIO_LOCAL, DESCONTO_LOCAL
}

// ArbitrageReport is processed/arbitrage.json
type ArbitrageReport struct {
	Pairs   map[string]ArbitrageEntry `json:"pairs"`
	Skipped map[string]string         `json:"skipped,omitempty"`
}

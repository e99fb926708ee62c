package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotStatus is the outcome of one adapter collection
type SnapshotStatus string

const (
	SnapshotOK     SnapshotStatus = "ok"
	SnapshotCached SnapshotStatus = "cached"
	SnapshotError  SnapshotStatus = "error"
)

// Period is the date window an adapter was asked for
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RawSnapshot is the uniform envelope written by every adapter
// ⭐ SSOT: {adapter}/{adapter}_latest.json 과 캐시 파일의 형식
type RawSnapshot struct {
	Source              string            `json:"source"`
	CollectionTimestamp string            `json:"collection_timestamp"`
	Status              SnapshotStatus    `json:"status"`
	Period              Period            `json:"period"`
	Data                json.RawMessage   `json:"data"`
	Errors              map[string]string `json:"errors,omitempty"`
	CacheNote           string            `json:"cache_note,omitempty"`
}

// NewSnapshot encodes a typed payload into an ok snapshot
func NewSnapshot(source string, at time.Time, period Period, data interface{}) (*RawSnapshot, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", source, err)
	}
	return &RawSnapshot{
		Source:              source,
		CollectionTimestamp: at.UTC().Format(time.RFC3339),
		Status:              SnapshotOK,
		Period:              period,
		Data:                raw,
	}, nil
}

// Decode unmarshals the payload into v
func (s *RawSnapshot) Decode(v interface{}) error {
	if len(s.Data) == 0 || string(s.Data) == "null" {
		return &ParseError{Source: s.Source, Field: "data", Err: fmt.Errorf("empty payload")}
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return &ParseError{Source: s.Source, Field: "data", Err: err}
	}
	return nil
}

// CollectedAt parses collection_timestamp
func (s *RawSnapshot) CollectedAt() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, s.CollectionTimestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Usable reports whether the snapshot carries data (ok or cached)
func (s *RawSnapshot) Usable() bool {
	return s != nil && (s.Status == SnapshotOK || s.Status == SnapshotCached) && len(s.Data) > 0
}

// ---------------------------------------------------------------------------
// Typed payloads. Adapters encode one of these; engine and gate decode them.
// ---------------------------------------------------------------------------

// PricesData is the payload of the prices adapter
type PricesData struct {
	Symbols map[string]Series `json:"symbols"`
	Units   map[string]string `json:"units"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// COTRow is one weekly Commitments of Traders observation
type COTRow struct {
	Date              string  `json:"date"`
	OpenInterest      float64 `json:"open_interest"`
	NonCommLong       float64 `json:"noncomm_long,omitempty"`
	NonCommShort      float64 `json:"noncomm_short,omitempty"`
	CommLong          float64 `json:"comm_long,omitempty"`
	CommShort         float64 `json:"comm_short,omitempty"`
	ManagedMoneyLong  float64 `json:"managed_money_long,omitempty"`
	ManagedMoneyShort float64 `json:"managed_money_short,omitempty"`
	ProducerLong      float64 `json:"producer_long,omitempty"`
	ProducerShort     float64 `json:"producer_short,omitempty"`
}

// COTReport is positioning for one market
type COTReport struct {
	Market        string   `json:"market"`
	Legacy        []COTRow `json:"legacy"`
	Disaggregated []COTRow `json:"disaggregated"`
	NetNonComm    float64  `json:"net_noncomm"`
	NetManaged    float64  `json:"net_managed_money"`
	WeeklyChange  float64  `json:"weekly_change"`
	COTIndex      *float64 `json:"cot_index"` // 0..100 over history
}

// COTData is the payload of the cot adapter
type COTData struct {
	Reports map[string]COTReport `json:"reports"`
}

// PhysicalQuote is one cash-market quote
type PhysicalQuote struct {
	Code      string   `json:"code"`
	Label     string   `json:"label"`
	Price     float64  `json:"price"`
	Unit      string   `json:"unit"`
	Location  string   `json:"location"`
	Date      string   `json:"date"`
	ChangePct *float64 `json:"change_pct,omitempty"`
	Source    string   `json:"source"`
}

// PhysicalData is the payload of physical_br and physical_intl
type PhysicalData struct {
	Quotes map[string]PhysicalQuote `json:"quotes"`
}

// MacroSeries is a central-bank or statistics series
type MacroSeries struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Unit    string  `json:"unit"`
	Latest  Point   `json:"latest"`
	History []Point `json:"history"`
}

// BCBData is the payload of the bcb adapter
type BCBData struct {
	Series map[string]MacroSeries `json:"series"`
}

// IBGEEstimate is one crop-survey estimate
type IBGEEstimate struct {
	Product  string  `json:"product"`
	Variable string  `json:"variable"`
	Period   string  `json:"period"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
}

// IBGEData is the payload of the ibge adapter
type IBGEData struct {
	Estimates []IBGEEstimate `json:"estimates"`
}

// EIASeries is one energy balance series with derived changes
type EIASeries struct {
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	LatestPeriod string   `json:"latest_period"`
	LatestValue  float64  `json:"latest_value"`
	WowChangePct *float64 `json:"wow_change_pct"`
	MomChangePct *float64 `json:"mom_change_pct"`
	High52w      *float64 `json:"high_52w"`
	Low52w       *float64 `json:"low_52w"`
	History      []Point  `json:"history"`
}

// EIAData is the payload of the eia adapter
type EIAData struct {
	Series map[string]EIASeries `json:"series"`
}

// ExportSales is the weekly export-sales state of one commodity (metric tons)
type ExportSales struct {
	Commodity          string  `json:"commodity"`
	MarketingYear      int     `json:"marketing_year"`
	WeekEnding         string  `json:"week_ending"`
	NetSales           float64 `json:"net_sales"`
	WeeklyExports      float64 `json:"weekly_exports"`
	AccumulatedExports float64 `json:"accumulated_exports"`
	OutstandingSales   float64 `json:"outstanding_sales"`
	ChinaAccumulated   float64 `json:"china_accumulated"`
	// Rows 는 집계 전 국가/주 단위 원본 행 (week_ending, country_code 순)
	Rows []ExportSalesRow `json:"rows,omitempty"`
}

// ExportSalesRow is one destination country in one reporting week
type ExportSalesRow struct {
	WeekEnding         string  `json:"week_ending"`
	CountryCode        int     `json:"country_code"`
	NetSales           float64 `json:"net_sales"`
	WeeklyExports      float64 `json:"weekly_exports"`
	AccumulatedExports float64 `json:"accumulated_exports"`
	OutstandingSales   float64 `json:"outstanding_sales"`
}

// StockObservation is one row of an ending-stocks series
type StockObservation struct {
	Year      int     `json:"year"`
	Period    string  `json:"period"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	SeriesKey string  `json:"series_key"`
	ShortDesc string  `json:"short_desc"`
}

// MixedSeries marks a (commodity, period) bucket fed by several distinct series
type MixedSeries struct {
	Commodity  string   `json:"commodity"`
	Period     string   `json:"period"`
	ShortDescs []string `json:"short_descs"`
}

// FASData is the payload of the usda_fas adapter
type FASData struct {
	ExportSales map[string]ExportSales        `json:"export_sales"`
	Stocks      map[string][]StockObservation `json:"stocks"`
	MixedSeries []MixedSeries                 `json:"mixed_series,omitempty"`
}

// WeatherDay is one forecast day
type WeatherDay struct {
	Date     string  `json:"date"`
	TempMax  float64 `json:"temp_max"`
	TempMin  float64 `json:"temp_min"`
	PrecipMM float64 `json:"precip_mm"`
}

// RegionForecast is the short-range outlook for a producing region
type RegionForecast struct {
	Name       string       `json:"name"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Days       []WeatherDay `json:"days"`
	Precip7dMM float64      `json:"precip_7d_mm"`
	TempAvg7d  float64      `json:"temp_avg_7d"`
	Alerts     []string     `json:"alerts,omitempty"`
}

// ENSOStatus is the latest Oceanic Niño Index reading
type ENSOStatus struct {
	Season string  `json:"season"`
	Year   int     `json:"year"`
	ONI    float64 `json:"oni"`
	Phase  string  `json:"phase"` // EL_NINO, LA_NINA, NEUTRAL
}

// WeatherData is the payload of the weather adapter
type WeatherData struct {
	Provider string                    `json:"provider"`
	Regions  map[string]RegionForecast `json:"regions"`
	ENSO     *ENSOStatus               `json:"enso,omitempty"`
}

// NewsItem is one headline
type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"`
	Source    string `json:"source"`
}

// NewsData is the payload of the news adapter
type NewsData struct {
	Items []NewsItem             `json:"items"`
	Macro map[string]MacroSeries `json:"macro"`
}

// CalendarEvent is one scheduled market-moving release
type CalendarEvent struct {
	Date      string   `json:"date"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Impact    string   `json:"impact"` // high, medium
	Recurring bool     `json:"recurring"`
	Symbols   []string `json:"symbols,omitempty"`
}

// CalendarData is the payload of the calendar adapter
type CalendarData struct {
	Events []CalendarEvent `json:"events"`
}

// ComexFlow is one monthly export flow of an HS4 heading
type ComexFlow struct {
	Heading string  `json:"heading"`
	Period  string  `json:"period"` // YYYY-MM
	Country string  `json:"country,omitempty"`
	FOBUSD  float64 `json:"fob_usd"`
	KG      float64 `json:"kg"`
}

// ComexYTD is the year-to-date export total of one heading
type ComexYTD struct {
	Heading string  `json:"heading"`
	Year    int     `json:"year"`
	KG      float64 `json:"kg"`
	ChinaKG float64 `json:"china_kg"`
	FOBUSD  float64 `json:"fob_usd"`
}

// ComexData is the payload of the comexstat adapter
type ComexData struct {
	Flows []ComexFlow         `json:"flows"`
	YTD   map[string]ComexYTD `json:"ytd"`
}

// IMEAMetric is one bulletin figure
type IMEAMetric struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Period string  `json:"period,omitempty"`
}

// IMEAData is the payload of the imea adapter
type IMEAData struct {
	Bulletin string                `json:"bulletin"`
	Metrics  map[string]IMEAMetric `json:"metrics"`
}

// FreightRecord is one route/quarter freight figure
type FreightRecord struct {
	Route   string  `json:"route"`
	Mode    string  `json:"mode"`
	Year    int     `json:"year"`
	Quarter int     `json:"quarter"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// FreightData is the payload of usda_gtr and usda_brazil_transport
type FreightData struct {
	Dataset string          `json:"dataset"`
	Records []FreightRecord `json:"records"`
}

// Latest returns the most recent record for a route
func (f FreightData) Latest(route string) (FreightRecord, bool) {
	var best FreightRecord
	found := false
	for _, r := range f.Records {
		if r.Route != route {
			continue
		}
		if !found || r.Year > best.Year || (r.Year == best.Year && r.Quarter > best.Quarter) {
			best = r
			found = true
		}
	}
	return best, found
}

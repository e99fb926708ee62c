package bundle

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/indicators"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/reading"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// File names in processed/
const (
	FileName       = "report_bundle"
	FileReport     = "report_daily"
	FileQA         = "qa_report"
	FileVideo      = "video_script"
	pricesAdapter  = "prices"
	pricesSourceID = "Yahoo Finance"
)

// RequiredKeys are the top-level keys every bundle must carry
// ⭐ SSOT: 번들 스키마. 각 키는 하나의 컴포넌트가 소유
var RequiredKeys = []string{
	"prices", "spreads", "cot", "stocks", "physical", "physical_intl",
	"bcb", "ibge", "eia", "usda_fas", "weather", "news", "calendar",
	"seasonality", "report_daily", "daily_reading", "qa_report", "bilateral_indicators",
}

// adapterKeys maps bundle keys to the adapter whose snapshot fills them
var adapterKeys = map[string]string{
	"cot":           "cot",
	"physical":      "physical_br",
	"physical_intl": "physical_intl",
	"bcb":           "bcb",
	"ibge":          "ibge",
	"eia":           "eia",
	"usda_fas":      "usda_fas",
	"weather":       "weather",
	"news":          "news",
	"calendar":      "calendar",
}

// bilateralSources feed the bilateral indicators and are carried for the dashboard
var bilateralSources = []string{"comexstat", "imea", "usda_gtr", "usda_brazil_transport"}

var emptyObject = json.RawMessage(`{}`)

// Section is an adapter's snapshot as carried in the bundle
type Section struct {
	Status              contracts.SnapshotStatus `json:"status"`
	Source              string                   `json:"source"`
	CollectionTimestamp string                   `json:"collection_timestamp,omitempty"`
	CacheNote           string                   `json:"cache_note,omitempty"`
	Data                json.RawMessage          `json:"data"`
}

// PricesSection carries the latest close of every symbol with unit and source
type PricesSection struct {
	Status         contracts.SnapshotStatus    `json:"status"`
	Source         string                      `json:"source"`
	CollectedAt    string                      `json:"collection_timestamp,omitempty"`
	Latest         map[string]contracts.Scalar `json:"latest"`
	DailyChangePct map[string]float64          `json:"daily_change_pct"`
}

// StocksSection honours stocks.proxy_allowed_in_report:
// proxy 항목은 허용되지 않으면 entries 에 절대 나타나지 않음
type StocksSection struct {
	ProxyAllowed bool                            `json:"proxy_allowed_in_report"`
	Entries      map[string]contracts.StockEntry `json:"entries"`
	PriceProxies map[string]contracts.StockEntry `json:"price_proxies"`
}

// Bundle is processed/report_bundle.json
type Bundle struct {
	Date             string                    `json:"date"`
	Prices           PricesSection             `json:"prices"`
	Spreads          contracts.SpreadsReport   `json:"spreads"`
	COT              Section                   `json:"cot"`
	Stocks           StocksSection             `json:"stocks"`
	Physical         Section                   `json:"physical"`
	PhysicalIntl     Section                   `json:"physical_intl"`
	BCB              Section                   `json:"bcb"`
	IBGE             Section                   `json:"ibge"`
	EIA              Section                   `json:"eia"`
	USDAFAS          Section                   `json:"usda_fas"`
	Weather          Section                   `json:"weather"`
	News             Section                   `json:"news"`
	Calendar         Section                   `json:"calendar"`
	Seasonality      contracts.Seasonality     `json:"seasonality"`
	ReportDaily      json.RawMessage           `json:"report_daily"`
	DailyReading     json.RawMessage           `json:"daily_reading"`
	QAReport         json.RawMessage           `json:"qa_report"`
	Bilateral        json.RawMessage           `json:"bilateral_indicators"`
	Arbitrage        contracts.ArbitrageReport `json:"arbitrage"`
	BilateralSources map[string]Section        `json:"bilateral_sources"`
}

// Assembler reads every component's output from the data directory
type Assembler struct {
	paths  paths.Paths
	reg    *registry.Registry
	logger *logger.Logger
}

// NewAssembler creates an Assembler
func NewAssembler(p paths.Paths, reg *registry.Registry, log *logger.Logger) *Assembler {
	return &Assembler{paths: p, reg: reg, logger: log.WithField("module", "bundle")}
}

// Assemble builds the bundle in memory. 없는 컴포넌트는 빈 객체로 채움
func (a *Assembler) Assemble(asOf time.Time) *Bundle {
	b := &Bundle{
		Date:             asOf.Format(contracts.DateLayout),
		Seasonality:      contracts.Seasonality{},
		ReportDaily:      a.rawProcessed(FileReport),
		DailyReading:     a.rawProcessed(reading.FileName),
		QAReport:         a.rawProcessed(FileQA),
		Bilateral:        a.rawProcessed(indicators.FileBilateral),
		BilateralSources: make(map[string]Section, len(bilateralSources)),
	}

	b.Prices = a.prices()
	a.readProcessed(indicators.FileSpreads, &b.Spreads)
	a.readProcessed(indicators.FileSeasonality, &b.Seasonality)
	a.readProcessed(indicators.FileArbitrage, &b.Arbitrage)
	if b.Spreads.Spreads == nil {
		b.Spreads.Spreads = map[string]contracts.ProcessedIndicator{}
	}
	if b.Arbitrage.Pairs == nil {
		b.Arbitrage.Pairs = map[string]contracts.ArbitrageEntry{}
	}

	var watch contracts.StocksWatch
	a.readProcessed(indicators.FileStocks, &watch)
	b.Stocks = SplitStocks(watch, a.reg.Stocks.ProxyAllowedInReport)

	sections := map[string]*Section{
		"cot":           &b.COT,
		"physical":      &b.Physical,
		"physical_intl": &b.PhysicalIntl,
		"bcb":           &b.BCB,
		"ibge":          &b.IBGE,
		"eia":           &b.EIA,
		"usda_fas":      &b.USDAFAS,
		"weather":       &b.Weather,
		"news":          &b.News,
		"calendar":      &b.Calendar,
	}
	for key, sec := range sections {
		*sec = a.section(adapterKeys[key])
	}
	for _, name := range bilateralSources {
		b.BilateralSources[name] = a.section(name)
	}

	return b
}

// SplitStocks separates real stock readings from price proxies
func SplitStocks(watch contracts.StocksWatch, proxyAllowed bool) StocksSection {
	out := StocksSection{
		ProxyAllowed: proxyAllowed,
		Entries:      make(map[string]contracts.StockEntry),
		PriceProxies: make(map[string]contracts.StockEntry),
	}
	for sym, e := range watch.Commodities {
		if e.State.IsProxy() && !proxyAllowed {
			out.PriceProxies[sym] = e
			continue
		}
		out.Entries[sym] = e
	}
	return out
}

func (a *Assembler) section(adapter string) Section {
	var snap contracts.RawSnapshot
	if err := store.ReadJSON(a.paths.Latest(adapter), &snap); err != nil {
		return Section{Status: contracts.SnapshotError, Source: adapter, Data: emptyObject}
	}
	sec := Section{
		Status:              snap.Status,
		Source:              snap.Source,
		CollectionTimestamp: snap.CollectionTimestamp,
		CacheNote:           snap.CacheNote,
		Data:                snap.Data,
	}
	if len(sec.Data) == 0 || string(sec.Data) == "null" {
		sec.Data = emptyObject
	}
	return sec
}

func (a *Assembler) prices() PricesSection {
	out := PricesSection{
		Status:         contracts.SnapshotError,
		Source:         pricesSourceID,
		Latest:         make(map[string]contracts.Scalar),
		DailyChangePct: make(map[string]float64),
	}

	var snap contracts.RawSnapshot
	if err := store.ReadJSON(a.paths.Latest(pricesAdapter), &snap); err == nil {
		out.Status = snap.Status
		out.CollectedAt = snap.CollectionTimestamp
	}

	var history contracts.PriceHistory
	if err := store.ReadJSON(a.paths.PriceHistory(), &history); err != nil {
		return out
	}
	codes := make([]string, 0, len(history))
	for code := range history {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		last, ok := history[code].LastClose()
		if !ok {
			continue
		}
		out.Latest[code] = contracts.Scalar{
			Value:  last.Value,
			Unit:   a.reg.Symbols[code].Unit,
			Source: pricesSourceID,
			AsOf:   last.Date,
		}
		if chg, ok := history[code].DailyChangePct(); ok {
			out.DailyChangePct[code] = chg
		}
	}
	return out
}

func (a *Assembler) readProcessed(name string, v interface{}) {
	if err := store.ReadJSON(a.paths.ProcessedFile(name), v); err != nil {
		a.logger.WithField("file", name).Debug("processed file unavailable")
	}
}

func (a *Assembler) rawProcessed(name string) json.RawMessage {
	var raw json.RawMessage
	if err := store.ReadJSON(a.paths.ProcessedFile(name), &raw); err != nil || len(raw) == 0 {
		return emptyObject
	}
	return raw
}

// Write assembles and writes processed/report_bundle.json
func (a *Assembler) Write(asOf time.Time) (*Bundle, error) {
	b := a.Assemble(asOf)
	if err := store.WriteJSON(a.paths.ProcessedFile(FileName), b); err != nil {
		return b, fmt.Errorf("failed to write bundle: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"prices":  len(b.Prices.Latest),
		"spreads": len(b.Spreads.Spreads),
		"stocks":  len(b.Stocks.Entries),
		"proxies": len(b.Stocks.PriceProxies),
	}).Info("report bundle written")
	return b, nil
}

// AttachQA rewrites the bundle file with the gate's report
func (a *Assembler) AttachQA(qa interface{}) error {
	var b Bundle
	if err := store.ReadJSON(a.paths.ProcessedFile(FileName), &b); err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}
	raw, err := json.Marshal(qa)
	if err != nil {
		return fmt.Errorf("failed to encode qa report: %w", err)
	}
	b.QAReport = raw
	return store.WriteJSON(a.paths.ProcessedFile(FileName), b)
}

// Validate checks that every required key is present in an encoded bundle.
// 알 수 없는 키는 무시
func Validate(raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("bundle is not a JSON object: %w", err)
	}
	var missing []string
	for _, k := range RequiredKeys {
		if v, ok := top[k]; !ok || string(v) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("bundle missing keys: %v", missing)
	}
	return nil
}

package indicators

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/indicators/bilateral"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Processed file names
// ⭐ SSOT: processed/ 파일 이름은 여기서만 정의
const (
	FileSeasonality = "seasonality"
	FileSpreads     = "spreads"
	FileStocks      = "stocks_watch"
	FileArbitrage   = "arbitrage"
	FileBilateral   = "bilateral_indicators"
)

const adapterPrices = "prices"

// PublishedFiles maps adapters to the processed file mirroring their latest snapshot
var PublishedFiles = map[string]string{
	"bcb":                   "bcb_data",
	"physical_intl":         "physical_intl",
	"physical_br":           "physical",
	"eia":                   "eia_data",
	"usda_fas":              "usda_fas",
	"cot":                   "cot",
	"calendar":              "calendar",
	"weather":               "weather_agro",
	"news":                  "news",
	"ibge":                  "ibge",
	"comexstat":             "comexstat",
	"imea":                  "imea",
	"usda_gtr":              "usda_gtr",
	"usda_brazil_transport": "usda_brazil_transport",
}

// Engine runs the indicator steps over the data directory.
// 각 step 은 디스크에서 입력을 읽음: 앞 step 이 실패해도 이전 결과로 계속 진행 가능
type Engine struct {
	paths  paths.Paths
	reg    *registry.Registry
	logger *logger.Logger
	asOf   time.Time
}

// NewEngine creates an Engine for the run date asOf
func NewEngine(p paths.Paths, reg *registry.Registry, asOf time.Time, log *logger.Logger) *Engine {
	return &Engine{
		paths:  p,
		reg:    reg,
		logger: log.WithField("module", "indicators"),
		asOf:   asOf,
	}
}

// =============================================================================
// Publish: adapter snapshot → raw/ and processed/
// =============================================================================

// Publish mirrors an adapter snapshot into the engine-owned files.
// prices 는 raw/price_history.json 에 병합하고 parquet 아카이브를 갱신
func (e *Engine) Publish(adapter string, snap *contracts.RawSnapshot) error {
	if snap == nil {
		return nil
	}

	if adapter == adapterPrices {
		return e.publishPrices(snap)
	}

	name, ok := PublishedFiles[adapter]
	if !ok {
		return nil
	}
	if err := store.WriteJSON(e.paths.ProcessedFile(name), snap); err != nil {
		return fmt.Errorf("failed to publish %s: %w", adapter, err)
	}
	return nil
}

func (e *Engine) publishPrices(snap *contracts.RawSnapshot) error {
	if !snap.Usable() {
		return nil
	}
	var data contracts.PricesData
	if err := snap.Decode(&data); err != nil {
		return err
	}

	history, err := e.LoadHistory()
	if err != nil && !os.IsNotExist(err) {
		e.logger.WithError(err).Warn("price history unreadable, rebuilding from snapshot")
	}
	if history == nil {
		history = make(contracts.PriceHistory)
	}

	for code, series := range data.Symbols {
		history[code] = MergeSeries(history[code], series)
	}

	if err := store.WriteJSON(e.paths.PriceHistory(), history); err != nil {
		return fmt.Errorf("failed to write price history: %w", err)
	}
	if err := store.WritePriceArchive(e.paths.PriceArchive(), history); err != nil {
		return fmt.Errorf("failed to write price archive: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"symbols": len(data.Symbols),
		"total":   len(history),
	}).Info("price history merged")
	return nil
}

// MergeSeries unions two series by date; bars from next replace bars from prev
func MergeSeries(prev, next contracts.Series) contracts.Series {
	byDate := make(map[string]contracts.Bar, len(prev)+len(next))
	for _, b := range prev {
		byDate[b.Date] = b
	}
	for _, b := range next {
		byDate[b.Date] = b
	}
	out := make(contracts.Series, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// =============================================================================
// Inputs
// =============================================================================

// LoadHistory reads raw/price_history.json
func (e *Engine) LoadHistory() (contracts.PriceHistory, error) {
	var h contracts.PriceHistory
	if err := store.ReadJSON(e.paths.PriceHistory(), &h); err != nil {
		return nil, err
	}
	return h, nil
}

// loadPayload decodes an adapter's latest snapshot; false when absent or unusable
func (e *Engine) loadPayload(adapter string, v interface{}) bool {
	var snap contracts.RawSnapshot
	if err := store.ReadJSON(e.paths.Latest(adapter), &snap); err != nil {
		return false
	}
	if !snap.Usable() {
		return false
	}
	if err := snap.Decode(v); err != nil {
		e.logger.WithError(err).WithField("adapter", adapter).Warn("snapshot payload unreadable")
		return false
	}
	return true
}

func (e *Engine) loadProcessed(name string, v interface{}) error {
	return store.ReadJSON(e.paths.ProcessedFile(name), v)
}

func (e *Engine) write(name string, v interface{}) error {
	if err := store.WriteJSON(e.paths.ProcessedFile(name), v); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (e *Engine) history() (contracts.PriceHistory, error) {
	h, err := e.LoadHistory()
	if err != nil {
		return nil, fmt.Errorf("price history unavailable: %w", err)
	}
	return h, nil
}

// fxRates returns FX scalars by registry code (PTAX from the bcb snapshot)
func (e *Engine) fxRates() (map[string]float64, []float64) {
	var bcb contracts.BCBData
	if !e.loadPayload("bcb", &bcb) {
		return map[string]float64{}, nil
	}
	rates := make(map[string]float64)
	ptax, ok := bcb.Series["PTAX"]
	if !ok || ptax.Latest.Value <= 0 {
		return rates, nil
	}
	rates["PTAX"] = ptax.Latest.Value

	var prior []float64
	for _, p := range ptax.History {
		if p.Date < ptax.Latest.Date {
			prior = append(prior, p.Value)
		}
	}
	return rates, prior
}

// =============================================================================
// Steps
// =============================================================================

// RunSeasonality writes processed/seasonality.json
func (e *Engine) RunSeasonality() error {
	h, err := e.history()
	if err != nil {
		return err
	}
	seas := Seasonality(h, e.asOf)
	e.logger.WithField("symbols", len(seas)).Info("seasonality computed")
	return e.write(FileSeasonality, seas)
}

// RunSpreads writes processed/spreads.json
func (e *Engine) RunSpreads() error {
	h, err := e.history()
	if err != nil {
		return err
	}
	report, err := Spreads(e.reg, h)
	if err != nil {
		return err
	}
	e.logger.WithFields(map[string]interface{}{
		"spreads": len(report.Spreads),
		"skipped": len(report.Skipped),
	}).Info("spreads computed")
	return e.write(FileSpreads, report)
}

// RunStocks writes processed/stocks_watch.json
func (e *Engine) RunStocks() error {
	h, err := e.history()
	if err != nil {
		return err
	}

	var seas contracts.Seasonality
	if err := e.loadProcessed(FileSeasonality, &seas); err != nil {
		e.logger.WithError(err).Warn("seasonality unavailable, price proxy disabled")
	}

	var fas contracts.FASData
	if !e.loadPayload("usda_fas", &fas) {
		e.logger.Warn("usda_fas unavailable, stocks fall back to price proxy")
	}

	watch := Stocks(e.reg, fas.Stocks, h, seas, e.asOf)
	withStocks := 0
	for _, entry := range watch.Commodities {
		if entry.DataAvailable.StockReal {
			withStocks++
		}
	}
	e.logger.WithFields(map[string]interface{}{
		"entries": len(watch.Commodities),
		"real":    withStocks,
	}).Info("stocks watch computed")
	return e.write(FileStocks, watch)
}

// RunArbitrage writes processed/arbitrage.json
func (e *Engine) RunArbitrage() error {
	h, err := e.history()
	if err != nil {
		return err
	}
	var physical contracts.PhysicalData
	e.loadPayload("physical_br", &physical)
	fx, _ := e.fxRates()

	report := Arbitrage(e.reg, h, physical.Quotes, fx)
	e.logger.WithFields(map[string]interface{}{
		"pairs":   len(report.Pairs),
		"skipped": len(report.Skipped),
	}).Info("arbitrage computed")
	return e.write(FileArbitrage, report)
}

// RunBilateral writes processed/bilateral_indicators.json
func (e *Engine) RunBilateral() error {
	h, err := e.history()
	if err != nil {
		return err
	}

	in := bilateral.Inputs{
		AsOf:    e.asOf,
		History: make(map[string][]float64),
		Market:  bilateral.Market{Month: int(e.asOf.Month())},
	}

	if p, ok := h["ZS"].LastClose(); ok {
		in.Market.CBOTCentsBu = contracts.Float(p.Value)
	}
	fx, ptaxHistory := e.fxRates()
	if v, ok := fx["PTAX"]; ok {
		in.Market.PTAX = contracts.Float(v)
		in.History[bilateral.ComponentFX] = ptaxHistory
	}

	var physical contracts.PhysicalData
	if e.loadPayload("physical_br", &physical) {
		if q, ok := physical.Quotes["SOJA_PARANAGUA"]; ok && q.Price > 0 {
			in.Market.ParanaguaBRLSc = contracts.Float(q.Price)
		}
	}

	var spreads contracts.SpreadsReport
	if err := e.loadProcessed(FileSpreads, &spreads); err == nil {
		if s, ok := spreads.Spreads["soy_crush"]; ok {
			in.Market.USCrushUSDBu = contracts.Float(s.Current)
		}
	}

	var imea contracts.IMEAData
	if e.loadPayload("imea", &imea) {
		in.Market.IMEA = imea.Metrics
	}
	var gtr contracts.FreightData
	if e.loadPayload("usda_gtr", &gtr) {
		in.Market.GTR = &gtr
	}
	var brt contracts.FreightData
	if e.loadPayload("usda_brazil_transport", &brt) {
		in.Market.BrazilFreight = &brt
	}
	var fas contracts.FASData
	if e.loadPayload("usda_fas", &fas) {
		in.ExportSales = fas.ExportSales
	}
	var comex contracts.ComexData
	if e.loadPayload("comexstat", &comex) {
		in.ComexYTD = comex.YTD
	}

	out := bilateral.Compute(in)
	fields := map[string]interface{}{
		"races":   len(out.ExportRace),
		"skipped": len(out.Skipped),
	}
	if out.BCI != nil {
		fields["bci"] = out.BCI.Score
	}
	e.logger.WithFields(fields).Info("bilateral indicators computed")
	return e.write(FileBilateral, out)
}

// Step pairs a step name with its function, in execution order
type Step struct {
	Name string
	Run  func() error
}

// Steps returns the indicator steps in dependency order
func (e *Engine) Steps() []Step {
	return []Step{
		{Name: contracts.StepSeasonality, Run: e.RunSeasonality},
		{Name: contracts.StepSpreads, Run: e.RunSpreads},
		{Name: contracts.StepStocks, Run: e.RunStocks},
		{Name: contracts.StepArbitrage, Run: e.RunArbitrage},
		{Name: contracts.StepBilateral, Run: e.RunBilateral},
	}
}

// Run executes every step and returns the first error; later steps still run
func (e *Engine) Run() error {
	var first error
	for _, s := range e.Steps() {
		if err := s.Run(); err != nil {
			e.logger.WithError(err).WithField("step", s.Name).Error("indicator step failed")
			if first == nil {
				first = fmt.Errorf("%s: %w", s.Name, err)
			}
		}
	}
	return first
}

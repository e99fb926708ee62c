package indicators

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

var collectedAt = time.Date(2025, 3, 7, 21, 0, 0, 0, time.UTC)

func writeSnapshot(t *testing.T, p paths.Paths, adapter string, data interface{}) {
	t.Helper()
	snap, err := contracts.NewSnapshot(adapter, collectedAt, contracts.Period{From: "2025-01-01", To: "2025-03-07"}, data)
	require.NoError(t, err)
	require.NoError(t, store.WriteJSON(p.Latest(adapter), snap))
}

func seedDataDir(t *testing.T) paths.Paths {
	t.Helper()
	p := paths.New(t.TempDir())
	require.NoError(t, p.Ensure())

	wave := func(base float64) func(time.Time) float64 {
		return func(d time.Time) float64 { return base + float64(d.YearDay()%30) }
	}
	h := contracts.PriceHistory{
		"ZS": weekdays(t, "2019-01-01", "2025-03-07", wave(1000)),
		"ZM": weekdays(t, "2019-01-01", "2025-03-07", wave(300)),
		"ZL": weekdays(t, "2019-01-01", "2025-03-07", wave(45)),
		"ZC": weekdays(t, "2019-01-01", "2025-03-07", wave(420)),
		"KC": weekdays(t, "2019-01-01", "2025-03-07", wave(250)),
	}
	require.NoError(t, store.WriteJSON(p.PriceHistory(), h))

	writeSnapshot(t, p, "bcb", contracts.BCBData{Series: map[string]contracts.MacroSeries{
		"PTAX": {Code: "1", Unit: "BRL/USD", Latest: contracts.Point{Date: "2025-03-07", Value: 5.80},
			History: []contracts.Point{{Date: "2025-03-05", Value: 5.75}, {Date: "2025-03-06", Value: 5.78}, {Date: "2025-03-07", Value: 5.80}}},
	}})
	writeSnapshot(t, p, "physical_br", contracts.PhysicalData{Quotes: map[string]contracts.PhysicalQuote{
		"SOJA_PARANAGUA": {Code: "SOJA_PARANAGUA", Price: 130, Unit: "BRL/sc60"},
		"MILHO_CAMPINAS": {Code: "MILHO_CAMPINAS", Price: 80, Unit: "BRL/sc60"},
	}})
	writeSnapshot(t, p, "usda_fas", contracts.FASData{
		ExportSales: map[string]contracts.ExportSales{
			"soybeans": {Commodity: "soybeans", AccumulatedExports: 40e6, ChinaAccumulated: 20e6},
		},
		Stocks: map[string][]contracts.StockObservation{
			"corn": {obs(2022, 100), obs(2023, 110), obs(2024, 90)},
		},
	})
	writeSnapshot(t, p, "comexstat", contracts.ComexData{YTD: map[string]contracts.ComexYTD{
		"soja_grao": {Heading: "1201", Year: 2025, KG: 10e9, ChinaKG: 7e9},
	}})
	writeSnapshot(t, p, "imea", contracts.IMEAData{Metrics: map[string]contracts.IMEAMetric{
		"soja_premio_santos": {Value: 40, Unit: "c/bu"},
	}})
	return p
}

func TestEngine_Run(t *testing.T) {
	p := seedDataDir(t)
	e := NewEngine(p, shippedRegistry(t), day(t, "2025-03-07"), logger.Nop())

	require.NoError(t, e.Run())

	var seas contracts.Seasonality
	require.NoError(t, store.ReadJSON(p.ProcessedFile(FileSeasonality), &seas))
	assert.Equal(t, []string{"2020", "2021", "2022", "2023", "2024", "current", "average"}, seas["ZS"].Years)

	var spreads contracts.SpreadsReport
	require.NoError(t, store.ReadJSON(p.ProcessedFile(FileSpreads), &spreads))
	assert.Contains(t, spreads.Spreads, "soy_crush")
	assert.Contains(t, spreads.Spreads, "zc_zs")
	assert.Contains(t, spreads.Skipped, "feedlot")

	var watch contracts.StocksWatch
	require.NoError(t, store.ReadJSON(p.ProcessedFile(FileStocks), &watch))
	assert.True(t, watch.Commodities["ZC"].DataAvailable.StockReal)
	assert.True(t, watch.Commodities["KC"].DataAvailable.StockProxy)

	var arb contracts.ArbitrageReport
	require.NoError(t, store.ReadJSON(p.ProcessedFile(FileArbitrage), &arb))
	assert.Contains(t, arb.Pairs, "soja_paranagua")
	assert.Contains(t, arb.Pairs, "milho_campinas")

	var bil contracts.BilateralIndicators
	require.NoError(t, store.ReadJSON(p.ProcessedFile(FileBilateral), &bil))
	assert.Equal(t, "2025-03-07", bil.Date)
	require.NotNil(t, bil.LandedCost)
	assert.Equal(t, "paranagua", bil.LandedCost.BRPriceMethod)
	require.NotNil(t, bil.BCI)
	assert.Len(t, bil.BCI.Components, 6)
	assert.Contains(t, bil.ExportRace, "soybeans")
	assert.Contains(t, bil.Skipped, "export_race_corn")
}

func TestEngine_Idempotent(t *testing.T) {
	p := seedDataDir(t)
	e := NewEngine(p, shippedRegistry(t), day(t, "2025-03-07"), logger.Nop())
	files := []string{FileSeasonality, FileSpreads, FileStocks, FileArbitrage, FileBilateral}

	require.NoError(t, e.Run())
	first := make(map[string][]byte)
	for _, f := range files {
		data, err := os.ReadFile(p.ProcessedFile(f))
		require.NoError(t, err)
		first[f] = data
	}

	require.NoError(t, e.Run())
	for _, f := range files {
		data, err := os.ReadFile(p.ProcessedFile(f))
		require.NoError(t, err)
		assert.Equal(t, string(first[f]), string(data), f)
	}
}

func TestEngine_MissingHistory(t *testing.T) {
	p := paths.New(t.TempDir())
	e := NewEngine(p, shippedRegistry(t), day(t, "2025-03-07"), logger.Nop())

	err := e.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seasonality")
	assert.False(t, store.Exists(p.ProcessedFile(FileSpreads)))
}

func TestEngine_PublishPrices(t *testing.T) {
	p := paths.New(t.TempDir())
	e := NewEngine(p, shippedRegistry(t), day(t, "2025-01-06"), logger.Nop())

	prev := contracts.PriceHistory{"ZS": {
		{Date: "2025-01-02", Close: contracts.Float(1000)},
		{Date: "2025-01-03", Close: contracts.Float(1001)},
	}}
	require.NoError(t, store.WriteJSON(p.PriceHistory(), prev))

	snap, err := contracts.NewSnapshot("prices", collectedAt, contracts.Period{}, contracts.PricesData{Symbols: map[string]contracts.Series{
		"ZS": {{Date: "2025-01-03", Close: contracts.Float(1005)}, {Date: "2025-01-06", Close: contracts.Float(1010)}},
		"ZC": {{Date: "2025-01-06", Close: contracts.Float(450)}},
	}})
	require.NoError(t, err)
	require.NoError(t, e.Publish("prices", snap))

	h, err := e.LoadHistory()
	require.NoError(t, err)
	require.Len(t, h["ZS"], 3)
	assert.Equal(t, 1005.0, *h["ZS"][1].Close)
	assert.Equal(t, "2025-01-06", h["ZS"][2].Date)
	assert.Len(t, h["ZC"], 1)

	archived, err := store.ReadPriceArchive(p.PriceArchive())
	require.NoError(t, err)
	assert.Len(t, archived["ZS"], 3)
}

func TestEngine_PublishAdapterFiles(t *testing.T) {
	p := paths.New(t.TempDir())
	e := NewEngine(p, shippedRegistry(t), day(t, "2025-01-06"), logger.Nop())

	snap, err := contracts.NewSnapshot("weather", collectedAt, contracts.Period{}, contracts.WeatherData{Provider: "open-meteo"})
	require.NoError(t, err)
	require.NoError(t, e.Publish("weather", snap))
	require.NoError(t, e.Publish("unknown", snap))
	require.NoError(t, e.Publish("bcb", nil))

	var got contracts.RawSnapshot
	require.NoError(t, store.ReadJSON(p.ProcessedFile("weather_agro"), &got))
	assert.Equal(t, "weather", got.Source)
	assert.Equal(t, contracts.SnapshotOK, got.Status)
}

func TestMergeSeries(t *testing.T) {
	prev := contracts.Series{{Date: "2025-01-03"}, {Date: "2025-01-02"}}
	next := contracts.Series{{Date: "2025-01-01"}}
	out := MergeSeries(prev, next)
	require.Len(t, out, 3)
	assert.Equal(t, "2025-01-01", out[0].Date)
	assert.Equal(t, "2025-01-03", out[2].Date)
}

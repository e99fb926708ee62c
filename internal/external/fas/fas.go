package fas

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "usda_fas"

// ErrNoAPIKey is returned when USDA_FAS_KEY is not configured
var ErrNoAPIKey = errors.New("USDA_FAS_KEY not set")

// StockYears is how many marketing years of PSD ending stocks are read
const StockYears = 6

// chinaCode is the ESR country code for China
const chinaCode = 5700

// PSDCodes maps stocks commodities (registry stocks.series values) to PSD codes
var PSDCodes = map[string]string{
	"corn":         "0440000",
	"soybeans":     "2222000",
	"wheat":        "0410000",
	"soybean_meal": "4232000",
	"soybean_oil":  "4234000",
	"cotton":       "2631000",
	"sugar":        "0612000",
	"coffee":       "0711000",
}

// ESRCodes maps commodities to Export Sales Reporting codes
var ESRCodes = map[string]int{
	"corn":         401,
	"soybeans":     801,
	"wheat":        107,
	"soybean_meal": 901,
	"soybean_oil":  902,
}

// Adapter reads USDA FAS OpenData (ESR export sales + PSD balance sheets)
type Adapter struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	baseURL     string
	apiKey      string
	commodities []string
}

// New creates the usda_fas adapter. commodities are the PSD names the
// stocks indicator needs (registry stocks.series values).
func New(httpClient *httputil.Client, apiKey string, commodities []string, log *logger.Logger) *Adapter {
	sorted := append([]string(nil), commodities...)
	sort.Strings(sorted)
	return &Adapter{
		httpClient:  httpClient.WithHeader("API_KEY", apiKey),
		logger:      log.WithField("adapter", Name),
		baseURL:     "https://apps.fas.usda.gov/OpenData/api",
		apiKey:      apiKey,
		commodities: sorted,
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

type psdRow struct {
	AttributeDescription string  `json:"attributeDescription"`
	UnitDescription      string  `json:"unitDescription"`
	Value                float64 `json:"value"`
	MarketYear           string  `json:"marketYear"`
}

type esrRow struct {
	WeekEndingDate     string  `json:"weekEndingDate"`
	CountryCode        int     `json:"countryCode"`
	WeeklyExports      float64 `json:"weeklyExports"`
	AccumulatedExports float64 `json:"accumulatedExports"`
	OutstandingSales   float64 `json:"outstandingSales"`
	NetSales           float64 `json:"currentMYNetSales"`
}

// Fetch implements collector.Adapter.
// PSD 재고가 하나도 없으면 실패. ESR 실패는 경고만
func (a *Adapter) Fetch(ctx context.Context, w collector.Window, opts collector.Options) (interface{}, error) {
	if a.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = w.To
	}
	year := asOf.Year()

	data := contracts.FASData{
		ExportSales: make(map[string]contracts.ExportSales),
		Stocks:      make(map[string][]contracts.StockObservation),
	}

	var firstErr error
	for _, commodity := range a.commodities {
		code, ok := PSDCodes[commodity]
		if !ok {
			a.logger.WithField("commodity", commodity).Warn("no PSD code")
			continue
		}
		rows, err := a.fetchStocks(ctx, commodity, code, year)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deduped, mixed := collector.DedupeMax(commodity, rows, a.logger)
		if len(deduped) > 0 {
			data.Stocks[commodity] = deduped
		}
		data.MixedSeries = append(data.MixedSeries, mixed...)
	}

	for _, commodity := range a.commodities {
		code, ok := ESRCodes[commodity]
		if !ok {
			continue
		}
		sales, err := a.fetchExportSales(ctx, commodity, code, year)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.WithError(err).WithField("commodity", commodity).Warn("export sales unavailable")
			continue
		}
		data.ExportSales[commodity] = sales
	}

	a.logger.WithFields(map[string]interface{}{
		"stocks":       len(data.Stocks),
		"export_sales": len(data.ExportSales),
		"mixed":        len(data.MixedSeries),
	}).Info("usda fas collected")

	if len(data.Stocks) == 0 {
		if firstErr == nil {
			firstErr = &contracts.ParseError{Source: Name, Field: "psd", Err: fmt.Errorf("no ending stocks")}
		}
		return nil, firstErr
	}
	return data, nil
}

// fetchStocks reads world ending stocks for the last StockYears marketing years
func (a *Adapter) fetchStocks(ctx context.Context, commodity, code string, year int) ([]contracts.StockObservation, error) {
	var out []contracts.StockObservation
	for y := year - StockYears + 1; y <= year; y++ {
		var rows []psdRow
		url := fmt.Sprintf("%s/psd/commodity/%s/world/year/%d", a.baseURL, code, y)
		if err := external.GetJSON(ctx, a.httpClient, Name, "psd "+commodity, url, &rows); err != nil {
			var te *contracts.TransportError
			// 아직 발표되지 않은 연도는 404
			if errors.As(err, &te) && te.StatusCode == 404 {
				continue
			}
			return nil, err
		}
		out = append(out, EndingStocks(rows, y)...)
	}
	return out, nil
}

// EndingStocks picks the ending-stocks attributes of one PSD year
func EndingStocks(rows []psdRow, year int) []contracts.StockObservation {
	var out []contracts.StockObservation
	for _, r := range rows {
		desc := strings.ToLower(r.AttributeDescription)
		if !strings.Contains(desc, "ending stocks") {
			continue
		}
		out = append(out, contracts.StockObservation{
			Year:      year,
			Period:    "MY",
			Value:     r.Value,
			Unit:      r.UnitDescription,
			SeriesKey: "ending_stocks",
			ShortDesc: r.AttributeDescription,
		})
	}
	return out
}

// fetchExportSales tries the current marketing year, then the previous one
func (a *Adapter) fetchExportSales(ctx context.Context, commodity string, code, year int) (contracts.ExportSales, error) {
	var lastErr error
	for _, my := range []int{year, year - 1} {
		var rows []esrRow
		url := fmt.Sprintf("%s/esr/exports/commodityCode/%d/allCountries/marketYear/%d", a.baseURL, code, my)
		if err := external.GetJSON(ctx, a.httpClient, Name, "esr "+commodity, url, &rows); err != nil {
			lastErr = err
			continue
		}
		if len(rows) == 0 {
			continue
		}
		return AggregateExportSales(commodity, my, rows), nil
	}
	if lastErr == nil {
		lastErr = &contracts.ParseError{Source: Name, Field: "esr " + commodity, Err: fmt.Errorf("no records")}
	}
	return contracts.ExportSales{}, lastErr
}

// AggregateExportSales sums country rows of the latest reported week.
// 국가/주 단위 원본 행은 Rows 에 그대로 보존
func AggregateExportSales(commodity string, marketYear int, rows []esrRow) contracts.ExportSales {
	latest := ""
	for _, r := range rows {
		if r.WeekEndingDate > latest {
			latest = r.WeekEndingDate
		}
	}

	out := contracts.ExportSales{
		Commodity:     commodity,
		MarketingYear: marketYear,
		WeekEnding:    dayOnly(latest),
		Rows:          make([]contracts.ExportSalesRow, 0, len(rows)),
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, contracts.ExportSalesRow{
			WeekEnding:         dayOnly(r.WeekEndingDate),
			CountryCode:        r.CountryCode,
			NetSales:           r.NetSales,
			WeeklyExports:      r.WeeklyExports,
			AccumulatedExports: r.AccumulatedExports,
			OutstandingSales:   r.OutstandingSales,
		})
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if out.Rows[i].WeekEnding != out.Rows[j].WeekEnding {
			return out.Rows[i].WeekEnding < out.Rows[j].WeekEnding
		}
		return out.Rows[i].CountryCode < out.Rows[j].CountryCode
	})

	for _, r := range rows {
		if r.WeekEndingDate != latest {
			continue
		}
		out.NetSales += r.NetSales
		out.WeeklyExports += r.WeeklyExports
		out.AccumulatedExports += r.AccumulatedExports
		out.OutstandingSales += r.OutstandingSales
		if r.CountryCode == chinaCode {
			out.ChinaAccumulated += r.AccumulatedExports
		}
	}
	return out
}

func dayOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

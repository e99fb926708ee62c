package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name in the registry and on disk
const Name = "prices"

// Adapter collects daily bars for every exchange symbol of the registry
// ⭐ SSOT: 거래소 가격 수집은 이 어댑터에서만 (ticker 는 registry 에서)
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	symbols    map[string]registry.Symbol
	codes      []string
}

// New creates the prices adapter
func New(httpClient *httputil.Client, reg *registry.Registry, log *logger.Logger) *Adapter {
	codes := reg.ExchangeSymbols()
	symbols := make(map[string]registry.Symbol, len(codes))
	for _, code := range codes {
		symbols[code] = reg.Symbols[code]
	}
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://query1.finance.yahoo.com",
		symbols:    symbols,
		codes:      codes,
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// chartResponse is the subset of the v8 chart payload we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements collector.Adapter.
// 심볼 단위 실패는 Failed 에 기록. 전부 실패할 때만 에러
func (a *Adapter) Fetch(ctx context.Context, w collector.Window, _ collector.Options) (interface{}, error) {
	data := contracts.PricesData{
		Symbols: make(map[string]contracts.Series, len(a.codes)),
		Units:   make(map[string]string, len(a.codes)),
		Failed:  make(map[string]string),
	}

	var firstErr error
	for _, code := range a.codes {
		sym := a.symbols[code]
		series, err := a.fetchSymbol(ctx, sym.Ticker, w)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			data.Failed[code] = err.Error()
			a.logger.WithError(err).WithField("symbol", code).Warn("symbol fetch failed")
			continue
		}
		data.Symbols[code] = series
		data.Units[code] = sym.Unit
	}

	a.logger.WithFields(map[string]interface{}{
		"success": len(data.Symbols),
		"failed":  len(data.Failed),
		"total":   len(a.codes),
	}).Info("prices collected")

	if len(data.Symbols) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if len(data.Failed) == 0 {
		data.Failed = nil
	}
	return data, nil
}

func (a *Adapter) fetchSymbol(ctx context.Context, ticker string, w collector.Window) (contracts.Series, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", w.From.Unix()))
	params.Set("period2", fmt.Sprintf("%d", w.To.Unix()))
	params.Set("interval", "1d")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", a.baseURL, url.PathEscape(ticker), params.Encode())

	var resp chartResponse
	if err := external.GetJSON(ctx, a.httpClient, Name, "chart "+ticker, fullURL, &resp); err != nil {
		return nil, err
	}
	return parseChart(ticker, resp)
}

// parseChart converts the columnar chart payload into validated bars
func parseChart(ticker string, resp chartResponse) (contracts.Series, error) {
	if resp.Chart.Error != nil {
		return nil, &contracts.ParseError{Source: Name, Field: ticker, Err: fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)}
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: ticker, Err: fmt.Errorf("empty chart result")}
	}

	res := resp.Chart.Result[0]
	q := res.Indicators.Quote[0]
	series := make(contracts.Series, 0, len(res.Timestamp))
	seen := make(map[string]int)
	for i, ts := range res.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		bar := contracts.Bar{
			Date:  time.Unix(ts, 0).UTC().Format(contracts.DateLayout),
			Open:  at(q.Open, i),
			High:  at(q.High, i),
			Low:   at(q.Low, i),
			Close: q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		if bar.Validate() != nil {
			continue
		}
		// 같은 날짜가 두 번 오면 (장중 갱신) 마지막 값 사용
		if j, ok := seen[bar.Date]; ok {
			series[j] = bar
			continue
		}
		seen[bar.Date] = len(series)
		series = append(series, bar)
	}

	if len(series) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: ticker, Err: fmt.Errorf("no valid bars")}
	}
	return series, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

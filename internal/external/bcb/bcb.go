package bcb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "bcb"

// Series is one SGS series definition
type Series struct {
	Key      string
	Code     int
	Name     string
	Unit     string
	Lookback int // days
}

// DefaultSeries are the SGS series the report uses
var DefaultSeries = []Series{
	{Key: "PTAX", Code: 1, Name: "Dólar PTAX venda", Unit: "BRL/USD", Lookback: 400},
	{Key: "SELIC", Code: 432, Name: "Meta Selic", Unit: "pct", Lookback: 400},
	{Key: "IPCA", Code: 433, Name: "IPCA mensal", Unit: "pct", Lookback: 800},
	{Key: "IGPM", Code: 189, Name: "IGP-M mensal", Unit: "pct", Lookback: 800},
}

// Adapter reads Banco Central SGS series
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	series     []Series
}

// New creates the bcb adapter
func New(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://api.bcb.gov.br",
		series:     DefaultSeries,
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

type sgsRow struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// Fetch implements collector.Adapter.
// PTAX 는 필수. 나머지 시리즈 실패는 로그만 남김
func (a *Adapter) Fetch(ctx context.Context, w collector.Window, _ collector.Options) (interface{}, error) {
	data := contracts.BCBData{Series: make(map[string]contracts.MacroSeries, len(a.series))}

	for _, s := range a.series {
		ms, err := a.fetchSeries(ctx, s, w.To)
		if err != nil {
			if s.Key == "PTAX" || ctx.Err() != nil {
				return nil, err
			}
			a.logger.WithError(err).WithField("series", s.Key).Warn("sgs series failed")
			continue
		}
		data.Series[s.Key] = ms
	}

	a.logger.WithField("series", len(data.Series)).Info("bcb collected")
	return data, nil
}

func (a *Adapter) fetchSeries(ctx context.Context, s Series, to time.Time) (contracts.MacroSeries, error) {
	from := to.AddDate(0, 0, -s.Lookback)
	fullURL := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados?formato=json&dataInicial=%s&dataFinal=%s",
		a.baseURL, s.Code, from.Format("02/01/2006"), to.Format("02/01/2006"))

	var rows []sgsRow
	if err := external.GetJSON(ctx, a.httpClient, Name, s.Key, fullURL, &rows); err != nil {
		return contracts.MacroSeries{}, err
	}

	history, err := parseRows(rows)
	if err != nil {
		return contracts.MacroSeries{}, &contracts.ParseError{Source: Name, Field: s.Key, Err: err}
	}
	return contracts.MacroSeries{
		Code:    strconv.Itoa(s.Code),
		Name:    s.Name,
		Unit:    s.Unit,
		Latest:  history[len(history)-1],
		History: history,
	}, nil
}

// parseRows converts SGS rows (dd/mm/yyyy, decimal string) into ascending points
func parseRows(rows []sgsRow) ([]contracts.Point, error) {
	out := make([]contracts.Point, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse("02/01/2006", strings.TrimSpace(r.Data))
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Valor), 64)
		if err != nil {
			continue
		}
		out = append(out, contracts.Point{Date: d.Format(contracts.DateLayout), Value: v})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no valid observations in %d rows", len(rows))
	}
	return out, nil
}

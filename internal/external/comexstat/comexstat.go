package comexstat

import (
	"bytes"
	"context"
	"fmt"
	"sort"
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
const Name = "comexstat"

// MonthsBack is the monthly history requested
const MonthsBack = 12

// chinaName is how ComexStat labels China in the country detail
const chinaName = "China"

// Headings maps commodity keys to SH4 heading codes
// ⭐ SSOT: export race 와 bundle 이 이 키를 사용
var Headings = map[string]string{
	"soja_grao":    "1201",
	"milho_grao":   "1005",
	"farelo_soja":  "2304",
	"oleo_soja":    "1507",
	"carne_bov_fr": "0201",
	"carne_bov_cg": "0202",
}

// Adapter reads Brazilian export statistics from ComexStat
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// New creates the comexstat adapter
func New(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://api-comexstat.mdic.gov.br",
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

type periodRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type filter struct {
	Filter string   `json:"filter"`
	Values []string `json:"values"`
}

type query struct {
	Flow        string      `json:"flow"`
	MonthDetail bool        `json:"monthDetail"`
	Period      periodRange `json:"period"`
	Filters     []filter    `json:"filters"`
	Details     []string    `json:"details"`
	Metrics     []string    `json:"metrics"`
}

// number accepts both JSON numbers and numeric strings
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type record struct {
	Year        number `json:"year"`
	MonthNumber number `json:"monthNumber"`
	HeadingCode string `json:"headingCode"`
	Country     string `json:"country"`
	MetricFOB   number `json:"metricFOB"`
	MetricKG    number `json:"metricKG"`
}

type response struct {
	Data struct {
		List []record `json:"list"`
	} `json:"data"`
}

// Fetch implements collector.Adapter.
// 호출 1: 월별 heading 합계, 호출 2: heading + 국가 (API 가 monthDetail 과 country 를 같이 못 줌)
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, opts collector.Options) (interface{}, error) {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	period := periodRange{
		From: asOf.AddDate(0, -MonthsBack, 0).Format("2006-01"),
		To:   asOf.Format("2006-01"),
	}

	headings := make([]string, 0, len(Headings))
	for _, h := range Headings {
		headings = append(headings, h)
	}
	sort.Strings(headings)

	monthly, err := a.query(ctx, "monthly", query{
		Flow:        "export",
		MonthDetail: true,
		Period:      period,
		Filters:     []filter{{Filter: "heading", Values: headings}},
		Details:     []string{"heading"},
		Metrics:     []string{"metricFOB", "metricKG"},
	})
	if err != nil {
		return nil, err
	}

	byCountry, err := a.query(ctx, "by_country", query{
		Flow:    "export",
		Period:  period,
		Filters: []filter{{Filter: "heading", Values: headings}},
		Details: []string{"heading", "country"},
		Metrics: []string{"metricFOB", "metricKG"},
	})
	if err != nil {
		return nil, err
	}

	data := Build(monthly, byCountry, asOf.Year())
	if len(data.Flows) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: "monthly", Err: fmt.Errorf("no tracked headings in %d records", len(monthly))}
	}

	a.logger.WithFields(map[string]interface{}{
		"period":  period.From + ".." + period.To,
		"flows":   len(data.Flows),
		"ytd":     len(data.YTD),
		"country": len(byCountry),
	}).Info("comexstat collected")

	return data, nil
}

func (a *Adapter) query(ctx context.Context, op string, q query) ([]record, error) {
	var resp response
	if err := external.PostJSON(ctx, a.httpClient, Name, op, a.baseURL+"/general", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data.List, nil
}

// Build aggregates records into flows and the YTD totals of year.
// China 누적은 국가별 연간 데이터에서 가져옴
func Build(monthly, byCountry []record, year int) contracts.ComexData {
	keyOf := make(map[string]string, len(Headings))
	for key, code := range Headings {
		keyOf[code] = key
	}

	type flowKey struct{ heading, period, country string }
	agg := make(map[flowKey]*contracts.ComexFlow)
	ytd := make(map[string]contracts.ComexYTD)

	add := func(r record, period, country string) {
		key, ok := keyOf[r.HeadingCode]
		if !ok {
			return
		}
		k := flowKey{key, period, country}
		f, ok := agg[k]
		if !ok {
			f = &contracts.ComexFlow{Heading: key, Period: period, Country: country}
			agg[k] = f
		}
		f.FOBUSD += float64(r.MetricFOB)
		f.KG += float64(r.MetricKG)
	}

	for _, r := range monthly {
		period := fmt.Sprintf("%04d-%02d", int(r.Year), int(r.MonthNumber))
		add(r, period, "")

		key, ok := keyOf[r.HeadingCode]
		if !ok || int(r.Year) != year {
			continue
		}
		y := ytd[key]
		y.Heading, y.Year = key, year
		y.KG += float64(r.MetricKG)
		y.FOBUSD += float64(r.MetricFOB)
		ytd[key] = y
	}

	for _, r := range byCountry {
		country := strings.TrimSpace(r.Country)
		add(r, strconv.Itoa(int(r.Year)), country)

		key, ok := keyOf[r.HeadingCode]
		if !ok || int(r.Year) != year || country != chinaName {
			continue
		}
		y := ytd[key]
		y.Heading, y.Year = key, year
		y.ChinaKG += float64(r.MetricKG)
		ytd[key] = y
	}

	flows := make([]contracts.ComexFlow, 0, len(agg))
	for _, f := range agg {
		flows = append(flows, *f)
	}
	sort.Slice(flows, func(i, j int) bool {
		a, b := flows[i], flows[j]
		if a.Heading != b.Heading {
			return a.Heading < b.Heading
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Country < b.Country
	})

	return contracts.ComexData{Flows: flows, YTD: ytd}
}

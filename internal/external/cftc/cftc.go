package cftc

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "cot"

// MaxWeeks bounds the history kept per market (3 years)
const MaxWeeks = 156

// Socrata dataset ids on publicreporting.cftc.gov
const (
	legacyDataset = "6dca-aqww" // Legacy, futures only
	disaggDataset = "72hh-3qpy" // Disaggregated, futures only
)

// Markets maps roster codes to CFTC contract market codes
var Markets = map[string]string{
	"ZC": "002602",
	"ZS": "005602",
	"ZW": "001602",
	"KE": "001612",
	"ZM": "026603",
	"ZL": "007601",
	"LE": "057642",
	"GF": "061641",
	"HE": "054642",
	"KC": "083731",
	"CC": "073732",
	"SB": "080732",
	"CT": "033661",
	"OJ": "040701",
	"CL": "067651",
	"NG": "023651",
	"GC": "088691",
}

// Adapter collects Commitments of Traders positioning
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// New creates the cot adapter
func New(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://publicreporting.cftc.gov",
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// socrataRow holds the columns of both datasets; Socrata returns numbers as strings
type socrataRow struct {
	Date         string `json:"report_date_as_yyyy_mm_dd"`
	MarketCode   string `json:"cftc_contract_market_code"`
	OpenInterest string `json:"open_interest_all"`

	NonCommLong  string `json:"noncomm_positions_long_all"`
	NonCommShort string `json:"noncomm_positions_short_all"`
	CommLong     string `json:"comm_positions_long_all"`
	CommShort    string `json:"comm_positions_short_all"`

	ManagedLong   string `json:"m_money_positions_long_all"`
	ManagedShort  string `json:"m_money_positions_short_all"`
	ProducerLong  string `json:"prod_merc_positions_long"`
	ProducerShort string `json:"prod_merc_positions_short"`
}

// Fetch implements collector.Adapter
func (a *Adapter) Fetch(ctx context.Context, w collector.Window, _ collector.Options) (interface{}, error) {
	from := w.To.AddDate(0, 0, -7*MaxWeeks).Format(contracts.DateLayout)

	legacy, err := a.query(ctx, legacyDataset, from)
	if err != nil {
		return nil, err
	}
	disagg, err := a.query(ctx, disaggDataset, from)
	if err != nil {
		// 분류 데이터 없이도 legacy 만으로 보고서 생성 가능
		a.logger.WithError(err).Warn("disaggregated report unavailable")
		disagg = nil
	}

	data := contracts.COTData{Reports: make(map[string]contracts.COTReport)}
	codes := make([]string, 0, len(Markets))
	for code := range Markets {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		report, ok := buildReport(code, Markets[code], legacy, disagg)
		if ok {
			data.Reports[code] = report
		}
	}

	if len(data.Reports) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: "reports", Err: fmt.Errorf("no roster market found in %d rows", len(legacy))}
	}

	a.logger.WithFields(map[string]interface{}{
		"markets": len(data.Reports),
		"rows":    len(legacy) + len(disagg),
	}).Info("cot collected")
	return data, nil
}

func (a *Adapter) query(ctx context.Context, dataset, from string) ([]socrataRow, error) {
	codes := make([]string, 0, len(Markets))
	for _, c := range Markets {
		codes = append(codes, "'"+c+"'")
	}
	sort.Strings(codes)

	params := url.Values{}
	params.Set("$where", fmt.Sprintf("report_date_as_yyyy_mm_dd >= '%s' AND cftc_contract_market_code in (%s)", from, strings.Join(codes, ",")))
	params.Set("$order", "report_date_as_yyyy_mm_dd ASC")
	params.Set("$limit", "50000")
	fullURL := fmt.Sprintf("%s/resource/%s.json?%s", a.baseURL, dataset, params.Encode())

	var rows []socrataRow
	if err := external.GetJSON(ctx, a.httpClient, Name, dataset, fullURL, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// buildReport assembles one market's history and derived positioning
func buildReport(code, market string, legacy, disagg []socrataRow) (contracts.COTReport, bool) {
	report := contracts.COTReport{Market: code}

	for _, r := range legacy {
		if r.MarketCode != market {
			continue
		}
		report.Legacy = append(report.Legacy, contracts.COTRow{
			Date:         day(r.Date),
			OpenInterest: num(r.OpenInterest),
			NonCommLong:  num(r.NonCommLong),
			NonCommShort: num(r.NonCommShort),
			CommLong:     num(r.CommLong),
			CommShort:    num(r.CommShort),
		})
	}
	for _, r := range disagg {
		if r.MarketCode != market {
			continue
		}
		report.Disaggregated = append(report.Disaggregated, contracts.COTRow{
			Date:              day(r.Date),
			OpenInterest:      num(r.OpenInterest),
			ManagedMoneyLong:  num(r.ManagedLong),
			ManagedMoneyShort: num(r.ManagedShort),
			ProducerLong:      num(r.ProducerLong),
			ProducerShort:     num(r.ProducerShort),
		})
	}
	if len(report.Legacy) == 0 {
		return report, false
	}

	report.Legacy = tail(sortRows(report.Legacy))
	report.Disaggregated = tail(sortRows(report.Disaggregated))

	nets := make([]float64, len(report.Legacy))
	for i, r := range report.Legacy {
		nets[i] = r.NonCommLong - r.NonCommShort
	}
	last := len(nets) - 1
	report.NetNonComm = nets[last]
	if last > 0 {
		report.WeeklyChange = nets[last] - nets[last-1]
	}
	report.COTIndex = Index(nets)

	if n := len(report.Disaggregated); n > 0 {
		r := report.Disaggregated[n-1]
		report.NetManaged = r.ManagedMoneyLong - r.ManagedMoneyShort
	}
	return report, true
}

// Index is the COT index: where the latest net position sits in its
// history range, 0..100. nil when the range is flat.
func Index(nets []float64) *float64 {
	if len(nets) < 2 {
		return nil
	}
	lo, hi := nets[0], nets[0]
	for _, v := range nets {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return nil
	}
	idx := (nets[len(nets)-1] - lo) / (hi - lo) * 100
	return &idx
}

func sortRows(rows []contracts.COTRow) []contracts.COTRow {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

func tail(rows []contracts.COTRow) []contracts.COTRow {
	if len(rows) > MaxWeeks {
		return rows[len(rows)-MaxWeeks:]
	}
	return rows
}

// day trims Socrata's floating timestamp ("2025-02-25T00:00:00.000")
func day(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Package ams reads USDA AMS transportation datasets published as XLSX.
package ams

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Adapter names
const (
	NameGTR    = "usda_gtr"
	NameBrazil = "usda_brazil_transport"
)

// Route names the bilateral landed-cost model looks up
// ⭐ SSOT: 노선 이름은 여기서만 정의
const (
	RouteBargeIllinois       = "barge_illinois_gulf"
	RouteOceanGulfAsia       = "ocean_gulf_asia"
	RouteOceanPNWAsia        = "ocean_pnw_asia"
	RouteDiesel              = "diesel_retail"
	RouteRailShuttle         = "rail_shuttle"
	RouteOceanSantosChina    = "Santos - China (Shanghai)"
	RouteOceanParanaguaChina = "Paranaguá - China (Shanghai)"
)

// Sheet is one workbook the adapter downloads and the parser for its sheet
type Sheet struct {
	Key   string
	Path  string
	Sheet string // 비어 있으면 첫 번째 시트
	Parse Parser
}

// Parser turns raw sheet rows into freight records
type Parser func(rows [][]string, log *logger.Logger) ([]contracts.FreightRecord, error)

// GTRSheets are the Grain Transportation Report tables
var GTRSheets = []Sheet{
	{Key: "table1", Path: "/GTRTable1.xlsx", Sheet: "Data", Parse: ParseCostIndicators},
}

// BrazilSheets are the Brazil soybean transportation guide tables
var BrazilSheets = []Sheet{
	{Key: "ocean_freight", Path: "/QuarterlyoceanfreightratesforshippingsoybeansfromselectedBrazilianportstoGermanyandChina_2005_24.xlsx", Sheet: "Table 9", Parse: ParseOceanFreight},
	{Key: "truck_routes", Path: "/QuarterlyTruckRates_2024.xlsx", Sheet: "Table 7", Parse: TruckRoutesParser(2024)},
}

// Adapter downloads and parses one AMS dataset family
type Adapter struct {
	name       string
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	sheets     []Sheet
}

// NewGTR creates the usda_gtr adapter.
// httpClient 는 다운로드용 타임아웃(120s)으로 생성해야 함
func NewGTR(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return newAdapter(NameGTR, GTRSheets, httpClient, log)
}

// NewBrazilTransport creates the usda_brazil_transport adapter
func NewBrazilTransport(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return newAdapter(NameBrazil, BrazilSheets, httpClient, log)
}

func newAdapter(name string, sheets []Sheet, httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return &Adapter{
		name:       name,
		httpClient: httpClient,
		logger:     log.WithField("adapter", name),
		baseURL:    "https://www.ams.usda.gov/sites/default/files/media",
		sheets:     sheets,
	}
}

// WithBaseURL overrides the download host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return a.name }

// Fetch implements collector.Adapter.
// 워크북 하나라도 실패하면 전체 실패 (부분 데이터로 landed cost 를 계산하지 않음)
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	data := contracts.FreightData{Dataset: a.name}

	for _, s := range a.sheets {
		body, err := external.GetBody(ctx, a.httpClient, a.name, s.Key, a.baseURL+s.Path)
		if err != nil {
			return nil, err
		}
		rows, err := ReadRows(body, s.Sheet)
		if err != nil {
			return nil, &contracts.ParseError{Source: a.name, Field: s.Key, Err: err}
		}
		records, err := s.Parse(rows, a.logger.WithField("sheet", s.Key))
		if err != nil {
			return nil, &contracts.ParseError{Source: a.name, Field: s.Key, Err: err}
		}
		a.logger.WithFields(map[string]interface{}{
			"sheet":   s.Key,
			"rows":    len(rows),
			"records": len(records),
		}).Info("sheet parsed")
		data.Records = append(data.Records, records...)
	}

	sort.SliceStable(data.Records, func(i, j int) bool {
		x, y := data.Records[i], data.Records[j]
		if x.Route != y.Route {
			return x.Route < y.Route
		}
		if x.Year != y.Year {
			return x.Year < y.Year
		}
		return x.Quarter < y.Quarter
	})
	return data, nil
}

// ReadRows opens an XLSX payload and returns the raw cell values of a sheet
func ReadRows(body []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// number parses a cell; blanks, "-" and "n/a" are absent
func number(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "", "-", "n/a", "na":
		return 0, false
	}
	v, err := external.ParseNumber(s)
	return v, err == nil
}

// cellDate parses an Excel serial date or an ISO / US formatted date
func cellDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 1 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		return t, err == nil
	}
	for _, layout := range []string{contracts.DateLayout, "1/2/2006", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func quarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// freightRow is a parsed record plus the raw label it was read from
type freightRow struct {
	contracts.FreightRecord
	label string
}

func quarterKey(r contracts.FreightRecord) string {
	return fmt.Sprintf("%d/Q%d", r.Year, r.Quarter)
}

// 같은 (노선, 분기) 에 서로 다른 label 이 섞이면 mixed-series
var freightKey = collector.DedupeKey[freightRow]{
	Period: func(r freightRow) string { return quarterKey(r.FreightRecord) },
	Series: func(r freightRow) string { return r.Route },
	Value:  func(r freightRow) float64 { return r.Value },
	Desc:   func(r freightRow) string { return r.label },
	Bucket: func(r freightRow) string { return r.Route + " " + quarterKey(r.FreightRecord) },
}

// dedupeFreight collapses duplicate (route, year, quarter) rows to their max
func dedupeFreight(rows []freightRow, log *logger.Logger) []contracts.FreightRecord {
	kept, _ := collector.DedupeMaxBy(rows, freightKey, log)
	out := make([]contracts.FreightRecord, 0, len(kept))
	for _, r := range kept {
		out = append(out, r.FreightRecord)
	}
	return out
}

// ParseCostIndicators averages GTR Table 1 weekly cost indicators per quarter.
// 같은 주가 두 번 나오면 max 만 평균에 포함.
// 열: Date | Diesel $/gal | Rail $/car | Barge % tariff | Ocean Gulf $/mt | Ocean PNW $/mt
func ParseCostIndicators(rows [][]string, log *logger.Logger) ([]contracts.FreightRecord, error) {
	columns := []struct {
		route, mode, unit string
	}{
		{RouteDiesel, "truck", "USD/gal"},
		{RouteRailShuttle, "rail", "USD/car"},
		{RouteBargeIllinois, "barge", "pct_tariff"},
		{RouteOceanGulfAsia, "ocean", "USD/mt"},
		{RouteOceanPNWAsia, "ocean", "USD/mt"},
	}

	type weekly struct {
		col   int
		date  time.Time
		value float64
	}
	var obs []weekly
	for _, row := range rows {
		t, ok := cellDate(cell(row, 0))
		if !ok {
			continue
		}
		for i := range columns {
			if v, ok := number(cell(row, i+1)); ok {
				obs = append(obs, weekly{col: i, date: t, value: v})
			}
		}
	}
	obs, _ = collector.DedupeMaxBy(obs, collector.DedupeKey[weekly]{
		Period: func(w weekly) string { return w.date.Format(contracts.DateLayout) },
		Series: func(w weekly) string { return columns[w.col].route },
		Value:  func(w weekly) float64 { return w.value },
	}, log)

	type key struct {
		col, year, quarter int
	}
	sums := make(map[key]float64)
	counts := make(map[key]int)
	for _, w := range obs {
		k := key{w.col, w.date.Year(), quarterOf(w.date)}
		sums[k] += w.value
		counts[k]++
	}
	if len(sums) == 0 {
		return nil, fmt.Errorf("no dated rows")
	}

	out := make([]contracts.FreightRecord, 0, len(sums))
	for k, sum := range sums {
		c := columns[k.col]
		out = append(out, contracts.FreightRecord{
			Route:   c.route,
			Mode:    c.mode,
			Year:    k.year,
			Quarter: k.quarter,
			Value:   round2(sum / float64(counts[k])),
			Unit:    c.unit,
		})
	}
	return out, nil
}

// ParseOceanFreight reads the repeating yearly blocks of the Brazil ocean
// freight table: a header row (Port | Destination | 1st qtr YYYY ...) then
// one row per port/destination with four quarterly values.
// 같은 노선/분기가 여러 블록에 나오면 max 를 사용
func ParseOceanFreight(rows [][]string, log *logger.Logger) ([]contracts.FreightRecord, error) {
	var out []freightRow
	year := 0
	var header []string

	for _, row := range rows {
		if strings.EqualFold(cell(row, 1), "Port") {
			year = yearIn(row[2:])
			header = row
			continue
		}
		port, dest := cell(row, 1), cell(row, 2)
		if year == 0 || port == "" || dest == "" {
			continue
		}
		for q := 1; q <= 4; q++ {
			v, ok := number(cell(row, 2+q))
			if !ok {
				continue
			}
			out = append(out, freightRow{
				FreightRecord: contracts.FreightRecord{
					Route:   port + " - " + dest,
					Mode:    "ocean",
					Year:    year,
					Quarter: q,
					Value:   v,
					Unit:    "USD/mt",
				},
				label: cell(header, 2+q),
			})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no port rows")
	}
	return dedupeFreight(out, log), nil
}

func yearIn(cells []string) int {
	for _, c := range cells {
		for _, word := range strings.Fields(c) {
			if y, err := strconv.Atoi(word); err == nil && y >= 2000 && y <= 2100 {
				return y
			}
		}
	}
	return 0
}

// TruckRoutesParser reads the quarterly truck rate table of one year.
// Route # 가 달라도 출발지/도착지가 같으면 한 노선으로 보고 max 를 사용.
// 열: _ | Route # | Origin | Destination | Distance | Share % | Q1..Q4 (US$/mt/100mi)
func TruckRoutesParser(year int) Parser {
	return func(rows [][]string, log *logger.Logger) ([]contracts.FreightRecord, error) {
		var out []freightRow
		for _, row := range rows {
			if _, ok := number(cell(row, 1)); !ok {
				continue
			}
			origin, dest := cell(row, 2), cell(row, 3)
			if origin == "" || dest == "" {
				continue
			}
			for q := 1; q <= 4; q++ {
				v, ok := number(cell(row, 5+q))
				if !ok {
					continue
				}
				out = append(out, freightRow{
					FreightRecord: contracts.FreightRecord{
						Route:   origin + " - " + dest,
						Mode:    "truck",
						Year:    year,
						Quarter: q,
						Value:   v,
						Unit:    "USD/mt/100mi",
					},
					label: "route #" + cell(row, 1),
				})
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no route rows")
		}
		return dedupeFreight(out, log), nil
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

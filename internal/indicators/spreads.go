package indicators

import (
	"fmt"
	"sort"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
)

// SpreadSeries evaluates a spread on every date where all components have a close
func SpreadSeries(s registry.Spread, history contracts.PriceHistory) ([]contracts.Point, error) {
	codes := s.Codes()
	closes := make([]map[string]float64, len(codes))
	for i, code := range codes {
		series, ok := history[code]
		if !ok || len(series) == 0 {
			return nil, fmt.Errorf("no prices for %s", code)
		}
		closes[i] = make(map[string]float64, len(series))
		for _, p := range series.Closes() {
			closes[i][p.Date] = p.Value
		}
	}

	// 날짜 교집합
	var dates []string
	for d := range closes[0] {
		shared := true
		for _, m := range closes[1:] {
			if _, ok := m[d]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	points := make([]contracts.Point, 0, len(dates))
	prices := make(map[string]float64, len(codes))
	for _, d := range dates {
		for i, code := range codes {
			prices[code] = closes[i][d]
		}
		v, err := s.Evaluate(prices)
		if err != nil {
			// 0 으로 나누기 등 해당 날짜만 제외
			continue
		}
		points = append(points, contracts.Point{Date: d, Value: v})
	}
	return points, nil
}

// Spreads evaluates every registered spread.
// 레지스트리에 없는 심볼을 참조하면 프로그래머 오류로 에러 반환
func Spreads(reg *registry.Registry, history contracts.PriceHistory) (contracts.SpreadsReport, error) {
	report := contracts.SpreadsReport{
		Spreads: make(map[string]contracts.ProcessedIndicator),
		Skipped: make(map[string]string),
	}

	for _, name := range reg.SpreadNames() {
		s := reg.Spreads[name]
		for _, code := range s.Codes() {
			if _, ok := reg.Symbols[code]; !ok {
				return report, fmt.Errorf("spread %s references unknown symbol %s", name, code)
			}
		}

		points, err := SpreadSeries(s, history)
		if err != nil {
			report.Skipped[name] = err.Error()
			continue
		}
		if len(points) < MinSpreadPoints {
			report.Skipped[name] = fmt.Sprintf("insufficient history: %d points", len(points))
			continue
		}

		report.Spreads[name] = buildIndicator(name, s, points)
	}

	if len(report.Skipped) == 0 {
		report.Skipped = nil
	}
	return report, nil
}

func buildIndicator(name string, s registry.Spread, points []contracts.Point) contracts.ProcessedIndicator {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	last := points[len(points)-1]
	trend, trendPct := ComputeTrend(values)

	tail := points
	if len(tail) > HistoryPoints {
		tail = tail[len(tail)-HistoryPoints:]
	}
	history := make([]contracts.Point, len(tail))
	for i, p := range tail {
		history[i] = contracts.Point{Date: p.Date, Value: round(p.Value, 4)}
	}

	return contracts.ProcessedIndicator{
		Name:        name,
		Kind:        s.Kind,
		Description: s.Description,
		Unit:        s.Unit,
		Inputs:      s.Codes(),
		Current:     round(last.Value, 6),
		AsOf:        last.Date,
		Points:      len(points),
		History:     history,
		Statistics:  ComputeStatistics(values),
		Trend:       trend,
		TrendPct:    trendPct,
	}
}

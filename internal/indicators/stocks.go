package indicators

import (
	"math"
	"sort"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
)

const (
	stockExtremePct   = 15.0
	stockBiasPct      = 5.0
	stockCheckUnitPct = 80.0

	proxyStrongPct = 20.0
	proxyMildPct   = 10.0

	stockTrendPct = 3.0

	stockSource = "USDA PSD"

	// FlagMixedSeries is attached to VERIFICAR_UNIDADE entries
	FlagMixedSeries = "possible_mixed_series"
)

// Stock trend labels
const (
	StockTrendUp     = "SUBINDO"
	StockTrendDown   = "CAINDO"
	StockTrendStable = "ESTAVEL"
)

// ClassifyStock maps a deviation from the same-period mean to a state.
// ±15 경계는 강한 쪽(APERTO/EXCESSO)에 포함, |dev| > 80 은 단위/시리즈 혼합 의심
func ClassifyStock(dev float64) contracts.StockState {
	switch {
	case math.Abs(dev) > stockCheckUnitPct:
		return contracts.StockCheckUnit
	case dev <= -stockExtremePct:
		return contracts.StockTight
	case dev >= stockExtremePct:
		return contracts.StockSurplus
	case dev < -stockBiasPct:
		return contracts.StockNeutralTight
	case dev > stockBiasPct:
		return contracts.StockNeutralSurplus
	default:
		return contracts.StockNeutral
	}
}

// ClassifyPriceProxy maps a price deviation from the seasonal average to a proxy state
func ClassifyPriceProxy(dev float64) contracts.StockState {
	switch {
	case dev > proxyStrongPct:
		return contracts.PriceElevated
	case dev > proxyMildPct:
		return contracts.PriceAboveAvg
	case dev < -proxyStrongPct:
		return contracts.PriceDepressed
	case dev < -proxyMildPct:
		return contracts.PriceBelowAvg
	default:
		return contracts.PriceNeutral
	}
}

// DedupeByPeriod keeps the max value per (year, period): a total beats its subtotals
func DedupeByPeriod(rows []contracts.StockObservation) []contracts.StockObservation {
	type key struct {
		year   int
		period string
	}
	best := make(map[key]contracts.StockObservation, len(rows))
	for _, r := range rows {
		k := key{r.Year, r.Period}
		if cur, ok := best[k]; !ok || r.Value > cur.Value {
			best[k] = r
		}
	}

	out := make([]contracts.StockObservation, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// StockDeviation compares the latest observation with the mean of prior years for the same period
func StockDeviation(rows []contracts.StockObservation) (current contracts.StockObservation, avg, dev float64, ok bool) {
	rows = DedupeByPeriod(rows)
	if len(rows) == 0 {
		return contracts.StockObservation{}, 0, 0, false
	}
	current = rows[len(rows)-1]

	var prior []float64
	for _, r := range rows {
		if r.Period == current.Period && r.Year < current.Year {
			prior = append(prior, r.Value)
		}
	}
	if len(prior) == 0 {
		return current, 0, 0, false
	}

	avg = mean(prior)
	if avg == 0 {
		return current, 0, 0, false
	}
	return current, avg, (current.Value - avg) / avg * 100, true
}

func stockTrend(rows []contracts.StockObservation) string {
	rows = DedupeByPeriod(rows)
	if len(rows) < 2 {
		return ""
	}
	prev, cur := rows[len(rows)-2].Value, rows[len(rows)-1].Value
	if prev == 0 {
		return ""
	}
	change := (cur - prev) / prev * 100
	switch {
	case change > stockTrendPct:
		return StockTrendUp
	case change < -stockTrendPct:
		return StockTrendDown
	default:
		return StockTrendStable
	}
}

// Stocks classifies every symbol registered under stocks.series.
// 실제 재고가 없으면 계절 평균 대비 가격으로 proxy 분류. data_available 로 출처를 구분
func Stocks(reg *registry.Registry, stocks map[string][]contracts.StockObservation, history contracts.PriceHistory, seasonality contracts.Seasonality, asOf time.Time) contracts.StocksWatch {
	out := contracts.StocksWatch{Commodities: make(map[string]contracts.StockEntry)}

	for symbol, commodity := range reg.Stocks.Series {
		entry := contracts.StockEntry{Symbol: symbol, Commodity: commodity}

		if last, ok := history[symbol].LastClose(); ok {
			entry.Price = contracts.Float(last.Value)
			if dev, ok := priceVsAverage(last.Value, seasonality[symbol], asOf); ok {
				entry.PriceVsAvg = contracts.Float(dev)
			}
		}

		if cur, avg, dev, ok := StockDeviation(stocks[commodity]); ok {
			entry.State = ClassifyStock(dev)
			entry.Period = cur.Period
			entry.StockCurrent = contracts.Float(cur.Value)
			entry.StockAvg = contracts.Float(round(avg, 4))
			entry.StockUnit = cur.Unit
			entry.DeviationPct = contracts.Float(round(dev, 2))
			entry.StockTrend = stockTrend(stocks[commodity])
			entry.DataAvailable = contracts.DataAvailability{StockReal: true, StockSource: stockSource}
			if entry.State == contracts.StockCheckUnit {
				entry.Flags = append(entry.Flags, FlagMixedSeries)
			}
			out.Commodities[symbol] = entry
			continue
		}

		if entry.PriceVsAvg == nil {
			continue
		}
		entry.State = ClassifyPriceProxy(*entry.PriceVsAvg)
		entry.DataAvailable = contracts.DataAvailability{StockProxy: true}
		out.Commodities[symbol] = entry
	}

	return out
}

func priceVsAverage(price float64, seas contracts.SeasonalityEntry, asOf time.Time) (float64, bool) {
	avg, ok := seas.AverageAt(asOf.YearDay())
	if !ok || avg == 0 {
		return 0, false
	}
	return round((price-avg)/avg*100, 2), true
}

// PriceVsAverage returns every symbol's last close deviation (%) from its seasonal average
func PriceVsAverage(history contracts.PriceHistory, seasonality contracts.Seasonality, asOf time.Time) map[string]float64 {
	out := make(map[string]float64)
	for code, series := range history {
		last, ok := series.LastClose()
		if !ok {
			continue
		}
		if dev, ok := priceVsAverage(last.Value, seasonality[code], asOf); ok {
			out[code] = dev
		}
	}
	return out
}

package indicators

import (
	"sort"
	"strconv"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

const (
	// SeasonalYears 평균 곡선에 쓰는 완결 연도 수
	SeasonalYears = 5

	// SmoothingWindow centred rolling mean 폭
	SmoothingWindow = 7

	// 완결 연도: 첫 bar 가 1월 7일 이전, 마지막 bar 가 12월 24일 이후
	completeFirstDay = 7
	completeLastDay  = 24

	// series keys besides the year strings
	SeriesCurrent = "current"
	SeriesAverage = "average"
)

// SeasonalityOf builds the seasonal curve of one symbol.
// 평균은 asOf 연도 이전의 최근 5개 완결 연도만 사용 (부분 연도는 제외). 현재 연도는 "current" 로 겹쳐 그림
func SeasonalityOf(symbol string, series contracts.Series, asOf time.Time) (contracts.SeasonalityEntry, bool) {
	currentYear := asOf.Year()

	byYear := make(map[int][]contracts.SeasonalPoint)
	first := make(map[int]time.Time)
	last := make(map[int]time.Time)
	for _, b := range series {
		if b.Close == nil {
			continue
		}
		t, err := b.Time()
		if err != nil || t.After(asOf) {
			continue
		}
		y := t.Year()
		byYear[y] = append(byYear[y], contracts.SeasonalPoint{Day: t.YearDay(), Close: *b.Close})
		if f, ok := first[y]; !ok || t.Before(f) {
			first[y] = t
		}
		if l, ok := last[y]; !ok || t.After(l) {
			last[y] = t
		}
	}

	var complete []int
	for y := range byYear {
		if y < currentYear && coversYear(first[y], last[y]) {
			complete = append(complete, y)
		}
	}
	sort.Ints(complete)
	if len(complete) > SeasonalYears {
		complete = complete[len(complete)-SeasonalYears:]
	}
	if len(complete) == 0 {
		return contracts.SeasonalityEntry{}, false
	}

	entry := contracts.SeasonalityEntry{
		Symbol: symbol,
		Series: make(map[string][]contracts.SeasonalPoint),
	}

	byDay := make(map[int][]float64)
	for _, y := range complete {
		pts := sortedByDay(byYear[y])
		key := strconv.Itoa(y)
		entry.Years = append(entry.Years, key)
		entry.Series[key] = pts
		for _, p := range pts {
			byDay[p.Day] = append(byDay[p.Day], p.Close)
		}
	}

	if cur := byYear[currentYear]; len(cur) > 0 {
		entry.Years = append(entry.Years, SeriesCurrent)
		entry.Series[SeriesCurrent] = sortedByDay(cur)
	}

	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)

	avg := make([]contracts.SeasonalPoint, len(days))
	for i, d := range days {
		avg[i] = contracts.SeasonalPoint{Day: d, Close: mean(byDay[d])}
	}
	entry.Years = append(entry.Years, SeriesAverage)
	entry.Series[SeriesAverage] = Smooth(avg, SmoothingWindow)

	return entry, true
}

// coversYear reports whether a year's bars span the whole calendar year
func coversYear(first, last time.Time) bool {
	return first.Month() == time.January && first.Day() <= completeFirstDay &&
		last.Month() == time.December && last.Day() >= completeLastDay
}

// Seasonality builds curves for every symbol with at least one complete year
func Seasonality(history contracts.PriceHistory, asOf time.Time) contracts.Seasonality {
	out := make(contracts.Seasonality, len(history))
	for code, series := range history {
		if entry, ok := SeasonalityOf(code, series, asOf); ok {
			out[code] = entry
		}
	}
	return out
}

// Smooth applies a centred rolling mean; the window is truncated at the edges
func Smooth(points []contracts.SeasonalPoint, window int) []contracts.SeasonalPoint {
	half := window / 2
	out := make([]contracts.SeasonalPoint, len(points))
	for i := range points {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(points) {
			hi = len(points)
		}
		sum := 0.0
		for _, p := range points[lo:hi] {
			sum += p.Close
		}
		out[i] = contracts.SeasonalPoint{Day: points[i].Day, Close: round(sum/float64(hi-lo), 4)}
	}
	return out
}

// sortedByDay orders points by day-of-year; a duplicated day keeps the last close
func sortedByDay(points []contracts.SeasonalPoint) []contracts.SeasonalPoint {
	byDay := make(map[int]float64, len(points))
	for _, p := range points {
		byDay[p.Day] = p.Close
	}
	out := make([]contracts.SeasonalPoint, 0, len(byDay))
	for d, c := range byDay {
		out = append(out, contracts.SeasonalPoint{Day: d, Close: round(c, 4)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

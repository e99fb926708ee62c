package contracts

import (
	"fmt"
	"time"
)

// DateLayout is the ISO day format used in every artifact
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV observation
// ⭐ SSOT: 가격 데이터의 유일한 표현. OHLC 는 upstream 결측을 허용하기 위해 nullable
type Bar struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume int64    `json:"volume"`
}

// Time parses the bar date
func (b Bar) Time() (time.Time, error) {
	return time.Parse(DateLayout, b.Date)
}

// Validate checks the bar invariants: low ≤ open, close ≤ high when all present
func (b Bar) Validate() error {
	if _, err := b.Time(); err != nil {
		return fmt.Errorf("bar date %q: %w", b.Date, err)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s: negative volume %d", b.Date, b.Volume)
	}
	if b.Open == nil || b.High == nil || b.Low == nil || b.Close == nil {
		return nil
	}

	lo, hi := *b.Low, *b.High
	if lo > *b.Open || lo > *b.Close || *b.Open > hi || *b.Close > hi {
		return fmt.Errorf("bar %s: OHLC out of order (o=%g h=%g l=%g c=%g)", b.Date, *b.Open, hi, lo, *b.Close)
	}
	return nil
}

// Point is a dated scalar value
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Series is a symbol's bars in ascending date order
type Series []Bar

// Gap is a forward jump between consecutive bars
type Gap struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

// Validate checks that dates are strictly ascending and every bar is valid
func (s Series) Validate() error {
	var prev time.Time
	for i, b := range s {
		if err := b.Validate(); err != nil {
			return err
		}
		t, _ := b.Time()
		if i > 0 && !t.After(prev) {
			return fmt.Errorf("series not strictly ascending at %s", b.Date)
		}
		prev = t
	}
	return nil
}

// Gaps returns forward gaps longer than maxDays calendar days.
// 휴장일이 있으므로 gap 은 검증 에러가 아니라 보고 대상
func (s Series) Gaps(maxDays int) []Gap {
	var gaps []Gap
	for i := 1; i < len(s); i++ {
		a, errA := s[i-1].Time()
		b, errB := s[i].Time()
		if errA != nil || errB != nil {
			continue
		}
		days := int(b.Sub(a).Hours() / 24)
		if days > maxDays {
			gaps = append(gaps, Gap{From: s[i-1].Date, To: s[i].Date, Days: days})
		}
	}
	return gaps
}

// Closes returns the non-null closes as points
func (s Series) Closes() []Point {
	out := make([]Point, 0, len(s))
	for _, b := range s {
		if b.Close != nil {
			out = append(out, Point{Date: b.Date, Value: *b.Close})
		}
	}
	return out
}

// LastClose returns the most recent non-null close
func (s Series) LastClose() (Point, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Close != nil {
			return Point{Date: s[i].Date, Value: *s[i].Close}, true
		}
	}
	return Point{}, false
}

// DailyChangePct is the percent change between the last two closes
func (s Series) DailyChangePct() (float64, bool) {
	closes := s.Closes()
	if len(closes) < 2 {
		return 0, false
	}
	prev := closes[len(closes)-2].Value
	if prev == 0 {
		return 0, false
	}
	return (closes[len(closes)-1].Value - prev) / prev * 100, true
}

// PriceHistory maps symbol code to its series (raw/price_history.json)
type PriceHistory map[string]Series

// LastCloses returns the latest close per symbol
func (h PriceHistory) LastCloses() map[string]float64 {
	out := make(map[string]float64, len(h))
	for code, s := range h {
		if p, ok := s.LastClose(); ok {
			out[code] = p.Value
		}
	}
	return out
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

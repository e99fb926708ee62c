package collector

import (
	"fmt"
	"sort"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// DedupeKey tells DedupeMaxBy how to read a row
type DedupeKey[T any] struct {
	Period func(T) string
	Series func(T) string
	Value  func(T) float64
	// Desc 는 행의 원본 설명. 같은 bucket 에 서로 다른 Desc 가 2개 이상이면 mixed-series
	Desc func(T) string
	// Bucket 은 mixed-series 판정 단위 (nil 이면 Period)
	Bucket func(T) string
}

// Mixed is a bucket fed by several distinct descriptions
type Mixed struct {
	Bucket string
	Descs  []string
}

// DedupeMaxBy keeps the row with the max value per (period, series_key).
// 결과는 처음 등장한 키 순서를 유지. mixed-series bucket 은 Warn 으로 로그
func DedupeMaxBy[T any](rows []T, k DedupeKey[T], log *logger.Logger) ([]T, []Mixed) {
	bucketOf := k.Period
	if k.Bucket != nil {
		bucketOf = k.Bucket
	}

	index := make(map[string]int)
	var out []T
	descs := make(map[string]map[string]struct{})
	for _, row := range rows {
		key := k.Period(row) + "\x00" + k.Series(row)
		if i, ok := index[key]; !ok {
			index[key] = len(out)
			out = append(out, row)
		} else if k.Value(row) > k.Value(out[i]) {
			out[i] = row
		}

		if k.Desc == nil {
			continue
		}
		b := bucketOf(row)
		if descs[b] == nil {
			descs[b] = make(map[string]struct{})
		}
		if d := k.Desc(row); d != "" {
			descs[b][d] = struct{}{}
		}
	}

	buckets := make([]string, 0, len(descs))
	for b := range descs {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	var mixed []Mixed
	for _, b := range buckets {
		if len(descs[b]) < 2 {
			continue
		}
		names := make([]string, 0, len(descs[b]))
		for d := range descs[b] {
			names = append(names, d)
		}
		sort.Strings(names)
		mixed = append(mixed, Mixed{Bucket: b, Descs: names})
		log.WithFields(map[string]interface{}{
			"period": b,
			"series": names,
		}).Warn("mixed-series bucket")
	}

	return out, mixed
}

// DedupeMax keeps the max value per (year, period, series_key) and reports
// (commodity, period) buckets fed by several distinct short descriptions.
// 같은 기간에 여러 시리즈(예: 전체 재고 vs 농가 재고)가 섞이면 "mixed-series" 로 로그
func DedupeMax(commodity string, rows []contracts.StockObservation, log *logger.Logger) ([]contracts.StockObservation, []contracts.MixedSeries) {
	out, buckets := DedupeMaxBy(rows, DedupeKey[contracts.StockObservation]{
		Period: func(o contracts.StockObservation) string { return fmt.Sprintf("%d/%s", o.Year, o.Period) },
		Series: func(o contracts.StockObservation) string { return o.SeriesKey },
		Value:  func(o contracts.StockObservation) float64 { return o.Value },
		Desc:   func(o contracts.StockObservation) string { return o.ShortDesc },
	}, log.WithField("commodity", commodity))

	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].SeriesKey < out[j].SeriesKey
	})

	var mixed []contracts.MixedSeries
	for _, m := range buckets {
		mixed = append(mixed, contracts.MixedSeries{Commodity: commodity, Period: m.Bucket, ShortDescs: m.Descs})
	}
	return out, mixed
}

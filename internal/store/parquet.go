package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// ArchiveRow is one bar in the columnar price archive
type ArchiveRow struct {
	Symbol string   `parquet:"symbol"`
	Date   string   `parquet:"date"`
	Open   *float64 `parquet:"open,optional"`
	High   *float64 `parquet:"high,optional"`
	Low    *float64 `parquet:"low,optional"`
	Close  *float64 `parquet:"close,optional"`
	Volume int64    `parquet:"volume"`
}

// WritePriceArchive writes the price history as parquet (symbol, date order)
func WritePriceArchive(path string, history contracts.PriceHistory) error {
	codes := make([]string, 0, len(history))
	for code := range history {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var rows []ArchiveRow
	for _, code := range codes {
		for _, b := range history[code] {
			rows = append(rows, ArchiveRow{
				Symbol: code,
				Date:   b.Date,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write price archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename price archive: %w", err)
	}
	return nil
}

// ReadPriceArchive reads a parquet archive back into a price history
func ReadPriceArchive(path string) (contracts.PriceHistory, error) {
	rows, err := parquet.ReadFile[ArchiveRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price archive: %w", err)
	}

	history := make(contracts.PriceHistory)
	for _, r := range rows {
		history[r.Symbol] = append(history[r.Symbol], contracts.Bar{
			Date:   r.Date,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return history, nil
}

package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Paths is the filesystem layout of one data directory
// ⭐ SSOT: 모든 파일 경로는 여기서만 조합. 전역 상태 없이 명시적으로 전달
type Paths struct {
	Root string
}

// New returns the layout rooted at dir
func New(dir string) Paths {
	return Paths{Root: dir}
}

// Raw is raw/
func (p Paths) Raw() string { return filepath.Join(p.Root, "raw") }

// Processed is processed/
func (p Paths) Processed() string { return filepath.Join(p.Root, "processed") }

// Reports is reports/
func (p Paths) Reports() string { return filepath.Join(p.Root, "reports") }

// Logs is logs/
func (p Paths) Logs() string { return filepath.Join(p.Root, "logs") }

// Manifest is last_run.json
func (p Paths) Manifest() string { return filepath.Join(p.Root, "last_run.json") }

// PriceHistory is raw/price_history.json
func (p Paths) PriceHistory() string { return filepath.Join(p.Raw(), "price_history.json") }

// PriceArchive is raw/price_history.parquet
func (p Paths) PriceArchive() string { return filepath.Join(p.Raw(), "price_history.parquet") }

// ProcessedFile is processed/{name}.json
func (p Paths) ProcessedFile(name string) string {
	return filepath.Join(p.Processed(), name+".json")
}

// AdapterDir is {adapter}/
func (p Paths) AdapterDir(adapter string) string {
	return filepath.Join(p.Root, adapter)
}

// Latest is {adapter}/{adapter}_latest.json
func (p Paths) Latest(adapter string) string {
	return filepath.Join(p.AdapterDir(adapter), adapter+"_latest.json")
}

// Snapshot is {adapter}/{adapter}_YYYYMMDD_HHMMSS.json
func (p Paths) Snapshot(adapter string, at time.Time) string {
	return filepath.Join(p.AdapterDir(adapter), fmt.Sprintf("%s_%s.json", adapter, at.UTC().Format("20060102_150405")))
}

// CacheDir is {adapter}/cache/
func (p Paths) CacheDir(adapter string) string {
	return filepath.Join(p.AdapterDir(adapter), "cache")
}

// Cache is {adapter}/cache/{adapter}_latest.json
func (p Paths) Cache(adapter string) string {
	return filepath.Join(p.CacheDir(adapter), adapter+"_latest.json")
}

// LogFile is logs/YYYY-MM-DD_{suffix}
func (p Paths) LogFile(date, suffix string) string {
	return filepath.Join(p.Logs(), date+"_"+suffix)
}

// ReportFile is reports/agrimacro_YYYY-MM-DD.{ext}
func (p Paths) ReportFile(date, ext string) string {
	return filepath.Join(p.Reports(), fmt.Sprintf("agrimacro_%s.%s", date, ext))
}

// Metrics is logs/metrics.prom
func (p Paths) Metrics() string { return filepath.Join(p.Logs(), "metrics.prom") }

// Ensure creates the fixed directories
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Root, p.Raw(), p.Processed(), p.Reports(), p.Logs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

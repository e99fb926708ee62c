package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agrimacro/agrimacro/internal/paths"
)

const snapshotStampLayout = "20060102_150405"

// PruneSnapshots removes {adapter}/{adapter}_YYYYMMDD_HHMMSS.json files
// collected before the cutoff. latest 포인터와 cache/ 는 건드리지 않음
func PruneSnapshots(p paths.Paths, adapter string, before time.Time) (int, error) {
	dir := p.AdapterDir(adapter)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	prefix := adapter + "_"
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		at, err := time.Parse(snapshotStampLayout, stamp)
		if err != nil {
			continue // {adapter}_latest.json 등
		}
		if !at.Before(before) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

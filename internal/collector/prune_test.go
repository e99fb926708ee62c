package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
)

func TestPruneSnapshots(t *testing.T) {
	p := paths.New(t.TempDir())
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := p.Snapshot("bcb", cutoff.Add(-48*time.Hour))
	fresh := p.Snapshot("bcb", cutoff.Add(time.Hour))
	for _, path := range []string{old, fresh, p.Latest("bcb"), p.Cache("bcb")} {
		require.NoError(t, store.WriteJSON(path, map[string]string{"status": "ok"}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(p.AdapterDir("bcb"), "notes.txt"), []byte("x"), 0o644))

	removed, err := PruneSnapshots(p, "bcb", cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.False(t, store.Exists(old))
	assert.True(t, store.Exists(fresh))
	assert.True(t, store.Exists(p.Latest("bcb")))
	assert.True(t, store.Exists(p.Cache("bcb")))
}

func TestPruneSnapshots_MissingDir(t *testing.T) {
	removed, err := PruneSnapshots(paths.New(t.TempDir()), "imea", time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNewHistoryWindow(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	w := NewHistoryWindow(asOf, 5)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, asOf, w.To)
	assert.Equal(t, "2021-01-01", w.Period().From)
}

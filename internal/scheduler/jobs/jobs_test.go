package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/pipeline"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

func TestDailyRunJob(t *testing.T) {
	var got pipeline.RunOptions
	run := func(_ context.Context, opts pipeline.RunOptions) (*pipeline.Result, error) {
		got = opts
		m := contracts.NewRunManifest("20260302T093000Z", "2026-03-02")
		m.Verdict = &contracts.VerdictSummary{Status: contracts.VerdictBlock, Confidence: 75}
		return &pipeline.Result{Manifest: m, ExitCode: 1}, nil
	}

	job := NewDailyRunJob(run, "0 30 6 * * *", logger.Nop())
	assert.Equal(t, "daily_run", job.Name())
	assert.Equal(t, "0 30 6 * * *", job.Schedule())

	// BLOCK 은 job 실패가 아님
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, pipeline.RunOptions{}, got)
}

func TestDailyRunJob_FatalError(t *testing.T) {
	run := func(context.Context, pipeline.RunOptions) (*pipeline.Result, error) {
		return &pipeline.Result{ExitCode: 1}, errors.New("failed to write run manifest")
	}

	err := NewDailyRunJob(run, "0 30 6 * * *", logger.Nop()).Run(context.Background())
	assert.ErrorContains(t, err, "failed to write run manifest")
}

func TestSnapshotPruneJob(t *testing.T) {
	p := paths.New(t.TempDir())
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	old := p.Snapshot("prices", now.AddDate(0, 0, -120))
	recent := p.Snapshot("prices", now.AddDate(0, 0, -3))
	for _, path := range []string{old, recent, p.Latest("prices"), p.Cache("prices")} {
		require.NoError(t, store.WriteJSON(path, map[string]string{"source": "prices"}))
	}

	job := NewSnapshotPruneJob(p, []string{"prices", "cot"}, 90, logger.Nop()).
		WithClock(func() time.Time { return now })
	require.NoError(t, job.Run(context.Background()))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	assert.True(t, store.Exists(recent))
	assert.True(t, store.Exists(p.Latest("prices")))
	assert.True(t, store.Exists(p.Cache("prices")))
}

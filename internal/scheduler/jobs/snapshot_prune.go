package jobs

import (
	"context"
	"time"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// SnapshotPruneJob removes timestamped adapter snapshots past retention
type SnapshotPruneJob struct {
	paths     paths.Paths
	adapters  []string
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewSnapshotPruneJob creates the prune job
func NewSnapshotPruneJob(p paths.Paths, adapters []string, retentionDays int, log *logger.Logger) *SnapshotPruneJob {
	return &SnapshotPruneJob{
		paths:     p,
		adapters:  adapters,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		logger:    log.WithField("job", "snapshot_prune"),
	}
}

// WithClock overrides the wall clock (tests)
func (j *SnapshotPruneJob) WithClock(now func() time.Time) *SnapshotPruneJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *SnapshotPruneJob) Name() string {
	return "snapshot_prune"
}

// Schedule returns the cron schedule (every Sunday at 03:00)
func (j *SnapshotPruneJob) Schedule() string {
	return "0 0 3 * * 0"
}

// Run prunes every adapter directory
func (j *SnapshotPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	total := 0
	for _, name := range j.adapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := collector.PruneSnapshots(j.paths, name, cutoff)
		if err != nil {
			j.logger.WithError(err).WithField("adapter", name).Warn("snapshot prune failed")
			continue
		}
		total += n
	}

	if total > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": total,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Snapshot prune completed")
	}
	return nil
}

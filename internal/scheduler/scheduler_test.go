package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agrimacro/agrimacro/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type funcJob struct {
	name     string
	schedule string
	calls    int32
	fn       func(ctx context.Context) error
}

func (j *funcJob) Name() string     { return j.name }
func (j *funcJob) Schedule() string { return j.schedule }

func (j *funcJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.calls, 1)
	return j.fn(ctx)
}

func newJob(name string, fn func(ctx context.Context) error) *funcJob {
	return &funcJob{name: name, schedule: "0 30 6 * * *", fn: fn}
}

func historyLen(s *Scheduler, name string) int {
	h, err := s.GetJobHistory(name)
	if err != nil {
		return -1
	}
	return len(h.Results)
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())
	defer s.Stop()

	require.NoError(t, s.AddJob(newJob("daily_run", func(context.Context) error { return nil })))

	err := s.AddJob(newJob("daily_run", func(context.Context) error { return nil }))
	assert.ErrorContains(t, err, "already exists")

	bad := newJob("bad", func(context.Context) error { return nil })
	bad.schedule = "not a cron"
	assert.Error(t, s.AddJob(bad))

	assert.Equal(t, []string{"daily_run"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("daily_run"))
	assert.Error(t, s.RemoveJob("daily_run"))
	assert.Empty(t, s.GetAllJobs())
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.Nop())
	defer s.Stop()

	job := newJob("daily_run", func(context.Context) error { return nil })
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("daily_run"))

	require.Eventually(t, func() bool { return historyLen(s, "daily_run") == 1 }, 2*time.Second, 10*time.Millisecond)

	stats := s.GetJobStats()["daily_run"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	assert.Error(t, s.RunJob("unknown"))
}

func TestTrigger_NeverOverlaps(t *testing.T) {
	s := New(logger.Nop())
	defer s.Stop()

	release := make(chan struct{})
	job := newJob("daily_run", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, s.AddJob(job))

	go s.trigger(job)
	require.Eventually(t, func() bool { return s.IsRunning("daily_run") }, 2*time.Second, 5*time.Millisecond)

	// 실행 중에 다시 트리거되면 건너뜀
	s.trigger(job)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))

	close(release)
	require.Eventually(t, func() bool { return !s.IsRunning("daily_run") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, historyLen(s, "daily_run"))
}

func TestRunJob_Retries(t *testing.T) {
	s := New(logger.Nop()).WithRetry(2, time.Millisecond)
	defer s.Stop()

	job := newJob("daily_run", func(context.Context) error { return errors.New("manifest write failed") })
	require.NoError(t, s.AddJob(job))

	s.trigger(job)

	assert.Equal(t, int32(3), atomic.LoadInt32(&job.calls))
	h, err := s.GetJobHistory("daily_run")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.False(t, h.Results[0].Success)
	assert.Equal(t, "manifest write failed", h.Results[0].Error)
}

func TestRunJob_RecoversPanic(t *testing.T) {
	s := New(logger.Nop()).WithRetry(0, 0)
	defer s.Stop()

	job := newJob("daily_run", func(context.Context) error { panic("boom") })
	require.NoError(t, s.AddJob(job))

	s.trigger(job)

	h, err := s.GetJobHistory("daily_run")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.Contains(t, h.Results[0].Error, "panicked")
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := New(logger.Nop()).WithRetry(0, 0)

	job := newJob("daily_run", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("daily_run"))
	require.Eventually(t, func() bool { return s.IsRunning("daily_run") }, 2*time.Second, 5*time.Millisecond)

	s.Stop()

	h, err := s.GetJobHistory("daily_run")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.Equal(t, context.Canceled.Error(), h.Results[0].Error)

	// 종료 후 트리거는 무시
	s.trigger(job)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}

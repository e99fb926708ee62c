package jobs

import (
	"context"
	"fmt"

	"github.com/agrimacro/agrimacro/internal/pipeline"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// RunFunc executes one pipeline run (pipeline.Executor.Run)
type RunFunc func(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Result, error)

// DailyRunJob runs the full pipeline once a day
// ⭐ SSOT: 일일 실행 스케줄은 이 Job 에서만
type DailyRunJob struct {
	run      RunFunc
	schedule string
	logger   *logger.Logger
}

// NewDailyRunJob creates the daily job. schedule is a cron expression with seconds.
func NewDailyRunJob(run RunFunc, schedule string, log *logger.Logger) *DailyRunJob {
	return &DailyRunJob{
		run:      run,
		schedule: schedule,
		logger:   log.WithField("job", "daily_run"),
	}
}

// Name returns the job name
func (j *DailyRunJob) Name() string {
	return "daily_run"
}

// Schedule returns the cron schedule (AGRIMACRO_SCHEDULE, default 06:30 daily)
func (j *DailyRunJob) Schedule() string {
	return j.schedule
}

// Run executes the pipeline. BLOCK 은 job 실패가 아님 (게이트가 정상 동작한 결과)
func (j *DailyRunJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled pipeline run")

	res, err := j.run(ctx, pipeline.RunOptions{})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fields := map[string]interface{}{
		"run_id":    res.Manifest.RunID,
		"ok":        res.Manifest.OK,
		"warnings":  res.Manifest.Warnings,
		"errors":    res.Manifest.Errors,
		"exit_code": res.ExitCode,
	}
	if v := res.Manifest.Verdict; v != nil {
		fields["verdict"] = v.Status
		fields["confidence"] = v.Confidence
	}
	j.logger.WithFields(fields).Info("Scheduled pipeline run completed")
	return nil
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agrimacro/agrimacro/internal/api"
	"github.com/agrimacro/agrimacro/internal/api/handlers"
	"github.com/agrimacro/agrimacro/internal/scheduler"
	"github.com/agrimacro/agrimacro/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "대시보드 API 서버 시작",
	Long: `읽기 전용 대시보드 API 서버를 시작합니다.

Endpoints:
  GET  /health                  - Health check
  GET  /metrics                 - Prometheus (METRICS_ENABLED)
  GET  /ws/runs                 - 실행 진행 상황 websocket
  GET  /api/manifest            - last_run.json
  GET  /api/qa                  - 감사 리포트
  GET  /api/bundle              - report_bundle.json
  GET  /api/processed/{name}    - processed/{name}.json
  GET  /api/runs?limit=30       - 실행 이력 (DATABASE_URL)
  GET  /api/jobs                - 스케줄러 통계

--schedule 를 주면 같은 프로세스에서 스케줄러도 실행합니다.

Example:
  go run ./cmd/agrimacro serve
  go run ./cmd/agrimacro serve --port 8089 --schedule`,
	RunE: runServe,
}

var (
	servePort     string
	serveSchedule bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default PORT)")
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "스케줄러 함께 실행")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== AgriMacro API Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	hub := api.NewHub(a.log)
	a.executor.WithObserver(hub)

	routes := api.Routes{
		Runs: handlers.NewRunHandler(a.paths, a.archive, a.log),
		Jobs: handlers.NewJobHandler(nil),
		Hub:  hub,
	}
	if a.metrics != nil {
		routes.Metrics = a.metrics.Handler()
	}

	if serveSchedule {
		sched, err := newScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		routes.Jobs = handlers.NewJobHandler(sched)
		sched.Start()
		defer sched.Stop()
		PrintSuccess(fmt.Sprintf("Scheduler started (%d jobs)", len(sched.GetAllJobs())))
	}

	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log), hub)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}
	a.log.Info("Server stopped")
	return nil
}

// newScheduler registers the daily run and snapshot retention jobs
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewDailyRunJob(a.executor.Run, a.cfg.Schedule, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewSnapshotPruneJob(a.paths, a.reg.Adapters(), a.cfg.RetentionDays, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

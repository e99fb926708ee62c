package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "스케줄러 시작 (API 없이)",
	Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_run: AGRIMACRO_SCHEDULE (기본 매일 06:30:00)
- snapshot_prune: 매주 일요일 03:00 (AGRIMACRO_RETENTION_DAYS 보다 오래된 스냅샷 삭제)

같은 작업은 겹쳐 실행되지 않으며, 실패 시 5분 후 1회 재시도합니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/agrimacro schedule
  go run ./cmd/agrimacro schedule --run-now`,
	RunE: runSchedule,
}

var scheduleRunNow bool

func init() {
	rootCmd.AddCommand(scheduleCmd)

	// Flags
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "시작 직후 daily_run 1회 실행")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	fmt.Println("=== AgriMacro Scheduler ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	PrintList(sched.GetAllJobs())

	if scheduleRunNow {
		if err := sched.RunJob("daily_run"); err != nil {
			sched.Stop()
			return err
		}
		fmt.Println("\ndaily_run started (running in background)")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agrimacro/agrimacro/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "파이프라인 1회 실행",
	Long: `일일 파이프라인을 1회 실행합니다.

순서:
  adapters → seasonality → spreads → stocks_watch → arbitrage → bilateral
  → daily_reading → report_daily → report_bundle → audit_gate → pdf, video_script

Exit code:
  0  PASS / WARN / FLAG (또는 --force)
  1  BLOCK, 또는 실행 자체 실패

Example:
  go run ./cmd/agrimacro run
  go run ./cmd/agrimacro run --skip-collect
  go run ./cmd/agrimacro run --qa-only
  go run ./cmd/agrimacro run --force`,
	RunE: runPipeline,
}

var (
	runForce       bool
	runSkipCollect bool
	runQAOnly      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Flags
	runCmd.Flags().BoolVar(&runForce, "force", false, "BLOCK 이어도 렌더러 실행 (manifest 에 기록)")
	runCmd.Flags().BoolVar(&runSkipCollect, "skip-collect", false, "수집 대신 디스크의 latest 스냅샷 사용")
	runCmd.Flags().BoolVar(&runQAOnly, "qa-only", false, "감사 게이트만 실행")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.executor.Run(ctx, pipeline.RunOptions{
		Force:       runForce,
		SkipCollect: runSkipCollect,
		QAOnly:      runQAOnly,
	})
	if res != nil && res.Manifest != nil {
		printRunSummary(res)
	}
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			PrintWarning("Run cancelled; remaining steps recorded as ERROR")
		}
		return err
	}

	if res.ExitCode != 0 {
		return &exitError{code: res.ExitCode, msg: "audit verdict BLOCK: publication stopped"}
	}
	return nil
}

func printRunSummary(res *pipeline.Result) {
	m := res.Manifest

	PrintDoubleSeparator()
	fmt.Printf("  AgriMacro run %s (%s)\n", m.RunID, m.Date)
	PrintSeparator()
	PrintKeyValue("Steps", fmt.Sprintf("%d (ok %d, warn %d, error %d)", m.TotalSteps, m.OK, m.Warnings, m.Errors), 10)
	PrintKeyValue("Elapsed", fmt.Sprintf("%.1fs", m.ElapsedSeconds), 10)
	if m.Verdict != nil {
		PrintKeyValue("Verdict", fmt.Sprintf("%s (confidence %d)", m.Verdict.Status, m.Verdict.Confidence), 10)
	}
	if res.PDFPath != "" {
		PrintKeyValue("PDF", res.PDFPath, 10)
	}
	if m.Forced {
		PrintKeyValue("Forced", m.ForceNote, 10)
	}
	PrintDoubleSeparator()

	if res.QA != nil {
		for _, f := range res.QA.Errors() {
			fmt.Printf("   [%s] %s: %s\n", f.Severity, f.Code, f.Message)
		}
	}
}

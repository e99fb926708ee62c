package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrimacro/agrimacro/internal/audit"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/database"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "마지막 실행 상태 조회",
	Long: `last_run.json 과 감사 리포트를 읽어 마지막 실행을 요약합니다.

--history 를 주면 실행 이력 DB (DATABASE_URL) 에서 최근 N건을 조회합니다.

Example:
  go run ./cmd/agrimacro status
  go run ./cmd/agrimacro status --history 10`,
	RunE: runStatus,
}

var statusHistory int

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().IntVar(&statusHistory, "history", 0, "실행 이력 N건 조회 (DATABASE_URL 필요)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := paths.New(cfg.DataDir)

	var m contracts.RunManifest
	if err := store.ReadJSON(p.Manifest(), &m); err != nil {
		PrintWarning(fmt.Sprintf("No run recorded in %s", cfg.DataDir))
	} else {
		printManifest(&m)
	}

	var qa audit.Report
	if err := store.ReadJSON(p.ProcessedFile(audit.ProcessedQAFile), &qa); err == nil {
		fmt.Println()
		fmt.Println(qa.SummaryText())
	}

	if statusHistory <= 0 {
		return nil
	}
	if !cfg.Database.Enabled() {
		return fmt.Errorf("--history requires DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runs, err := audit.NewRepository(db.Pool).ListRuns(ctx, statusHistory)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	fmt.Println()
	widths := []int{18, 10, 8, 10, 10}
	PrintTableHeader([]string{"RUN", "DATE", "STATUS", "CONFIDENCE", "PUBLISH"}, widths)
	for _, r := range runs {
		PrintTableRow([]string{r.RunID, r.Date, r.Status, fmt.Sprintf("%d", r.Confidence), fmt.Sprintf("%t", r.CanPublish)}, widths)
	}
	return nil
}

func printManifest(m *contracts.RunManifest) {
	PrintDoubleSeparator()
	fmt.Printf("  Last run %s (%s)\n", m.RunID, m.Date)
	PrintSeparator()
	PrintKeyValue("Finished", m.Timestamp, 10)
	PrintKeyValue("Steps", fmt.Sprintf("%d (ok %d, warn %d, error %d)", m.TotalSteps, m.OK, m.Warnings, m.Errors), 10)
	if m.Verdict != nil {
		PrintKeyValue("Verdict", fmt.Sprintf("%s (confidence %d, publish %t)", m.Verdict.Status, m.Verdict.Confidence, m.Verdict.CanPublish), 10)
	}
	PrintDoubleSeparator()

	widths := []int{24, 10, 6, 40}
	PrintTableHeader([]string{"STEP", "KIND", "STATUS", "NOTE"}, widths)
	for _, name := range m.Order {
		r := m.Results[name]
		note := r.Error
		if note == "" {
			note = r.CacheNote
		}
		PrintTableRow([]string{name, string(r.Kind), string(r.Status), note}, widths)
	}
}

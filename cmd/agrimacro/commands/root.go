package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrimacro/agrimacro/pkg/config"
)

var (
	// Global flags
	dataDir      string
	registryPath string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agrimacro",
	Short: "AgriMacro - 농산물 일일 리포트 파이프라인",
	Long: `AgriMacro Unified CLI

15개 데이터 소스 수집 → 지표 계산 → 번들 → 감사 게이트 → PDF/비디오 스크립트.
감사 verdict 가 BLOCK 이면 렌더러를 건너뛰고 exit code 1.

Usage:
  go run ./cmd/agrimacro [command]

Examples:
  go run ./cmd/agrimacro run
  go run ./cmd/agrimacro run --skip-collect
  go run ./cmd/agrimacro serve --schedule
  go run ./cmd/agrimacro registry validate`,
	SilenceUsage: true,
}

// exitError carries a process exit code without a usage dump
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// ExitCode maps an Execute error to the process exit code
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default AGRIMACRO_DATA_DIR or ./data)")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "registry YAML (default AGRIMACRO_REGISTRY)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the environment and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if registryPath != "" {
		cfg.RegistryPath = registryPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrimacro/agrimacro/internal/registry"
)

// registryCmd represents the registry command
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "registry.yml 검증 및 조회",
	Long: `심볼, 스프레드, 언어 규칙, 어댑터 등급을 정의하는 registry 를 다룹니다.

Subcommands:
  validate  - 스키마 검증 + 권고 경고 + 해시
  show      - 요약 출력 (--json 이면 전체 JSON)

Example:
  go run ./cmd/agrimacro registry validate
  go run ./cmd/agrimacro registry show --json`,
}

var (
	registryValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "registry 스키마 검증",
		RunE:  validateRegistry,
	}

	registryShowCmd = &cobra.Command{
		Use:   "show",
		Short: "registry 요약 출력",
		RunE:  showRegistry,
	}

	registryJSON bool
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryValidateCmd)
	registryCmd.AddCommand(registryShowCmd)

	registryShowCmd.Flags().BoolVar(&registryJSON, "json", false, "전체 registry 를 JSON 으로 출력")
}

func loadRegistry() (*registry.Registry, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	reg, _, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return nil, cfg.RegistryPath, err
	}
	return reg, cfg.RegistryPath, nil
}

func validateRegistry(cmd *cobra.Command, args []string) error {
	reg, path, err := loadRegistry()
	if err != nil {
		PrintError(fmt.Sprintf("%s: %v", path, err))
		return &exitError{code: 1, msg: "registry validation failed"}
	}

	hash, err := registry.Hash(reg)
	if err != nil {
		return fmt.Errorf("hash registry: %w", err)
	}

	PrintSuccess(fmt.Sprintf("%s is valid", path))
	PrintKeyValue("Version", reg.Version, 8)
	PrintKeyValue("Hash", hash, 8)

	warnings := registry.Warn(reg)
	if len(warnings) > 0 {
		PrintWarning(fmt.Sprintf("%d recommendation(s)", len(warnings)))
		for _, w := range warnings {
			fmt.Printf("   [%s] %s\n", w.Code, w.Message)
		}
	}
	return nil
}

func showRegistry(cmd *cobra.Command, args []string) error {
	reg, _, err := loadRegistry()
	if err != nil {
		return err
	}

	if registryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reg)
	}

	PrintDoubleSeparator()
	fmt.Printf("  Registry %s\n", reg.Version)
	PrintDoubleSeparator()

	categories := []string{
		registry.CategoryGrains, registry.CategorySofts, registry.CategoryLivestock,
		registry.CategoryEnergy, registry.CategoryMetals, registry.CategoryMacro,
		registry.CategoryFX, registry.CategoryPhysicalBR, registry.CategoryPhysicalIntl,
		registry.CategoryEIA,
	}
	widths := []int{16, 6, 40}
	PrintTableHeader([]string{"CATEGORY", "COUNT", "SYMBOLS"}, widths)
	for _, c := range categories {
		codes := reg.SymbolsIn(c)
		if len(codes) == 0 {
			continue
		}
		PrintTableRow([]string{c, fmt.Sprintf("%d", len(codes)), strings.Join(codes, ", ")}, widths)
	}

	fmt.Println()
	PrintKeyValue("Spreads", strings.Join(reg.SpreadNames(), ", "), 10)
	PrintKeyValue("Critical", strings.Join(reg.FailsafeLevels.Critical, ", "), 10)
	PrintKeyValue("Important", strings.Join(reg.FailsafeLevels.Important, ", "), 10)
	PrintKeyValue("Optional", strings.Join(reg.FailsafeLevels.Optional, ", "), 10)
	PrintKeyValue("Rules", fmt.Sprintf("%d language_audit rule(s)", len(reg.LanguageAudit)), 10)
	return nil
}

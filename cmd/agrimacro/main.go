package main

import (
	"os"

	"github.com/agrimacro/agrimacro/cmd/agrimacro/commands"
)

// main is the entry point for the AgriMacro CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/agrimacro [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}

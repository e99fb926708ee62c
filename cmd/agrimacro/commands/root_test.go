package commands

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, ExitCode(errors.New("load config: boom")))
	assert.Equal(t, 1, ExitCode(&exitError{code: 1, msg: "audit verdict BLOCK"}))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("wrapped: %w", &exitError{code: 3, msg: "x"})))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("AGRIMACRO_DATA_DIR", "/srv/agrimacro")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ENV", "test")

	dataDir, registryPath, verbose = t.TempDir(), "testdata/registry.yml", true
	t.Cleanup(func() { dataDir, registryPath, verbose = "", "", false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "testdata/registry.yml", cfg.RegistryPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "serve", "schedule", "registry", "status"} {
		assert.Contains(t, names, want)
	}
}

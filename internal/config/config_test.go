package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 1000.0, cfg.Engine.RuralToTownThreshold, 0.001)
	assert.InDelta(t, 10000.0, cfg.Engine.TownToCityThreshold, 0.001)
	assert.Equal(t, 100, cfg.Engine.PeoplePerDot)
	assert.InDelta(t, 0.5, cfg.Engine.MinDotPopulation, 1e-9)
	assert.InDelta(t, 0.001, cfg.Engine.MinDotSpacingDegrees, 1e-9)
	assert.True(t, cfg.Engine.EnableContinuity)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.InDelta(t, 2.0, cfg.LOD.RegionalGridSize, 0.001)
	assert.InDelta(t, 0.5, cfg.LOD.SubregionalGridSize, 0.001)
	assert.InDelta(t, 0.1, cfg.LOD.LocalGridSize, 0.001)
	assert.Equal(t, "data/hyde", cfg.Data.Dir)
	assert.Equal(t, "eras.yaml", cfg.Data.EraManifest)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "footsteps.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "out", cfg.Export.Dir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
engine:
  people_per_dot: 250
  enable_continuity: false
store:
  driver: postgres
  database_url: postgres://localhost/footsteps
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Engine.PeoplePerDot)
	assert.False(t, cfg.Engine.EnableContinuity)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/footsteps", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 1000.0, cfg.Engine.RuralToTownThreshold, 0.001)
	assert.InDelta(t, 2.0, cfg.LOD.RegionalGridSize, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FOOTSTEPS_STORE_DRIVER", "postgres")
	t.Setenv("FOOTSTEPS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FOOTSTEPS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
engine:
  rural_to_town_threshold: 10000
  town_to_city_threshold: 1000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tier thresholds")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Engine.RuralToTownThreshold = 1000
	cfg.Engine.TownToCityThreshold = 10000
	cfg.Engine.PeoplePerDot = 100
	cfg.Engine.Workers = 4
	cfg.LOD.RegionalGridSize = 2.0
	cfg.LOD.SubregionalGridSize = 0.5
	cfg.LOD.LocalGridSize = 0.1
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidatePeoplePerDot(t *testing.T) {
	cfg := validDefaults()
	cfg.Engine.PeoplePerDot = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "people_per_dot")
}

func TestValidateMinDotPopulation(t *testing.T) {
	cfg := validDefaults()
	cfg.Engine.MinDotPopulation = -1

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_dot_population")
}

func TestValidateGridSizesMustDecrease(t *testing.T) {
	cfg := validDefaults()
	cfg.LOD.SubregionalGridSize = 3.0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "grid sizes must decrease")

	cfg = validDefaults()
	cfg.LOD.LocalGridSize = 0

	err = cfg.Validate()
	assert.Error(t, err)
}

func TestValidateWorkerBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Engine.Workers = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be between 1 and 64")

	cfg.Engine.Workers = 65
	err = cfg.Validate()
	assert.Error(t, err)

	cfg.Engine.Workers = 64
	assert.NoError(t, cfg.Validate())
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestValidateServerPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "geosample.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 100, cfg.Sampling.Iterations)
	assert.Equal(t, 0, cfg.Sampling.Workers)
	assert.Equal(t, int64(1), cfg.Sampling.Seed)
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
store:
  driver: postgres
  database_url: postgres://localhost/geosample
sampling:
  iterations: 500
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/geosample", cfg.Store.DatabaseURL)
	assert.Equal(t, 500, cfg.Sampling.Iterations)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, int64(1), cfg.Sampling.Seed)
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

	t.Setenv("GEOSAMPLE_STORE_DRIVER", "postgres")
	t.Setenv("GEOSAMPLE_LOG_LEVEL", "warn")

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

	t.Setenv("GEOSAMPLE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func validDefaults() *Config {
	return &Config{
		Store:    StoreConfig{Driver: "sqlite", DatabaseURL: "geosample.db"},
		Sampling: SamplingConfig{Iterations: 100},
		Server:   ServerConfig{Port: 8080},
	}
}

func TestValidateSample(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("sample"))

	cfg.Sampling.Iterations = 0
	err := cfg.Validate("sample")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sampling.iterations must be >= 1")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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

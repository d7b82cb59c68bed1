package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.tiingo.com", cfg.Provider.BaseURL)
	assert.Equal(t, "1min", cfg.Provider.ResampleFreq)
	assert.Equal(t, "America/New_York", cfg.Ingest.Timezone)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 14, cfg.Simulation.Window)
	assert.Equal(t, 2.0, cfg.Simulation.NumStdDev)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: https://example.test
  api_keys: [a, b]
  throttle_backoff: 5s
ingest:
  data_dir: /tmp/bt
  symbols: [AAPL, MSFT]
simulation:
  window: 20
  threshold_pct: 0.5
  initial_cash: 2500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.Provider.BaseURL)
	assert.Equal(t, []string{"a", "b"}, cfg.Provider.APIKeys)
	assert.Equal(t, 5*time.Second, cfg.Provider.ThrottleBackoff)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Ingest.Symbols)
	assert.Equal(t, 20, cfg.Simulation.Window)
	assert.Equal(t, 0.5, cfg.Simulation.ThresholdPct)
	assert.Equal(t, 2500.0, cfg.Simulation.InitialCash)
	assert.Equal(t, "/tmp/bt/tradeData/trades.db", cfg.Simulation.LedgerPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
provider:
  api_keys: [from-file]
database:
  driver: sqlite
`)
	t.Setenv("TIINGO_API_KEYS", "k1, k2 ,,k3")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://u:p@localhost/db")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Provider.APIKeys)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "provider: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: true},
		{name: "window too small", mutate: func(c *Config) { c.Simulation.Window = 1 }, wantErr: true},
		{name: "negative cash", mutate: func(c *Config) { c.Simulation.InitialCash = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)

			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfig_ValidateProvider(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateProvider())

	cfg.Provider.APIKeys = []string{"k"}
	assert.NoError(t, cfg.ValidateProvider())
}

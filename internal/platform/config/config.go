// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable that points at the YAML config file.
const EnvConfigPath = "BANDTRADER_CONFIG"

// DefaultPath is used when EnvConfigPath is unset.
const DefaultPath = "config.yaml"

// Config holds all application configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// ProviderConfig configures the remote price API.
type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKeys           []string      `yaml:"api_keys"`
	ResampleFreq      string        `yaml:"resample_freq"`
	Timeout           time.Duration `yaml:"timeout"`
	ThrottleBackoff   time.Duration `yaml:"throttle_backoff"`    // wait after every key in the pool was throttled
	MaxThrottleCycles int           `yaml:"max_throttle_cycles"` // 0 retries until the context ends
}

// IngestConfig configures backfill runs.
type IngestConfig struct {
	DataDir           string   `yaml:"data_dir"`
	Timezone          string   `yaml:"timezone"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	Symbols           []string `yaml:"symbols"`
	Interval          string   `yaml:"interval"`
	RefreshCron       string   `yaml:"refresh_cron"`
}

// DatabaseConfig selects the storage backend. With driver "sqlite" each series
// lives in its own file under Ingest.DataDir; with "postgres" DSN is shared.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the optional read cache.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// SimulationConfig holds strategy defaults.
type SimulationConfig struct {
	Window          int     `yaml:"window"`
	NumStdDev       float64 `yaml:"num_std_dev"`
	ThresholdPct    float64 `yaml:"threshold_pct"`
	InitialCash     float64 `yaml:"initial_cash"`
	MinProfitMargin float64 `yaml:"min_profit_margin"`
	LossTolerance   float64 `yaml:"loss_tolerance"`
	LedgerPath      string  `yaml:"ledger_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDefault loads the file named by BANDTRADER_CONFIG, or config.yaml.
func LoadDefault() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TIINGO_API_KEYS"); v != "" {
		c.Provider.APIKeys = splitList(v)
	}
	if v := os.Getenv("TIINGO_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Ingest.DataDir = v
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		c.Ingest.RefreshCron = v
	}
	if v := os.Getenv("REFRESH_SYMBOLS"); v != "" {
		c.Ingest.Symbols = splitList(v)
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingest.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) applyDefaults() {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.tiingo.com"
	}
	if c.Provider.ResampleFreq == "" {
		c.Provider.ResampleFreq = "1min"
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if c.Provider.ThrottleBackoff <= 0 {
		c.Provider.ThrottleBackoff = time.Minute
	}
	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = "data"
	}
	if c.Ingest.Timezone == "" {
		c.Ingest.Timezone = "America/New_York"
	}
	if c.Ingest.RequestsPerMinute == 0 {
		c.Ingest.RequestsPerMinute = 50
	}
	if c.Ingest.Interval == "" {
		c.Ingest.Interval = c.Provider.ResampleFreq
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 10 * time.Minute
	}
	if c.Simulation.Window == 0 {
		c.Simulation.Window = 14
	}
	if c.Simulation.NumStdDev == 0 {
		c.Simulation.NumStdDev = 2
	}
	if c.Simulation.InitialCash == 0 {
		c.Simulation.InitialCash = 10000
	}
	if c.Simulation.LedgerPath == "" {
		c.Simulation.LedgerPath = c.Ingest.DataDir + "/tradeData/trades.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.TokenTTL <= 0 {
		c.Server.TokenTTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Simulation.Window < 2 {
		return fmt.Errorf("simulation.window must be at least 2")
	}
	if c.Simulation.InitialCash < 0 {
		return fmt.Errorf("simulation.initial_cash must not be negative")
	}
	return nil
}

// ValidateProvider checks the settings needed to call the price API.
func (c *Config) ValidateProvider() error {
	if len(c.Provider.APIKeys) == 0 {
		return fmt.Errorf("provider.api_keys (or TIINGO_API_KEYS) is required")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

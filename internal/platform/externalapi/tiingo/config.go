// Package tiingo is the client for the Tiingo IEX intraday price API.
package tiingo

import (
	"time"

	"bandtrader/internal/platform/config"
)

// Config holds the Tiingo client settings. API keys live in a credentials.Pool.
type Config struct {
	BaseURL           string        // API base URL, e.g. "https://api.tiingo.com"
	ResampleFreq      string        // sampling interval such as "1min" or "5min"
	Timeout           time.Duration // per-request HTTP timeout
	ThrottleBackoff   time.Duration // wait after every key was throttled in turn
	MaxThrottleCycles int           // full throttled cycles tolerated; 0 means unlimited
}

// NewConfig maps the provider section of the application config.
func NewConfig(p config.ProviderConfig) Config {
	return Config{
		BaseURL:           p.BaseURL,
		ResampleFreq:      p.ResampleFreq,
		Timeout:           p.Timeout,
		ThrottleBackoff:   p.ThrottleBackoff,
		MaxThrottleCycles: p.MaxThrottleCycles,
	}
}

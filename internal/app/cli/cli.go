// Package cli holds the start-up and output helpers shared by the commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"bandtrader/internal/platform/config"
	"bandtrader/internal/platform/logger"
)

// ErrUsage is returned when a command was given the wrong arguments.
var ErrUsage = errors.New("usage")

// Bootstrap loads .env, reads the config and installs the slog logger.
func Bootstrap() (*config.Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// CheckArgs returns ErrUsage unless exactly want arguments follow the program name.
func CheckArgs(args []string, want int) error {
	if len(args)-1 != want {
		return ErrUsage
	}
	return nil
}

// Exit prints err and terminates the process with status 1. A usage error
// prints the usage line instead.
func Exit(w io.Writer, usage string, err error) {
	if errors.Is(err, ErrUsage) {
		fmt.Fprintln(w, "Usage:", usage)
	} else {
		fmt.Fprintln(w, "error:", err)
	}
	os.Exit(1)
}

// ParseSymbols splits a comma separated symbol list and upper-cases each entry.
func ParseSymbols(s string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols in %q", s)
	}
	return out, nil
}

// ParseNumber parses a non-negative decimal argument.
func ParseNumber(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %q", name, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be finite: %q", name, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return v, nil
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration needed by the given mode ("extract",
// "watch", or "serve") and reports every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "memory":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, or memory")
	}

	if c.Parse.MinAmount < 0 || (c.Parse.MaxAmount != 0 && c.Parse.MaxAmount <= c.Parse.MinAmount) {
		problems = append(problems, "parse amount bounds must satisfy 0 <= min < max")
	}

	switch mode {
	case "extract":
	case "watch":
		if c.Watch.DebounceMs <= 0 || c.Watch.WindowMs <= 0 || c.Watch.StableReads <= 0 {
			problems = append(problems, "watch.debounce_ms, watch.window_ms, and watch.stable_reads must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		problems = append(problems, "unknown mode "+mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

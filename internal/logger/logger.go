// README: Package-level zap logger; no-op until Initialize is called.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Log is the process-wide logger. It defaults to a no-op so packages can
// log unconditionally before Initialize runs (tests, early startup).
var Log = zap.NewNop()

// Initialize builds the real logger. env is "development" or "production".
func Initialize(level, env string) error {
	logLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = logLevel

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Log = l
	return nil
}

// Package logger constructs the structured zap logger shared by every
// seafair subsystem. Subsystems receive the logger through their Config
// structs rather than reaching for a global, keeping them testable with
// a no-op logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a production-configured SugaredLogger tagged with the given
// service name. Timestamps use ISO 8601 so log lines correlate cleanly
// with filesystem timestamps during incident analysis.
func New(service string) *zap.SugaredLogger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{"service": service}

	log, err := config.Build(zap.WithCaller(true))
	if err != nil {
		// Building a production config only fails on invalid output
		// paths, which the default config cannot produce. Fall back to a
		// no-op logger rather than propagate an impossible error.
		return zap.NewNop().Sugar()
	}

	return log.Sugar()
}

// NewNop returns a logger that discards everything. Tests use it to keep
// subsystem Configs satisfied without polluting test output.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

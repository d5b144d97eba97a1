// Package logging wraps zap the way the teacher's internal/logging does,
// minus the HTTP request-ID coupling this engine has no use for (there is
// no transport layer — SPEC_FULL.md §4.10).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the façade's structured logger.
type Logger struct {
	*zap.Logger
}

// NewLogger builds a Logger at the given level ("debug", "info", "warn",
// "error", ...), matching the teacher's config.Level/zap pairing.
func NewLogger(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger}, nil
}

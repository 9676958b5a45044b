// Package logging builds the zap loggers the pipeline components share.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide zap.Logger. Development mode uses the console
// encoder with colored levels for local runs against live sources; production
// mode emits JSON with ISO-8601 timestamps so run logs line up with the
// scraped_at values stored alongside them.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ForSource annotates a logger with the source name so every line a source
// job emits can be grepped by source. A nil logger yields a nop logger, which
// lets callers skip nil checks at each log site.
func ForSource(logger *zap.Logger, sourceName string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("source", sourceName))
}

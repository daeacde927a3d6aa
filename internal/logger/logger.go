// Package logger builds the process-wide structured logger. It is
// constructed once at startup and threaded through explicitly; nothing here
// is a package-level mutable global beyond the context helpers below.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's level and rendering.
type Config struct {
	// Level is the minimum enabled level: debug, info, warn, error.
	Level string
	// Encoding is "json" (default) or "console".
	Encoding string
	// Development selects zap's development encoder settings (colored level
	// names) and stack traces on warnings and above; the output format is
	// still chosen by Encoding.
	Development bool
}

// New builds a logger from cfg, applying the same defaults regardless of
// which fields were left zero.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       cfg.Development,
		Encoding:          cfg.Encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}

	log, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

type contextKey struct{}

var loggerKey = contextKey{}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext retrieves the attached logger, or a no-op logger if none was
// attached.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}

// Component returns a child logger tagged with a "component" field, the way
// every subsystem in this process names itself in its log lines.
func Component(log *zap.Logger, component string) *zap.Logger {
	return log.With(zap.String("component", component))
}

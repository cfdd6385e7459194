// Package logger wraps zap with the fields every surface of the service
// logs under.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options selects the minimum level and the encoding ("json" or "console").
type Options struct {
	Level  string
	Format string
}

// New builds a logger writing to stdout.
func New(opts Options) (*Logger, error) {
	encoding := strings.ToLower(opts.Format)
	if encoding == "" {
		encoding = "json"
	}
	if encoding != "json" && encoding != "console" {
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	if encoding == "console" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(opts.Level)),
		Encoding:          encoding,
		EncoderConfig:     enc,
		DisableStacktrace: encoding == "json",
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	l, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named creates a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// ForSession tags a child logger with the owning user and the surface
// (session, inbox, notifications) it serves.
func (l *Logger) ForSession(surface, userID string) *Logger {
	return &Logger{Logger: l.Logger.Named(surface).With(zap.String("user_id", userID))}
}

func parseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if level == "warning" {
		level = "warn"
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

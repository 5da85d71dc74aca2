// Package logging builds the zap logger used for operational logs.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, encoding and destinations.
type Options struct {
	// Level is debug, info, warn or error. Unknown values mean info.
	Level string
	// Format is console or json.
	Format string
	// File enables a rotated log file.
	File string
	// Stderr also writes to standard error. The console UI turns it off so
	// log lines do not corrupt the screen.
	Stderr bool
}

// ParseLevel maps a level name onto a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// New builds a logger. With no destination configured it returns a no-op
// logger.
func New(opts Options) *zap.Logger {
	return newWithWriters(opts, os.Stderr)
}

func newWithWriters(opts Options, stderr io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var syncers []zapcore.WriteSyncer
	if opts.File != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}
	if opts.Stderr {
		syncers = append(syncers, zapcore.AddSync(stderr))
	}
	if len(syncers) == 0 {
		return zap.NewNop()
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), ParseLevel(opts.Level))
	return zap.New(core, zap.AddCaller())
}

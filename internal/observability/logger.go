// Package observability provides structured logging and formatted progress
// output for the generation pipelines.
package observability

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a JSON-encoded structured logger writing to stderr.
// Verbose enables debug-level output.
func NewLogger(verbose bool) *zap.Logger {
	return newLoggerWithWriter(os.Stderr, verbose)
}

// NewNopLogger returns a logger that discards everything. Useful in tests.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}

func newLoggerWithWriter(w io.Writer, verbose bool) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// Package logger builds the service's zap logger.
package logger

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vitalvas/signgate/internal/config"
)

// Sampling keeps the first 100 entries with the same message per second and
// every 100th after that.
const samplingTick = time.Second

// Logger wraps zap.Logger with key/value convenience methods.
type Logger struct {
	*zap.Logger
}

// New creates a logger from cfg. File outputs are rotated by size and age.
func New(cfg *config.LogConfig) (*Logger, error) {
	if cfg == nil {
		return nil, errors.New("logger config is nil")
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	encoderCfg.StacktraceKey = "stacktrace"

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unknown log encoding %q", cfg.Encoding)
	}

	core := zapcore.NewCore(encoder, output(cfg), zap.NewAtomicLevelAt(level))
	core = zapcore.NewSamplerWithOptions(core, samplingTick, 100, 100)

	return &Logger{
		Logger: zap.New(core,
			zap.AddCaller(),
			zap.AddCallerSkip(1),
			zap.AddStacktrace(zapcore.ErrorLevel),
		),
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// FromZap wraps an existing zap logger, typically one built by zaptest.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{Logger: l}
}

func output(cfg *config.LogConfig) zapcore.WriteSyncer {
	switch cfg.OutputPath {
	case "", "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(argsToFields(args...)...)}
}

// Fatal logs a message at Fatal level and exits.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Fatal(msg, argsToFields(args...)...)
}

// Error logs a message at Error level.
func (l *Logger) Error(msg string, args ...any) {
	l.Logger.Error(msg, argsToFields(args...)...)
}

// Warn logs a message at Warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, argsToFields(args...)...)
}

// Info logs a message at Info level.
func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, argsToFields(args...)...)
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.Logger.Debug(msg, argsToFields(args...)...)
}

// Sync flushes buffered entries. Errors from syncing a terminal are
// ignored.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return nil
	}

	return err
}

// argsToFields converts alternating key/value arguments to zap fields.
// zap.Field values are passed through unchanged.
func argsToFields(args ...any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)

	for i := 0; i < len(args); i++ {
		if f, ok := args[i].(zap.Field); ok {
			fields = append(fields, f)
			continue
		}

		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			continue
		}

		i++
		fields = append(fields, zap.Any(key, args[i]))
	}

	return fields
}

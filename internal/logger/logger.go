package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the leveled logging surface used across the tool. Long-running
// stages log diagnostics here; operator-facing lines go through the
// pipeline's log sink instead.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warning(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	WithName(name string) Logger
}

type zapLogger struct {
	log *zap.SugaredLogger
}

// New builds a Logger writing to stderr and, when path is non-empty, to a
// log file as well. Level is "debug", "info", "warn" or "error".
func New(level, path string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	sinks := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl),
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sinks = append(sinks, zapcore.NewCore(enc, zapcore.Lock(f), lvl))
	}

	return &zapLogger{log: zap.New(zapcore.NewTee(sinks...)).Sugar()}, nil
}

// Nop returns a Logger that discards everything. Used in tests.
func Nop() Logger {
	return &zapLogger{log: zap.NewNop().Sugar()}
}

func (l *zapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Warning(msg string, keysAndValues ...interface{}) {
	l.log.Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if err != nil {
		keysAndValues = append(keysAndValues, "error", err)
	}
	l.log.Errorw(msg, keysAndValues...)
}

func (l *zapLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l *zapLogger) WithName(name string) Logger {
	return &zapLogger{log: l.log.Named(name)}
}

package zsocket

import (
	"log/slog"

	"go.uber.org/zap"
)

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// zapLogger adapts a zap logger to Logger using its sugared key/value API.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps a *zap.Logger so it can be passed to LoggerOption.
func NewZapLogger(logger *zap.Logger) Logger {
	return &zapLogger{sugar: logger.Sugar()}
}

func (z *zapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }

func (z *zapLogger) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

func (z *zapLogger) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

func (z *zapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

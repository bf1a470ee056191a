// Package logging builds the agent's structured logger and a small
// rate-limiting wrapper for noisy, repeated warnings.
package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// New builds a production-profile zap.Logger emitting structured JSON at
// the given level (spec §7: "logs are structured JSON at INFO by
// default"). An unrecognized level falls back to INFO.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "CRITICAL", "FATAL", "DPANIC":
		return zapcore.DPanicLevel, nil
	default:
		return zapcore.InfoLevel, nil
	}
}

// Limiter throttles repeated WARN-level log lines so a component hitting
// the same transient failure every tick (a Sender that can't reach
// Datadog, say) doesn't flood the log at the tick cadence.
type Limiter struct {
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewLimiter returns a Limiter allowing at most one line per `every`.
func NewLimiter(logger *zap.Logger, every time.Duration) *Limiter {
	return &Limiter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

// Warn logs at WARN if the rate limit allows it; otherwise it's dropped.
func (l *Limiter) Warn(msg string, fields ...zap.Field) {
	if l.limiter.Allow() {
		l.logger.Warn(msg, fields...)
	}
}

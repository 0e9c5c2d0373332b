package obs

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the encoder and minimum level of the shared logger.
type LogConfig struct {
	// Env is "production" for JSON output; anything else logs to a console encoder.
	Env     string
	Level   string
	Service string
	Version string
}

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// InitLogger builds the shared logger and returns it. Call once from main.
func InitLogger(cfg LogConfig) *zap.Logger {
	l, err := buildLogger(cfg)
	if err != nil {
		l, _ = zap.NewProduction()
	}
	if cfg.Service != "" {
		l = l.With(zap.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		l = l.With(zap.String("version", cfg.Version))
	}
	SetLogger(l)
	return l
}

// SetLogger replaces the shared logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// L returns the shared logger; a no-op logger until InitLogger runs.
func L() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

type loggerKey struct{}

// ToContext attaches a request-scoped logger.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From returns the request-scoped logger, falling back to L.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return L()
}

func buildLogger(cfg LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	switch strings.ToLower(cfg.Env) {
	case "production", "prod":
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return zcfg.Build()
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

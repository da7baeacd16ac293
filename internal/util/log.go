package util

import (
	"context"
	"os"

	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	CTXKeyLogger    contextKey = "logger"
	CTXKeyRequestID contextKey = "request_id"
)

// ConfigureLogger 按配置设置全局 zerolog
func ConfigureLogger(cfg config.LoggerServer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(cfg.Level)
	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// LogFromContext 返回请求上下文中的 logger，没有时回退到全局 logger
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		if ShouldDisableLogger(ctx) {
			return l
		}
		l = &log.Logger
	}
	return l
}

// ShouldDisableLogger 上下文显式禁用日志时返回 true
func ShouldDisableLogger(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	disable, ok := ctx.Value(CTXKeyLogger).(bool)
	return ok && disable
}

// DisableLogger 返回禁用日志的上下文
func DisableLogger(ctx context.Context, shouldDisable bool) context.Context {
	return context.WithValue(ctx, CTXKeyLogger, shouldDisable)
}

// WithComponent 返回带 component 字段的子 logger
func WithComponent(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

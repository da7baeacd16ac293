package middleware

import (
	"time"

	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerConfig 请求日志配置
type LoggerConfig struct {
	Skipper middleware.Skipper
	Level   zerolog.Level
	// LogRequests 为 false 时只注入 request logger，不输出访问日志
	LogRequests bool
}

// LoggerWithConfig 为每个请求注入带 request id 的 zerolog logger，并记录访问日志
func LoggerWithConfig(cfg LoggerConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			req := c.Request()
			res := c.Response()
			start := time.Now()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			l := log.With().
				Str("id", id).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Logger()
			ctx := l.WithContext(req.Context())
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			if !cfg.LogRequests || util.ShouldDisableLogger(c.Request().Context()) {
				return nil
			}

			l.WithLevel(cfg.Level).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Str("origin", req.Header.Get(echo.HeaderOrigin)).
				Dur("duration", time.Since(start)).
				Msg("http_request")
			return nil
		}
	}
}

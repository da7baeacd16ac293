package router

import (
	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers"
	"github.com/SafeMPC/aa-keyring/internal/api/middleware"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// Init 创建 echo 实例、挂载中间件并注册所有路由与 RPC 方法
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Debug = false

	s.Echo.Pre(echoMiddleware.RemoveTrailingSlash())
	s.Echo.Use(echoMiddleware.Recover())
	s.Echo.Use(echoMiddleware.RequestID())
	s.Echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Level:       s.Config.Logger.RequestLevel,
		LogRequests: s.Config.Logger.LogRequests,
	}))
	if s.Config.Echo.BodyLimit != "" {
		s.Echo.Use(echoMiddleware.BodyLimit(s.Config.Echo.BodyLimit))
	}
	if len(s.Config.Echo.AllowedOrigins) > 0 || len(s.Config.Echo.InternalOrigins) > 0 {
		origins := append(append([]string{}, s.Config.Echo.AllowedOrigins...), s.Config.Echo.InternalOrigins...)
		s.Echo.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
			AllowOrigins: origins,
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderOrigin, api.HeaderChainID},
		}))
	}

	if s.Router == nil {
		s.Router = &api.Router{RPC: api.NewMethodRegistry()}
	}
	s.Router.Root = s.Echo.Group("")
	s.Router.Management = s.Echo.Group("")

	handlers.AttachAllRoutes(s)

	log.Debug().
		Int("routes", len(s.Router.Routes)).
		Strs("methods", s.Router.RPC.Names()).
		Msg("Router initialized")
}

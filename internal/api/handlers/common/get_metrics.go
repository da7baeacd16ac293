package common

import (
	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func GetMetricsRoute(s *api.Server) *echo.Route {
	handler := promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})
	return s.Router.Management.GET("/metrics", echo.WrapHandler(handler))
}

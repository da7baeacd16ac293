package common

import (
	"context"
	"net/http"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/labstack/echo/v4"
)

const readinessTimeout = 3 * time.Second

// HealthStatus 健康检查响应
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func GetHealthRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/health", getHealthReadyHandler(s))
}

func GetHealthLiveRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/health/live", getHealthLiveHandler(s))
}

func GetHealthReadyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/health/ready", getHealthReadyHandler(s))
}

// 进程存活即可；探针调用频繁，不写请求日志
func getHealthLiveHandler(_ *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.SetRequest(c.Request().WithContext(util.DisableLogger(c.Request().Context(), true)))
		return c.JSON(http.StatusOK, HealthStatus{Status: "alive", Timestamp: time.Now().Unix()})
	}
}

// 组件已注入且状态存储可读；节点不可达只记为 degraded
func getHealthReadyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
		defer cancel()
		log := util.LogFromContext(ctx)

		res := HealthStatus{Status: "ready", Timestamp: time.Now().Unix(), Checks: map[string]string{}}
		status := http.StatusOK

		if !s.Ready() {
			res.Checks["server"] = "not ready"
			res.Status = "not ready"
			status = http.StatusServiceUnavailable
		}

		if s.Keyring != nil {
			if err := s.Keyring.Ping(ctx); err != nil {
				log.Error().Err(err).Msg("Readiness check failed, state store unavailable")
				res.Checks["state"] = err.Error()
				res.Status = "not ready"
				status = http.StatusServiceUnavailable
			} else {
				res.Checks["state"] = "ok"
			}
		}

		if s.Chains != nil && status == http.StatusOK {
			for _, chainID := range s.Chains.ChainIDs() {
				adapter, err := s.Chains.Adapter(ctx, chainID)
				if err == nil {
					err = adapter.Ping(ctx)
				}
				if err != nil {
					res.Checks["chain:"+chainID] = err.Error()
					res.Status = "degraded"
					continue
				}
				res.Checks["chain:"+chainID] = "ok"
			}
		}

		return c.JSON(status, res)
	}
}

package api

import (
	"context"
	"errors"

	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/keyring"
	"github.com/SafeMPC/aa-keyring/internal/metrics"
	"github.com/SafeMPC/aa-keyring/internal/smartaccount"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Router 路由分组与 JSON-RPC 方法表
type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
	RPC        *MethodRegistry
}

// Server 持有所有运行期组件，由 wire 装配
type Server struct {
	Config config.Server
	Echo   *echo.Echo
	Router *Router

	Store         state.Store
	State         *state.Manager
	Keyring       *keyring.Keyring
	Chains        *chain.Registry
	SmartAccounts *smartaccount.Provider
	Bundlers      *bundler.Provider
	Activity      *activity.Store
	Reconciler    *activity.Reconciler
	Metrics       *metrics.Metrics
}

// NewServer 创建空 Server，组件随后由 InitNewServer 注入
func NewServer(cfg config.Server) *Server {
	return &Server{
		Config: cfg,
		Router: &Router{RPC: NewMethodRegistry()},
	}
}

func newServerWithComponents(
	cfg config.Server,
	store state.Store,
	manager *state.Manager,
	kr *keyring.Keyring,
	chains *chain.Registry,
	smartAccounts *smartaccount.Provider,
	bundlers *bundler.Provider,
	activityStore *activity.Store,
	reconciler *activity.Reconciler,
	m *metrics.Metrics,
) *Server {
	s := NewServer(cfg)
	s.Store = store
	s.State = manager
	s.Keyring = kr
	s.Chains = chains
	s.SmartAccounts = smartAccounts
	s.Bundlers = bundlers
	s.Activity = activityStore
	s.Reconciler = reconciler
	s.Metrics = m
	return s
}

// Ready 所有组件均已注入
func (s *Server) Ready() bool {
	return s.Echo != nil &&
		s.Router != nil &&
		s.State != nil &&
		s.Keyring != nil &&
		s.SmartAccounts != nil &&
		s.Bundlers != nil &&
		s.Reconciler != nil
}

// Start 启动 HTTP 服务，阻塞直到关闭
func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}
	return s.Echo.Start(s.Config.Echo.ListenAddress)
}

// Shutdown 依次关闭 HTTP、节点连接与状态存储，返回所有遇到的错误
func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error
	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")
		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}
	if s.Chains != nil {
		s.Chains.Close()
	}
	if s.Store != nil {
		log.Debug().Msg("Closing state store")
		if err := s.Store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close state store")
			errs = append(errs, err)
		}
	}
	return errs
}

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	// ConfigFlag 根命令上的配置文件参数
	ConfigFlag      = "config"
	shutdownTimeout = 15 * time.Second
)

// NewSubcommandGroup 创建只负责分组的父命令
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s related subcommands", use),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(subcommands...)
	return cmd
}

// WithServer 初始化完整的 server（不启动 HTTP），执行 f 后关闭所有组件
func WithServer(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *api.Server) error) error {
	util.ConfigureLogger(cfg.Logger)

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize server")
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
			log.Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
		}
	}()

	return f(ctx, s)
}

// LoadConfig 按 --config 与环境变量加载配置
func LoadConfig(cmd *cobra.Command) (config.Server, error) {
	path, _ := cmd.Flags().GetString(ConfigFlag)
	return config.LoadServiceConfig(path)
}

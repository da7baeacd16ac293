package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/router"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/SafeMPC/aa-keyring/internal/util/command"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	withCronFlag          = "with-cron"
	serverShutdownTimeout = 15 * time.Second
)

func newServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the keyring JSON-RPC server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			withCron, _ := cmd.Flags().GetBool(withCronFlag)
			return runServer(cmd, withCron)
		},
	}
	cmd.Flags().Bool(withCronFlag, false, "also run the user operation reconciler in this process")
	return cmd
}

func runServer(cmd *cobra.Command, withCron bool) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}
	util.ConfigureLogger(cfg.Logger)

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	router.Init(s)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if withCron {
		go func() {
			log.Info().Dur("interval", cfg.Cron.Interval).Msg("Starting in-process reconciler")
			if err := s.Reconciler.Run(ctx, cfg.Cron.Interval, logOutcome); err != nil {
				log.Error().Err(err).Msg("Reconciler stopped")
			}
		}()
	}

	go func() {
		log.Info().Str("address", cfg.Echo.ListenAddress).Msg("Starting server")
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Fatal().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
	}
	log.Info().Msg("Server shut down")
	return nil
}

func logOutcome(out *activity.Outcome) {
	if out == nil {
		return
	}
	l := util.WithComponent("cron")
	l.Debug().
		Str("accountId", out.Record.AccountID).
		Str("chainId", out.Record.ChainID).
		Str("userOpHash", out.Record.UserOpHash).
		Bool("confirmed", out.Confirmed).
		Msg("Reconcile tick")
}

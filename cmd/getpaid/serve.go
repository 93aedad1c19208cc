package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"getpaid-p24/internal/app"
	"getpaid-p24/internal/config"
	"getpaid-p24/internal/logging"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve checkout, gateway callbacks and reconciliation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(logging.Config{
				ServiceName: "getpaid",
				Env:         cfg.AppEnv,
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logging.Sync(logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}
			return a.Run(ctx)
		},
	}
}

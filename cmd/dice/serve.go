package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/service"
	"github.com/eosnow-bet/dice/pkg/common/logger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the wagering engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			svc, err := service.New(cfg)
			if err != nil {
				return err
			}
			defer svc.Stop()

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := svc.Start(ctx); err != nil {
				return err
			}
			logger.Info("shutting down")
			return nil
		},
	}
}

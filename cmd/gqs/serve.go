package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/server"
	"github.com/j-veylop/gemini-quota-switch/internal/services"
	"github.com/j-veylop/gemini-quota-switch/internal/version"
)

func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the quota server",
		Long:  "Start the refresh scheduler and serve the snapshot, switch and history endpoints until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, err := services.NewManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer func() {
				if closeErr := mgr.Close(); closeErr != nil {
					logger.Warn("error closing services", "error", closeErr)
				}
			}()

			logger.Info("starting", "version", version.GetVersion(), "collection", cfg.CollectionDir, "active", cfg.ActiveDir)
			mgr.Start(ctx)

			return server.New(mgr, cfg.ListenAddr(), cfg.StaticDir).Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides PORT)")
	return cmd
}

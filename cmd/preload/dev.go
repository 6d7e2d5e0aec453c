package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/internal/dev"
)

func devCmd() *cobra.Command {
	var (
		port     int
		host     string
		upstream string
		mode     string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development proxy",
		Long: `Start the development proxy in front of your application's dev server.

HTML responses from the upstream get the preload runtime injected,
and connected browsers reload when preload.json, .env or the views
directory change.

Examples:
  preload dev
  preload dev --port=8080
  preload dev --upstream=http://localhost:5173`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(config.Overrides{
				Dev: config.DevConfig{Port: port, Host: host, Upstream: upstream},
			}, mode)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from preload.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from preload.json)")
	cmd.Flags().StringVarP(&upstream, "upstream", "u", "", "Application dev server URL")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Mode (development, production)")

	return cmd
}

func runDev(overrides config.Overrides, mode string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()

	server, err := dev.NewServer(dev.ServerOptions{
		Config: cfg,
		Mode:   mode,
		Logger: logger,
		OnReload: func(clients int) {
			success("Reloaded %d browsers", clients)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	info("Local:    %s", cfg.DevURL())
	info("Upstream: %s", cfg.Dev.Upstream)
	info("Metrics:  %s%s", cfg.DevURL(), dev.MetricsPath)
	fmt.Println()

	if err := server.Start(ctx); err != nil {
		return err
	}
	fmt.Println("\n  Shutting down...")
	return nil
}

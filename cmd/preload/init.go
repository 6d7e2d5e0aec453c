package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/preload/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		format     string
		routes     []string
		views      string
		upstream   string
		autoDetect bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter config",
		Long: `Write a starter preload.json or preload.yaml.

Examples:
  preload init
  preload init --routes /dashboard,/settings
  preload init --format yaml --auto-detect`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, format, templates.Config{
				Routes:     routes,
				Views:      views,
				Upstream:   upstream,
				AutoDetect: autoDetect,
			}, force)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Config format (json, yaml)")
	cmd.Flags().StringSliceVarP(&routes, "routes", "r", nil, "Starter routes")
	cmd.Flags().StringVar(&views, "views", "", "Views directory (default src/views)")
	cmd.Flags().StringVar(&upstream, "upstream", "", "Application dev server URL")
	cmd.Flags().BoolVar(&autoDetect, "auto-detect", false, "Detect routes from the views directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")

	return cmd
}

func runInit(dir, format string, cfg templates.Config, force bool) error {
	tmpl, err := templates.Get(format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := tmpl.Create(dir, cfg, force)
	if err != nil {
		return err
	}

	success("Created %s", filepath.Clean(path))
	if len(cfg.Routes) == 0 && !cfg.AutoDetect {
		info("Add routes to preload.routes, then run 'preload render'")
	}
	return nil
}

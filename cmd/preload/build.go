package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vango-dev/preload/internal/build"
	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/pkg/preload"
)

func buildCmd() *cobra.Command {
	var (
		output     string
		html       string
		noHash     bool
		clean      bool
		mode       string
		showStatus bool
		delay      int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build for production",
		Long: `Write the production preload artifacts.

This command:
  • Writes the runtime module with a content hash in its name
  • Writes the HTML injection fragment
  • Rewrites the HTML entry with the fragment spliced in
  • Writes an artifact manifest for 'preload publish'

Examples:
  preload build
  preload build --output=public --no-hash
  preload build --mode=development --delay=500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides config.Overrides
			overrides.Build.Output = output
			overrides.Build.HTML = html
			if noHash {
				overrides.Build.Hash = preload.Bool(false)
			}
			if cmd.Flags().Changed("show-status") {
				overrides.Preload.ShowStatus = preload.Bool(showStatus)
			}
			if cmd.Flags().Changed("delay") {
				overrides.Preload.Delay = preload.Int(delay)
			}
			return runBuild(overrides, mode, clean)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from preload.json)")
	cmd.Flags().StringVar(&html, "html", "", "HTML entry to rewrite (default from preload.json)")
	cmd.Flags().BoolVar(&noHash, "no-hash", false, "Do not add a content hash to the runtime file name")
	cmd.Flags().BoolVar(&clean, "clean", false, "Clean output directory before build")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Mode (development, production)")
	cmd.Flags().BoolVar(&showStatus, "show-status", true, "Show the status indicator")
	cmd.Flags().IntVar(&delay, "delay", 0, "Milliseconds to wait after page load")

	return cmd
}

func runBuild(overrides config.Overrides, mode string, clean bool) error {
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

	fmt.Println("  Building for production...")
	fmt.Println()

	builder := build.New(cfg, build.Options{
		Mode:  mode,
		Clean: clean,
		OnProgress: func(step string) {
			info(step)
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	if result.Manifest.Directives == 0 {
		warn("No routes to prefetch; the runtime module is a no-op")
	}
	success("Build complete in %s (%s, %d routes)", result.Duration.Round(1000000), result.Manifest.Mode, result.Manifest.Directives)
	fmt.Println()
	fmt.Println("  Output:")
	fmt.Printf("    %s/\n", cfg.Build.Output)
	printArtifacts(result.Manifest)
	fmt.Println()
	fmt.Println("  To publish:")
	fmt.Println("    preload publish")
	fmt.Println()

	return nil
}

// printArtifacts prints the manifest artifacts in path order.
func printArtifacts(m build.Manifest) {
	artifacts := make([]build.Artifact, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		artifacts = append(artifacts, a)
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Path < artifacts[j].Path })

	for _, a := range artifacts {
		fmt.Printf("    ├── %s  (%s)\n", a.Path, humanize.Bytes(uint64(a.Size)))
	}
	fmt.Printf("    └── %s/%s\n", build.ArtifactDir, build.ArtifactManifest)
}

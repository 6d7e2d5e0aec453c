package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/pkg/preload"
)

func renderCmd() *cobra.Command {
	var (
		html   bool
		mode   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the runtime module",
		Long: `Print the generated runtime module, or with --html the fragment
that is spliced into the HTML document.

Examples:
  preload render
  preload render --html --mode production
  preload render -o src/preloader.js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromWorkingDir()
			if err != nil {
				return err
			}
			pc, err := cfg.Resolve(mode, preload.ModeDevelopment)
			if err != nil {
				return err
			}

			gen := preload.NewGenerator(pc)
			out := gen.RenderRuntimeModule()
			if html {
				out = gen.RenderHTMLInjection()
			}
			logger.Debug("rendered", "mode", pc.Mode(), "directives", len(gen.Directives()), "html", html)

			if output != "" {
				return os.WriteFile(output, []byte(out), 0644)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "Print the HTML injection fragment")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Mode (development, production)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

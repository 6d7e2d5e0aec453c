package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vango-dev/preload/internal/build"
	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/pkg/preload"
)

func publishCmd() *cobra.Command {
	var (
		bucket    string
		prefix    string
		region    string
		endpoint  string
		pathStyle bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload build artifacts to S3",
		Long: `Upload the artifacts of the last 'preload build' to an S3 bucket.

Hashed files are uploaded with an immutable Cache-Control header,
everything else with no-cache. The manifest is uploaded last.
Credentials are read from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
and AWS_SESSION_TOKEN.

Examples:
  preload publish --bucket=my-site
  preload publish --endpoint=http://localhost:9000 --path-style`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.Overrides{
				Publish: config.PublishConfig{
					Bucket:   bucket,
					Prefix:   prefix,
					Region:   region,
					Endpoint: endpoint,
				},
			}
			if cmd.Flags().Changed("path-style") {
				overrides.Publish.PathStyle = preload.Bool(pathStyle)
			}
			return runPublish(overrides)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Bucket name (default from preload.json)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default preload/)")
	cmd.Flags().StringVar(&region, "region", "", "Bucket region (default us-east-1)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "S3 compatible endpoint URL")
	cmd.Flags().BoolVar(&pathStyle, "path-style", false, "Use path style bucket addressing")

	return cmd
}

func runPublish(overrides config.Overrides) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return err
	}

	manifest, err := build.ReadManifest(cfg.OutputPath())
	if err != nil {
		return err
	}

	publisher, err := build.NewPublisher(build.NewS3Client(cfg.Publish), cfg.Publish, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("  Publishing to s3://%s/%s\n\n", cfg.Publish.Bucket, cfg.Publish.Prefix)

	uploaded, err := publisher.Publish(ctx, cfg.OutputPath(), manifest)
	for _, u := range uploaded {
		info("%s  (%s, %s)", u.Key, humanize.Bytes(uint64(u.Size)), u.CacheControl)
	}
	if err != nil {
		errorMsg("Published %d of %d files", len(uploaded), len(manifest.Artifacts)+1)
		return err
	}

	fmt.Println()
	success("Published %d files", len(uploaded))
	return nil
}

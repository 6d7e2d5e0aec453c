package config

import (
	"os"
	"strconv"

	"dario.cat/mergo"
	"github.com/joho/godotenv"

	"github.com/vango-dev/preload/internal/errors"
	"github.com/vango-dev/preload/pkg/preload"
)

// EnvMode is the environment variable consulted by ResolveMode.
const EnvMode = "PRELOAD_MODE"

// Overrides holds values set on the command line. Zero values and nil
// pointers leave the file configuration untouched; a non-nil pointer always
// wins, so an explicit false from a flag replaces a true from the file.
type Overrides struct {
	Views   string
	Preload preload.Options
	Dev     DevConfig
	Build   BuildConfig
	Publish PublishConfig
}

// ApplyOverrides merges o over the configuration.
func (c *Config) ApplyOverrides(o Overrides) error {
	opts := []func(*mergo.Config){mergo.WithOverride, mergo.WithoutDereference}

	if err := mergo.Merge(&c.Preload, o.Preload, opts...); err != nil {
		return errors.New("E150").Wrap(err)
	}
	if err := mergo.Merge(&c.Dev, o.Dev, opts...); err != nil {
		return errors.New("E150").Wrap(err)
	}
	if err := mergo.Merge(&c.Build, o.Build, opts...); err != nil {
		return errors.New("E150").Wrap(err)
	}
	if err := mergo.Merge(&c.Publish, o.Publish, opts...); err != nil {
		return errors.New("E150").Wrap(err)
	}
	if o.Views != "" {
		c.Views = o.Views
	}
	return nil
}

// ResolveMode picks the mode for a command. The first of these that is set
// wins: the --mode flag, PRELOAD_MODE from the environment or else from the
// project .env file, the file's mode, and fallback.
func (c *Config) ResolveMode(flag string, fallback preload.Mode) (preload.Mode, error) {
	if flag != "" {
		mode, ok := preload.ParseMode(flag)
		if !ok {
			return "", errors.New("E150").
				WithDetail("--mode must be development or production, got " + strconv.Quote(flag))
		}
		return mode, nil
	}

	env, err := c.envMode()
	if err != nil {
		return "", err
	}
	if env != "" {
		mode, ok := preload.ParseMode(env)
		if !ok {
			return "", errors.New("E102").
				WithDetail(EnvMode + " must be development or production, got " + strconv.Quote(env))
		}
		return mode, nil
	}

	if c.Mode != "" {
		mode, ok := preload.ParseMode(c.Mode)
		if !ok {
			return "", errors.New("E102").
				WithDetail("mode must be development or production, got " + strconv.Quote(c.Mode))
		}
		return mode, nil
	}

	return fallback, nil
}

// envMode returns PRELOAD_MODE. A variable set in the process environment
// wins over the .env file, which is re-read on every call and never copied
// into the environment.
func (c *Config) envMode() (string, error) {
	if v, ok := os.LookupEnv(EnvMode); ok && v != "" {
		return v, nil
	}
	vars, err := godotenv.Read(c.EnvPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.New("E101").
			WithDetail("Failed to parse " + c.EnvPath()).
			Wrap(err)
	}
	return vars[EnvMode], nil
}

// PreloadOptions returns the plugin options ready for normalization. When
// auto-detection is configured the views directory is scanned and the
// discovered routes are appended after the declared ones.
func (c *Config) PreloadOptions() (preload.Options, error) {
	opts := c.Preload.Clone()
	if opts.AutoDetect == nil {
		return opts, nil
	}

	views := c.ViewsPath()
	detected, err := preload.DetectRoutes(os.DirFS(views), *opts.AutoDetect)
	if err != nil {
		return preload.Options{}, errors.New("E140").
			WithDetail("Scanning " + views).
			Wrap(err)
	}
	opts.Routes = preload.MergeDetected(opts.Routes, detected)
	return opts, nil
}

// Resolve loads the options, resolves the mode and normalizes them.
func (c *Config) Resolve(modeFlag string, fallback preload.Mode) (*preload.Config, error) {
	mode, err := c.ResolveMode(modeFlag, fallback)
	if err != nil {
		return nil, err
	}
	opts, err := c.PreloadOptions()
	if err != nil {
		return nil, err
	}
	cfg, err := preload.Normalize(opts, mode)
	if err != nil {
		return nil, errors.New("E102").
			WithDetail("preload.routes is required").
			WithSuggestion("Add a routes list or enable preload.autoDetect").
			Wrap(err)
	}
	return cfg, nil
}

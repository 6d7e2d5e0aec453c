package preload

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Virtual module identifiers.
const (
	// VirtualModuleID is the id applications import the runtime from.
	VirtualModuleID = "virtual:preloader"

	// ResolvedVirtualModuleID is the internal id the virtual module resolves to.
	ResolvedVirtualModuleID = "\x00" + VirtualModuleID
)

// PluginName is reported to hosts that name their plugins.
const PluginName = "preload"

// ErrNotConfigured is returned when a generation hook runs before ConfigResolved.
var ErrNotConfigured = errors.New("preload: plugin used before configuration was resolved")

// Plugin adapts the generator to a build tool's hook lifecycle.
//
// ConfigResolved installs a fresh Generator for each configuration
// resolution. The other hooks read whichever Generator is current and are
// safe to call concurrently.
type Plugin struct {
	generator  atomic.Pointer[Generator]
	configFile string
	logger     *slog.Logger
}

// PluginOption configures a Plugin.
type PluginOption func(*Plugin)

// WithConfigFile sets the config file whose changes HandleHotUpdate reports.
func WithConfigFile(path string) PluginOption {
	return func(p *Plugin) {
		p.configFile = path
	}
}

// WithLogger sets the plugin logger.
func WithLogger(logger *slog.Logger) PluginOption {
	return func(p *Plugin) {
		p.logger = logger
	}
}

// NewPlugin creates an unconfigured plugin.
func NewPlugin(opts ...PluginOption) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default().With("component", PluginName)
	}
	return p
}

// Name returns PluginName.
func (p *Plugin) Name() string {
	return PluginName
}

// ConfigResolved normalizes opts and installs a new Generator. On error the
// previous Generator, if any, stays in place.
func (p *Plugin) ConfigResolved(opts Options, mode Mode) error {
	cfg, err := Normalize(opts, mode)
	if err != nil {
		return err
	}

	gen := NewGenerator(cfg)
	p.generator.Store(gen)

	p.logger.Info("preload enabled", "routes", len(gen.directives), "mode", string(mode))
	if cfg.options.Debug {
		for _, d := range gen.directives {
			p.logger.Debug("preload route",
				"path", d.Path,
				"component", d.ComponentPath,
				"reason", d.Reason,
				"priority", d.Priority,
			)
		}
	}
	return nil
}

// Generator returns the current generator.
func (p *Plugin) Generator() (*Generator, bool) {
	gen := p.generator.Load()
	return gen, gen != nil
}

// ResolveID maps VirtualModuleID to ResolvedVirtualModuleID. Other ids are
// not handled.
func (p *Plugin) ResolveID(id string) (string, bool) {
	if id == VirtualModuleID {
		return ResolvedVirtualModuleID, true
	}
	return "", false
}

// Load returns the runtime module source for ResolvedVirtualModuleID. The
// boolean is false for ids this plugin does not own.
func (p *Plugin) Load(id string) (string, bool, error) {
	if id != ResolvedVirtualModuleID {
		return "", false, nil
	}
	gen := p.generator.Load()
	if gen == nil {
		return "", true, ErrNotConfigured
	}
	return gen.RenderRuntimeModule(), true, nil
}

// TransformIndexHTML injects the preload fragment into html. Before
// ConfigResolved, html is returned unchanged.
func (p *Plugin) TransformIndexHTML(html string) string {
	gen := p.generator.Load()
	if gen == nil {
		return html
	}
	return gen.TransformHTML(html)
}

// HandleHotUpdate reports whether a change to file requires the host to
// resolve the configuration again and fully reload connected clients.
func (p *Plugin) HandleHotUpdate(file string) bool {
	if file == "" {
		return false
	}
	if p.configFile != "" {
		return filepath.Clean(file) == filepath.Clean(p.configFile)
	}
	return IsConfigFile(file)
}

// IsConfigFile reports whether file looks like a preload config file
// (preload.json, preload.yaml or preload.yml).
func IsConfigFile(file string) bool {
	base := filepath.Base(file)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".yaml", ".yml":
		return strings.TrimSuffix(base, filepath.Ext(base)) == PluginName
	}
	return false
}

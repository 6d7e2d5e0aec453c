package dev

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/internal/errors"
	"github.com/vango-dev/preload/internal/telemetry"
	"github.com/vango-dev/preload/pkg/preload"
)

// Dev server routes.
const (
	RuntimePath = "/@preload/runtime.js"
	VirtualPath = "/@id/" + preload.VirtualModuleID
	ReloadPath  = "/_preload/reload"
	MetricsPath = "/_preload/metrics"
)

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Mode is the --mode flag value. Empty defers to ResolveMode.
	Mode string

	// Logger receives server logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Registry collects the server metrics. Nil creates a private registry.
	Registry *prometheus.Registry

	// OnReload is called when browsers are reloaded.
	OnReload func(clients int)
}

// Server is the development server. It serves the runtime module, proxies
// everything else to the upstream application with the preload injection
// spliced into HTML responses, and reloads browsers when the preload
// configuration changes.
type Server struct {
	config     *config.Config
	options    ServerOptions
	logger     *slog.Logger
	plugin     *telemetry.Instrumented
	registry   *prometheus.Registry
	watcher    *Watcher
	hub        *Hub
	changeCh   chan Change
	cache      *lru.Cache[string, string]
	generation atomic.Uint64
	upstream   *url.URL
	httpServer *http.Server
	mu         sync.Mutex
	running    bool
	hotReload  bool
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) (*Server, error) {
	cfg := options.Config

	upstream, err := cfg.UpstreamURL()
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dev")

	registry := options.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	cache, err := lru.New[string, string](cfg.Dev.CacheSize)
	if err != nil {
		return nil, errors.New("E130").Wrap(err)
	}

	plugin := preload.NewPlugin(
		preload.WithConfigFile(cfg.Path()),
		preload.WithLogger(logger.With("component", preload.PluginName)),
	)

	watcher := NewWatcher(WatcherConfig{
		Paths:    CollectWatchPaths(cfg),
		Ignore:   watchIgnore(cfg),
		Debounce: 100 * time.Millisecond,
	})

	hotReload := cfg.HotReloadEnabled()
	var hub *Hub
	if hotReload {
		hub = NewHub()
	}

	return &Server{
		config:    cfg,
		options:   options,
		logger:    logger,
		plugin:    telemetry.Instrument(plugin, telemetry.NewMetrics(registry)),
		registry:  registry,
		watcher:   watcher,
		hub:       hub,
		cache:     cache,
		upstream:  upstream,
		hotReload: hotReload,
	}, nil
}

// Plugin returns the instrumented plugin the server drives.
func (s *Server) Plugin() *telemetry.Instrumented {
	return s.plugin
}

// Resolve resolves the mode and options from the current configuration and
// installs them. On failure the previous configuration stays live.
func (s *Server) Resolve(ctx context.Context) error {
	cfg := s.currentConfig()

	mode, err := cfg.ResolveMode(s.options.Mode, preload.ModeDevelopment)
	if err != nil {
		return err
	}
	opts, err := cfg.PreloadOptions()
	if err != nil {
		return err
	}
	if err := s.plugin.ConfigResolved(ctx, opts, mode); err != nil {
		if stderrors.Is(err, preload.ErrMissingRoutes) {
			return errors.New("E102").
				WithDetail("preload.routes is required").
				WithSuggestion("Add a routes list or enable preload.autoDetect").
				Wrap(err)
		}
		return err
	}

	s.generation.Add(1)
	s.cache.Purge()
	return nil
}

// Start resolves the configuration and runs the server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Resolve(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.changeCh = make(chan Change, 64)
	s.watcher.OnChange(func(change Change) {
		select {
		case s.changeCh <- change:
		default:
		}
	})

	go s.watcher.Start(ctx)
	go s.processChanges(ctx)

	cfg := s.currentConfig()
	s.httpServer = &http.Server{
		Addr:              cfg.DevAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.Stop()
		return errors.New("E130").WithDetail("Cannot listen on " + s.httpServer.Addr).Wrap(err)
	}

	s.logger.Info("server running", "url", cfg.DevURL(), "upstream", s.upstream.String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		if err != nil {
			return errors.New("E130").Wrap(err)
		}
		return nil
	}
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	s.watcher.Stop()
	if s.hub != nil {
		s.hub.Close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(RuntimePath, s.handleRuntime)
	r.Get(VirtualPath, s.handleRuntime)
	if s.reloadEnabled() {
		r.Handle(ReloadPath, s.hub)
	}
	r.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Handle("/*", s.newProxy())

	return r
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	code, _, err := s.plugin.Load(r.Context(), preload.ResolvedVirtualModuleID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	io.WriteString(w, code)
}

// newProxy builds the reverse proxy to the upstream application.
func (s *Server) newProxy() *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(s.upstream)

	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		// HTML bodies are rewritten, so ask for them uncompressed.
		r.Header.Del("Accept-Encoding")
	}

	proxy.ModifyResponse = func(resp *http.Response) error {
		if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			return nil
		}
		if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		resp.Body.Close()

		out := s.transformHTML(resp.Request.Context(), body)

		resp.Body = io.NopCloser(strings.NewReader(out))
		resp.ContentLength = int64(len(out))
		resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
		return nil
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Warn("upstream unavailable", "url", s.upstream.String(), "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		reloadScript := ""
		if s.reloadEnabled() {
			reloadScript = DevClientScript
		}
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>preload dev server</title></head>
<body style="font-family: system-ui; padding: 40px; background: #1a1a1a; color: #fff;">
<h1 style="color: #ff5555;">Upstream Not Responding</h1>
<p>Nothing is answering at <code>%s</code>.</p>
<p style="color: #888;">Start the application server, then reload this page.</p>
%s
</body>
</html>`, s.upstream.String(), reloadScript)
	}

	return proxy
}

// transformHTML splices the preload injection and the reload client into an
// HTML document. Results are cached per configuration generation.
func (s *Server) transformHTML(ctx context.Context, body []byte) string {
	sum := sha256.Sum256(body)
	key := strconv.FormatUint(s.generation.Load(), 10) + ":" + hex.EncodeToString(sum[:])

	metrics := s.plugin.Metrics()
	if out, ok := s.cache.Get(key); ok {
		metrics.RecordCacheHit()
		return out
	}
	metrics.RecordCacheMiss()

	out := s.plugin.TransformIndexHTML(ctx, string(body))
	if s.reloadEnabled() {
		out = injectClientScript(out)
	}
	s.cache.Add(key, out)
	return out
}

// injectClientScript inserts DevClientScript before </body>, falling back
// to </html> and then the end of the document.
func injectClientScript(html string) string {
	if idx := strings.LastIndex(html, "</body>"); idx != -1 {
		return html[:idx] + DevClientScript + html[idx:]
	}
	if idx := strings.LastIndex(html, "</html>"); idx != -1 {
		return html[:idx] + DevClientScript + html[idx:]
	}
	return html + DevClientScript
}

// processChanges serializes file change handling and coalesces bursts.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-s.changeCh:
			changes := []Change{change}
			draining := true
			for draining {
				select {
				case next := <-s.changeCh:
					changes = append(changes, next)
				default:
					draining = false
				}
			}
			s.handleChanges(ctx, changes)
		}
	}
}

// handleChanges handles a batch of file changes.
func (s *Server) handleChanges(ctx context.Context, changes []Change) {
	if len(changes) == 0 {
		return
	}

	configChanged := false
	resolve := false
	changed := make([]string, 0, len(changes))

	for _, change := range changes {
		s.logger.Info("changed", "path", change.Path, "type", change.Type)
		changed = append(changed, s.relPath(change.Path))
		switch {
		case s.plugin.HandleHotUpdate(change.Path):
			configChanged = true
		case change.Type == ChangeEnv:
			resolve = true
		case change.Type == ChangeView && s.currentConfig().Preload.AutoDetect != nil:
			resolve = true
		}
	}

	if configChanged {
		if err := s.reloadConfig(); err != nil {
			s.reportError(err)
			return
		}
		resolve = true
	}

	if !resolve {
		s.publish(Event{Type: EventReload, Changed: changed})
		return
	}

	if err := s.Resolve(ctx); err != nil {
		s.reportError(err)
		return
	}
	s.publish(s.configEvent(changed))
}

// configEvent describes the live generator.
func (s *Server) configEvent(changed []string) Event {
	ev := Event{
		Type:       EventConfig,
		Generation: s.generation.Load(),
		Changed:    changed,
	}
	if gen, ok := s.plugin.Plugin().Generator(); ok {
		ev.Mode = gen.Config().Mode()
		for _, d := range gen.Directives() {
			ev.Routes = append(ev.Routes, d.Path)
		}
	}
	return ev
}

// relPath returns path relative to the project root when possible.
func (s *Server) relPath(path string) string {
	if rel, err := filepath.Rel(s.currentConfig().Dir(), path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// reloadConfig reads the config file again and swaps it in when valid.
// The watcher follows the paths of the new configuration.
func (s *Server) reloadConfig() error {
	path := s.currentConfig().Path()
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.watcher.SetPaths(CollectWatchPaths(cfg), watchIgnore(cfg))
	return nil
}

func watchIgnore(cfg *config.Config) []string {
	return append(append([]string{}, DefaultIgnore...), cfg.Dev.Ignore...)
}

func (s *Server) currentConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *Server) reportError(err error) {
	e := errors.FromError(err, "E130")
	s.logger.Error("configuration rejected, keeping previous configuration", "error", e.FormatCompact())
	s.publish(Event{Type: EventError, Error: e.FormatCompact()})
}

func (s *Server) reloadEnabled() bool {
	return s.hotReload && s.hub != nil
}

// publish sends ev to connected browsers.
func (s *Server) publish(ev Event) {
	if !s.reloadEnabled() {
		if ev.Type != EventError {
			s.logger.Info("configuration updated (hot reload disabled)")
		}
		return
	}

	clients := s.hub.Publish(ev)
	if ev.Type == EventError {
		return
	}
	if s.options.OnReload != nil {
		s.options.OnReload(clients)
	}
	s.logger.Info("reloaded browsers", "clients", clients, "generation", ev.Generation)
}

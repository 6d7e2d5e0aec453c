package dev

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/internal/errors"
	"github.com/vango-dev/preload/pkg/preload"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>app</title></head>
<body><div id="app"></div></body>
</html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProject writes preload.json with the given preload section and
// upstream into a temp dir and loads it.
func newTestProject(t *testing.T, upstream, preloadJSON string) *config.Config {
	t.Helper()
	t.Setenv(config.EnvMode, "")
	os.Unsetenv(config.EnvMode)

	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)
	content := `{"preload": ` + preloadJSON + `, "dev": {"upstream": "` + upstream + `"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, testPage)
	})
	mux.HandleFunc("/api/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)
	return upstream
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(ServerOptions{Config: cfg, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_InvalidUpstream(t *testing.T) {
	for _, upstream := range []string{"::not a url", "ftp://files.local", "http://", ""} {
		cfg := config.New()
		cfg.Dev.Upstream = upstream

		_, err := NewServer(ServerOptions{Config: cfg, Logger: quietLogger()})
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Code != "E131" {
			t.Errorf("NewServer(%q) error = %v, want E131", upstream, err)
		}
	}
}

func TestServer_Runtime(t *testing.T) {
	cfg := newTestProject(t, "http://127.0.0.1:1", `{"routes": ["/demo/13-calendar"]}`)
	srv := newTestServer(t, cfg)
	h := srv.Handler()

	if rec := get(t, h, RuntimePath); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("runtime before resolve: status %d, want 503", rec.Code)
	}

	if err := srv.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	for _, path := range []string{RuntimePath, VirtualPath} {
		rec := get(t, h, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
			t.Errorf("GET %s: Content-Type %q", path, ct)
		}
		if !strings.Contains(rec.Body.String(), "@/views/demo/13-calendar/index.vue") {
			t.Errorf("GET %s: body missing directive:\n%s", path, rec.Body.String())
		}
	}
}

func TestServer_ProxyInjectsHTML(t *testing.T) {
	upstream := newUpstream(t)
	cfg := newTestProject(t, upstream.URL, `{"routes": ["/a"]}`)
	srv := newTestServer(t, cfg)
	if err := srv.Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := srv.Handler()

	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	head := strings.Index(body, `<script type="module">`)
	if head == -1 || head > strings.Index(body, "</head>") {
		t.Errorf("preload script should sit before </head>:\n%s", body)
	}
	if !strings.Contains(body, ReloadPath) {
		t.Error("reload client should be injected")
	}
	if rec.Header().Get("Content-Length") != "" && rec.Header().Get("Content-Length") != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length = %s, body %d", rec.Header().Get("Content-Length"), len(body))
	}

	again := get(t, h, "/")
	if again.Body.String() != body {
		t.Error("cached transform should be identical")
	}
	if srv.cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", srv.cache.Len())
	}

	api := get(t, h, "/api/data.json")
	if api.Body.String() != `{"ok":true}` {
		t.Errorf("non-HTML body changed: %q", api.Body.String())
	}
}

func TestServer_ResolvePurgesCache(t *testing.T) {
	upstream := newUpstream(t)
	cfg := newTestProject(t, upstream.URL, `{"routes": ["/a"]}`)
	srv := newTestServer(t, cfg)
	ctx := context.Background()
	if err := srv.Resolve(ctx); err != nil {
		t.Fatal(err)
	}
	get(t, srv.Handler(), "/")
	if err := srv.Resolve(ctx); err != nil {
		t.Fatal(err)
	}
	if srv.cache.Len() != 0 {
		t.Errorf("cache len after resolve = %d, want 0", srv.cache.Len())
	}
}

func TestServer_UpstreamDown(t *testing.T) {
	upstream := newUpstream(t)
	url := upstream.URL
	upstream.Close()

	cfg := newTestProject(t, url, `{"routes": []}`)
	srv := newTestServer(t, cfg)

	rec := get(t, srv.Handler(), "/")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Upstream Not Responding") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	cfg := newTestProject(t, "http://127.0.0.1:1", `{"routes": ["/a", "/b"]}`)
	srv := newTestServer(t, cfg)
	if err := srv.Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Handler(), MetricsPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	for _, want := range []string{
		`preload_config_resolutions_total{result="success"} 1`,
		"preload_directives 2",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Event
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

// dialReload connects to the reload websocket and waits for registration.
func dialReload(t *testing.T, ts *httptest.Server, srv *Server) *websocket.Conn {
	t.Helper()
	before := srv.hub.Clients()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for srv.hub.Clients() == before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestServer_ConfigChangeReloads(t *testing.T) {
	cfg := newTestProject(t, "http://127.0.0.1:1", `{"routes": ["/a"]}`)
	srv := newTestServer(t, cfg)
	ctx := context.Background()
	if err := srv.Resolve(ctx); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialReload(t, ts, srv)
	defer conn.Close()

	// A broken file keeps the previous configuration live.
	if err := os.WriteFile(cfg.Path(), []byte(`{"preload": {"routes": [`), 0644); err != nil {
		t.Fatal(err)
	}
	srv.handleChanges(ctx, []Change{{Path: cfg.Path(), Type: ChangeConfig}})

	msg := readEvent(t, conn)
	if msg.Type != EventError || !strings.Contains(msg.Error, "E101") {
		t.Errorf("message = %+v, want E101 error", msg)
	}
	if body := get(t, srv.Handler(), RuntimePath).Body.String(); !strings.Contains(body, "@/views/a/index.vue") {
		t.Error("previous configuration should stay live")
	}

	content := `{"preload": {"routes": ["/b"]}, "dev": {"upstream": "http://127.0.0.1:1"}}`
	if err := os.WriteFile(cfg.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	srv.handleChanges(ctx, []Change{{Path: cfg.Path(), Type: ChangeConfig}})

	msg = readEvent(t, conn)
	if msg.Type != EventConfig || msg.Mode != preload.ModeDevelopment {
		t.Errorf("message = %+v, want development config", msg)
	}
	if len(msg.Routes) != 1 || msg.Routes[0] != "/b" {
		t.Errorf("Routes = %v, want [/b]", msg.Routes)
	}
	if msg.Generation != srv.generation.Load() || msg.Generation < 2 {
		t.Errorf("Generation = %d, server at %d", msg.Generation, srv.generation.Load())
	}
	if len(msg.Changed) != 1 || msg.Changed[0] != config.ConfigFileName {
		t.Errorf("Changed = %v", msg.Changed)
	}
	if body := get(t, srv.Handler(), RuntimePath).Body.String(); !strings.Contains(body, "@/views/b/index.vue") {
		t.Errorf("new configuration not served:\n%s", body)
	}
}

func TestServer_ViewChangeWithoutAutoDetect(t *testing.T) {
	cfg := newTestProject(t, "http://127.0.0.1:1", `{"routes": ["/a"]}`)
	srv := newTestServer(t, cfg)
	ctx := context.Background()
	if err := srv.Resolve(ctx); err != nil {
		t.Fatal(err)
	}
	before := srv.generation.Load()

	srv.handleChanges(ctx, []Change{{Path: filepath.Join(cfg.ViewsPath(), "x", "index.vue"), Type: ChangeView}})

	if srv.generation.Load() != before {
		t.Error("view changes should not resolve again without auto-detection")
	}
}

func TestServer_ErrorReplayedToNewClients(t *testing.T) {
	cfg := newTestProject(t, "http://127.0.0.1:1", `{"routes": ["/a"]}`)
	srv := newTestServer(t, cfg)
	ctx := context.Background()
	if err := srv.Resolve(ctx); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if err := os.WriteFile(cfg.Path(), []byte(`{"preload": {"routes": [`), 0644); err != nil {
		t.Fatal(err)
	}
	srv.handleChanges(ctx, []Change{{Path: cfg.Path(), Type: ChangeConfig}})

	late := dialReload(t, ts, srv)
	defer late.Close()
	if msg := readEvent(t, late); msg.Type != EventError || !strings.Contains(msg.Error, "E101") {
		t.Errorf("late client got %+v, want the pending error", msg)
	}

	// Other files reload the page without touching the configuration.
	asset := filepath.Join(cfg.Dir(), "public", "logo.svg")
	srv.handleChanges(ctx, []Change{{Path: asset, Type: ChangeAsset}})
	if msg := readEvent(t, late); msg.Type != EventReload || len(msg.Changed) != 1 || msg.Changed[0] != "public/logo.svg" {
		t.Errorf("message = %+v, want reload of public/logo.svg", msg)
	}

	content := `{"preload": {"routes": ["/a"]}, "dev": {"upstream": "http://127.0.0.1:1"}}`
	if err := os.WriteFile(cfg.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	srv.handleChanges(ctx, []Change{{Path: cfg.Path(), Type: ChangeConfig}})
	if msg := readEvent(t, late); msg.Type != EventConfig {
		t.Fatalf("message = %+v, want config", msg)
	}

	fresh := dialReload(t, ts, srv)
	defer fresh.Close()
	fresh.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := fresh.ReadMessage(); err == nil {
		t.Errorf("fixed configuration should not replay an error, got %s", data)
	}
}

func TestServer_ReloadConfigUpdatesWatchPaths(t *testing.T) {
	cfg := newTestProject(t, "http://127.0.0.1:1", `{"routes": []}`)
	views := cfg.ViewsPath()
	if err := os.MkdirAll(filepath.Join(views, "home"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(views, "home", "index.vue"), []byte("<template/>"), 0644)

	srv := newTestServer(t, cfg)
	srv.watcher.scanInitial()
	ctx := context.Background()
	if err := srv.Resolve(ctx); err != nil {
		t.Fatal(err)
	}
	for _, p := range srv.watcher.Paths() {
		if p == views {
			t.Fatal("views should not be watched without auto-detection")
		}
	}

	content := `{"preload": {"routes": [], "autoDetect": {}}, "dev": {"upstream": "http://127.0.0.1:1", "watch": ["extra"]}}`
	if err := os.WriteFile(cfg.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	srv.handleChanges(ctx, []Change{{Path: cfg.Path(), Type: ChangeConfig}})

	paths := strings.Join(srv.watcher.Paths(), "\n")
	for _, want := range []string{views, filepath.Join(cfg.Dir(), "extra")} {
		if !strings.Contains(paths, want) {
			t.Errorf("watch paths missing %s:\n%s", want, paths)
		}
	}

	var got []Change
	srv.watcher.OnChange(func(c Change) {
		if c.Type == ChangeView {
			got = append(got, c)
		}
	})
	srv.watcher.checkForChanges()
	if len(got) != 0 {
		t.Errorf("existing view files should not be reported, got %+v", got)
	}

	os.MkdirAll(filepath.Join(views, "about"), 0755)
	os.WriteFile(filepath.Join(views, "about", "index.vue"), []byte("<template/>"), 0644)
	srv.watcher.checkForChanges()
	if len(got) != 1 || filepath.Base(filepath.Dir(got[0].Path)) != "about" {
		t.Errorf("changes = %+v, want one view change", got)
	}
}

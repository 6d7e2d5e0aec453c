package preload

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func quietPlugin(opts ...PluginOption) *Plugin {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewPlugin(opts...)
}

func TestPlugin_ResolveID(t *testing.T) {
	p := quietPlugin()

	id, ok := p.ResolveID(VirtualModuleID)
	if !ok || id != ResolvedVirtualModuleID {
		t.Errorf("ResolveID(%q) = (%q, %v)", VirtualModuleID, id, ok)
	}
	if _, ok := p.ResolveID("./main.js"); ok {
		t.Error("ResolveID should not handle other ids")
	}
}

func TestPlugin_LoadBeforeConfig(t *testing.T) {
	p := quietPlugin()

	_, ok, err := p.Load(ResolvedVirtualModuleID)
	if !ok {
		t.Error("Load should own the virtual module id")
	}
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Load error = %v, want ErrNotConfigured", err)
	}

	const html = "<head></head>"
	if got := p.TransformIndexHTML(html); got != html {
		t.Errorf("TransformIndexHTML before config = %q, want unchanged", got)
	}
}

func TestPlugin_Lifecycle(t *testing.T) {
	p := quietPlugin()

	if err := p.ConfigResolved(Options{Routes: []RouteSpec{Shorthand("/a")}}, ModeDevelopment); err != nil {
		t.Fatalf("ConfigResolved error: %v", err)
	}

	code, ok, err := p.Load(ResolvedVirtualModuleID)
	if err != nil || !ok {
		t.Fatalf("Load = (_, %v, %v)", ok, err)
	}
	gen, _ := p.Generator()
	if code != gen.RenderRuntimeModule() {
		t.Error("Load output differs from the generator's runtime module")
	}

	if _, ok, _ := p.Load("other"); ok {
		t.Error("Load should not handle other ids")
	}

	html := p.TransformIndexHTML("<head></head>")
	if !strings.Contains(html, "<script type=\"module\">") {
		t.Errorf("TransformIndexHTML did not inject: %q", html)
	}
}

func TestPlugin_ConfigResolvedErrorKeepsPrevious(t *testing.T) {
	p := quietPlugin()

	if err := p.ConfigResolved(Options{Routes: []RouteSpec{Shorthand("/a")}}, ModeProduction); err != nil {
		t.Fatal(err)
	}
	before, _ := p.Generator()

	if err := p.ConfigResolved(Options{}, ModeProduction); !errors.Is(err, ErrMissingRoutes) {
		t.Fatalf("error = %v, want ErrMissingRoutes", err)
	}

	after, _ := p.Generator()
	if before != after {
		t.Error("failed ConfigResolved replaced the generator")
	}
}

func TestPlugin_ConfigResolvedReplacesGenerator(t *testing.T) {
	p := quietPlugin()

	p.ConfigResolved(Options{Routes: []RouteSpec{Shorthand("/a")}}, ModeProduction)
	first, _ := p.Generator()

	p.ConfigResolved(Options{Routes: []RouteSpec{Shorthand("/b")}}, ModeProduction)
	second, _ := p.Generator()

	if first == second {
		t.Fatal("generator was not replaced")
	}
	if first.Directives()[0].Path != "/a" {
		t.Error("previous generator was mutated")
	}
	if second.Directives()[0].Path != "/b" {
		t.Error("new generator has wrong routes")
	}
}

func TestPlugin_HandleHotUpdate(t *testing.T) {
	t.Run("default matcher", func(t *testing.T) {
		p := quietPlugin()
		tests := map[string]bool{
			"/app/preload.json":   true,
			"/app/preload.yaml":   true,
			"/app/preload.yml":    true,
			"/app/src/main.js":    false,
			"/app/preloader.json": false,
			"":                    false,
		}
		for file, want := range tests {
			if got := p.HandleHotUpdate(file); got != want {
				t.Errorf("HandleHotUpdate(%q) = %v, want %v", file, got, want)
			}
		}
	})

	t.Run("configured file", func(t *testing.T) {
		p := quietPlugin(WithConfigFile("/app/config/preload.json"))
		if !p.HandleHotUpdate("/app/config/../config/preload.json") {
			t.Error("configured file not matched")
		}
		if p.HandleHotUpdate("/other/preload.json") {
			t.Error("other preload.json should not match a configured file")
		}
	})
}

func TestPlugin_ConcurrentHooks(t *testing.T) {
	p := quietPlugin()
	p.ConfigResolved(Options{Routes: []RouteSpec{Shorthand("/a"), Shorthand("/b")}}, ModeProduction)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.Load(ResolvedVirtualModuleID)
				p.TransformIndexHTML("<head></head>")
			}
		}()
		go func(i int) {
			defer wg.Done()
			p.ConfigResolved(Options{Routes: []RouteSpec{Shorthand("/c")}, Delay: Int(i)}, ModeProduction)
		}(i)
	}
	wg.Wait()

	if _, ok := p.Generator(); !ok {
		t.Error("generator missing after concurrent hooks")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/preload/pkg/preload"
)

func TestApplyOverrides(t *testing.T) {
	cfg := New()
	cfg.Preload.Routes = []preload.RouteSpec{preload.Shorthand("/a")}
	cfg.Preload.ShowStatus = preload.Bool(true)
	cfg.Preload.Delay = preload.Int(500)
	cfg.Publish.Bucket = "from-file"
	cfg.Publish.PathStyle = preload.Bool(true)

	err := cfg.ApplyOverrides(Overrides{
		Views: "web/views",
		Preload: preload.Options{
			ShowStatus: preload.Bool(false),
		},
		Dev:     DevConfig{Port: 4000},
		Build:   BuildConfig{Hash: preload.Bool(false)},
		Publish: PublishConfig{PathStyle: preload.Bool(false)},
	})
	if err != nil {
		t.Fatalf("ApplyOverrides error: %v", err)
	}

	if cfg.Preload.ShowStatus == nil || *cfg.Preload.ShowStatus {
		t.Error("explicit false should override true")
	}
	if cfg.Preload.Delay == nil || *cfg.Preload.Delay != 500 {
		t.Errorf("delay = %v, want untouched 500", cfg.Preload.Delay)
	}
	if len(cfg.Preload.Routes) != 1 {
		t.Errorf("routes = %v, nil override should keep them", cfg.Preload.Routes)
	}
	if cfg.Dev.Port != 4000 {
		t.Errorf("Dev.Port = %d, want 4000", cfg.Dev.Port)
	}
	if cfg.Dev.Host != DefaultHost {
		t.Errorf("Dev.Host = %q, empty override should keep it", cfg.Dev.Host)
	}
	if cfg.HashEnabled() {
		t.Error("build hash should be disabled")
	}
	if cfg.Publish.PathStyleEnabled() {
		t.Error("explicit pathStyle false should override true from the file")
	}
	if cfg.Publish.Bucket != "from-file" {
		t.Errorf("Publish.Bucket = %q", cfg.Publish.Bucket)
	}
	if cfg.Views != "web/views" {
		t.Errorf("Views = %q", cfg.Views)
	}
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		env      string
		dotenv   string
		fileMode string
		want     preload.Mode
		wantErr  bool
	}{
		{name: "fallback", want: preload.ModeDevelopment},
		{name: "file", fileMode: "production", want: preload.ModeProduction},
		{name: "dotenv over file", dotenv: "PRELOAD_MODE=production\n", fileMode: "development", want: preload.ModeProduction},
		{name: "env over dotenv", env: "dev", dotenv: "PRELOAD_MODE=production\n", want: preload.ModeDevelopment},
		{name: "flag over env", flag: "prod", env: "development", want: preload.ModeProduction},
		{name: "bad flag", flag: "staging", wantErr: true},
		{name: "bad env", env: "staging", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.env != "" {
				t.Setenv(EnvMode, tt.env)
			} else {
				unsetEnv(t, EnvMode)
			}
			if tt.dotenv != "" {
				writeFile(t, filepath.Join(tmpDir, ".env"), tt.dotenv)
			}

			cfg := New()
			cfg.Mode = tt.fileMode
			if err := cfg.SaveTo(filepath.Join(tmpDir, ConfigFileName)); err != nil {
				t.Fatal(err)
			}

			got, err := cfg.ResolveMode(tt.flag, preload.ModeDevelopment)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ResolveMode() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveMode error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveMode_DotenvEdited(t *testing.T) {
	unsetEnv(t, EnvMode)
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")

	cfg := New()
	if err := cfg.SaveTo(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	writeFile(t, envPath, "PRELOAD_MODE=production\n")
	first, err := cfg.ResolveMode("", preload.ModeDevelopment)
	if err != nil {
		t.Fatal(err)
	}
	if first != preload.ModeProduction {
		t.Fatalf("first ResolveMode() = %q, want production", first)
	}
	if _, set := os.LookupEnv(EnvMode); set {
		t.Error("ResolveMode should not export .env values into the environment")
	}

	writeFile(t, envPath, "PRELOAD_MODE=development\n")
	second, err := cfg.ResolveMode("", preload.ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if second != preload.ModeDevelopment {
		t.Errorf("ResolveMode() after .env edit = %q, want development", second)
	}

	os.Remove(envPath)
	third, err := cfg.ResolveMode("", preload.ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if third != preload.ModeProduction {
		t.Errorf("ResolveMode() after .env removal = %q, want fallback", third)
	}
}

func TestPreloadOptions_AutoDetect(t *testing.T) {
	tmpDir := t.TempDir()
	views := filepath.Join(tmpDir, DefaultViews)
	writeFile(t, filepath.Join(views, "index.vue"), "<template>home</template>")
	writeFile(t, filepath.Join(views, "dashboard", "index.vue"), "<template>dash</template>")
	writeFile(t, filepath.Join(views, "settings", "index.vue"), "<template>settings</template>")
	writeFile(t, filepath.Join(views, "admin", "users", "index.vue"), "<template>users</template>")

	writeFile(t, filepath.Join(tmpDir, ConfigFileName), `{
  "preload": {
    "routes": [{"path": "/settings", "priority": 1}],
    "autoDetect": {"exclude": ["/admin/**"]}
  }
}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := cfg.PreloadOptions()
	if err != nil {
		t.Fatalf("PreloadOptions error: %v", err)
	}

	var paths []string
	for _, r := range opts.Routes {
		paths = append(paths, r.Path)
	}
	want := []string{"/settings", "/dashboard"}
	if len(paths) != len(want) {
		t.Fatalf("routes = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("routes[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if opts.Routes[0].Kind != preload.RouteExplicit {
		t.Error("declared route should keep its explicit form")
	}
	if len(cfg.Preload.Routes) != 1 {
		t.Error("PreloadOptions must not modify the loaded config")
	}
}

func TestPreloadOptions_MissingViews(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	cfg.Preload.AutoDetect = &preload.AutoDetect{}
	if err := cfg.SaveTo(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	if _, err := cfg.PreloadOptions(); errorCode(err) != "E140" {
		t.Errorf("PreloadOptions on missing views = %v, want E140", err)
	}
}

func TestResolve(t *testing.T) {
	unsetEnv(t, EnvMode)
	tmpDir := t.TempDir()

	cfg := New()
	cfg.Preload.Routes = []preload.RouteSpec{preload.Shorthand("/a")}
	if err := cfg.SaveTo(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	resolved, err := cfg.Resolve("production", preload.ModeDevelopment)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Mode() != preload.ModeProduction {
		t.Errorf("Mode = %q", resolved.Mode())
	}
	if resolved.Options().Debug {
		t.Error("debug should default off in production")
	}

	cfg.Preload.Routes = nil
	if _, err := cfg.Resolve("", preload.ModeDevelopment); errorCode(err) != "E102" {
		t.Errorf("Resolve without routes = %v, want E102", err)
	}
}

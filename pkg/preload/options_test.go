package preload

import (
	"errors"
	"testing"
)

func TestNormalize_Defaults(t *testing.T) {
	cfg, err := Normalize(Options{Routes: []RouteSpec{Shorthand("/a")}}, ModeProduction)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	opts := cfg.Options()
	if opts.Delay != DefaultDelay {
		t.Errorf("Delay = %d, want %d", opts.Delay, DefaultDelay)
	}
	if !opts.ShowStatus {
		t.Error("ShowStatus should default to true")
	}
	if opts.StatusPosition != StatusBottomRight {
		t.Errorf("StatusPosition = %q, want %q", opts.StatusPosition, StatusBottomRight)
	}
	if opts.Debug {
		t.Error("Debug should default to false in production")
	}
	if opts.Inject != InjectScript {
		t.Errorf("Inject = %q, want %q", opts.Inject, InjectScript)
	}
	if cfg.Mode() != ModeProduction {
		t.Errorf("Mode = %q, want %q", cfg.Mode(), ModeProduction)
	}
}

func TestNormalize_DebugFollowsMode(t *testing.T) {
	tests := []struct {
		name  string
		debug *bool
		mode  Mode
		want  bool
	}{
		{"development default", nil, ModeDevelopment, true},
		{"production default", nil, ModeProduction, false},
		{"explicit false in development", Bool(false), ModeDevelopment, false},
		{"explicit true in production", Bool(true), ModeProduction, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Normalize(Options{Routes: []RouteSpec{}, Debug: tt.debug}, tt.mode)
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if got := cfg.Options().Debug; got != tt.want {
				t.Errorf("Debug = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_ExplicitZeroValuesKept(t *testing.T) {
	cfg, err := Normalize(Options{
		Routes:         []RouteSpec{},
		Delay:          Int(0),
		ShowStatus:     Bool(false),
		StatusPosition: Position(StatusTopLeft),
		Inject:         Inject(InjectElement),
	}, ModeDevelopment)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	opts := cfg.Options()
	if opts.Delay != 0 {
		t.Errorf("Delay = %d, want 0", opts.Delay)
	}
	if opts.ShowStatus {
		t.Error("ShowStatus: explicit false was overridden by the default")
	}
	if opts.StatusPosition != StatusTopLeft {
		t.Errorf("StatusPosition = %q, want %q", opts.StatusPosition, StatusTopLeft)
	}
	if opts.Inject != InjectElement {
		t.Errorf("Inject = %q, want %q", opts.Inject, InjectElement)
	}
}

func TestNormalize_NegativeDelayClamped(t *testing.T) {
	cfg, err := Normalize(Options{Routes: []RouteSpec{}, Delay: Int(-50)}, ModeProduction)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if cfg.Options().Delay != 0 {
		t.Errorf("Delay = %d, want 0", cfg.Options().Delay)
	}
}

func TestNormalize_UnknownPositionPassesThrough(t *testing.T) {
	cfg, err := Normalize(Options{Routes: []RouteSpec{}, StatusPosition: Position("middle")}, ModeProduction)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if cfg.Options().StatusPosition != "middle" {
		t.Errorf("StatusPosition = %q, want %q", cfg.Options().StatusPosition, "middle")
	}
}

func TestNormalize_MissingRoutes(t *testing.T) {
	_, err := Normalize(Options{}, ModeProduction)
	if !errors.Is(err, ErrMissingRoutes) {
		t.Fatalf("error = %v, want ErrMissingRoutes", err)
	}
}

func TestNormalize_EmptyRoutes(t *testing.T) {
	cfg, err := Normalize(Options{Routes: []RouteSpec{}}, ModeProduction)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(cfg.Routes()) != 0 {
		t.Errorf("Routes len = %d, want 0", len(cfg.Routes()))
	}
}

func TestNormalize_IsolatedFromInput(t *testing.T) {
	routes := []RouteSpec{Explicit("/a").WithPriority(1)}
	cfg, err := Normalize(Options{Routes: routes}, ModeProduction)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	*routes[0].Priority = 5
	routes[0].Path = "/changed"

	got := cfg.Routes()[0]
	if got.Path != "/a" || *got.Priority != 1 {
		t.Errorf("config changed with its input: %+v (priority %d)", got, *got.Priority)
	}

	// Mutating the returned copy must not leak back either.
	out := cfg.Routes()
	*out[0].Priority = 4
	if *cfg.Routes()[0].Priority != 1 {
		t.Error("Routes() returned shared memory")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
		ok    bool
	}{
		{"development", ModeDevelopment, true},
		{"DEV", ModeDevelopment, true},
		{"production", ModeProduction, true},
		{" prod ", ModeProduction, true},
		{"staging", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseMode(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStatusPosition_Valid(t *testing.T) {
	for _, p := range []StatusPosition{StatusTopLeft, StatusTopRight, StatusBottomLeft, StatusBottomRight} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if StatusPosition("center").Valid() {
		t.Error("center should not be valid")
	}
}

func TestOptions_Clone(t *testing.T) {
	orig := Options{
		Routes:     []RouteSpec{Explicit("/a").WithReason("x")},
		ShowStatus: Bool(true),
		AutoDetect: &AutoDetect{Exclude: []string{"/admin/**"}},
	}
	c := orig.Clone()

	*c.ShowStatus = false
	*c.Routes[0].Reason = "y"
	c.AutoDetect.Exclude[0] = "/other"

	if !*orig.ShowStatus {
		t.Error("ShowStatus shared between clone and original")
	}
	if *orig.Routes[0].Reason != "x" {
		t.Error("route reason shared between clone and original")
	}
	if orig.AutoDetect.Exclude[0] != "/admin/**" {
		t.Error("exclude list shared between clone and original")
	}
}

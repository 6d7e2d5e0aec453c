package preload

import (
	"errors"
	"slices"
	"strings"
)

// Defaults applied by Normalize when a field is absent.
const (
	DefaultDelay          = 2000
	DefaultShowStatus     = true
	DefaultStatusPosition = StatusBottomRight
	DefaultInject         = InjectScript
)

// ErrMissingRoutes is returned by Normalize when the route list is absent
// (nil). An empty, non-nil list is valid.
var ErrMissingRoutes = errors.New("preload: routes must be provided")

// StatusPosition is the screen corner of the status indicator.
type StatusPosition string

const (
	StatusTopLeft     StatusPosition = "top-left"
	StatusTopRight    StatusPosition = "top-right"
	StatusBottomLeft  StatusPosition = "bottom-left"
	StatusBottomRight StatusPosition = "bottom-right"
)

// Valid reports whether p is one of the four known corners.
func (p StatusPosition) Valid() bool {
	switch p {
	case StatusTopLeft, StatusTopRight, StatusBottomLeft, StatusBottomRight:
		return true
	}
	return false
}

// InjectMode selects the markup spliced into the HTML document.
type InjectMode string

const (
	// InjectScript inlines the runtime module in a <script type="module">
	// placed before </head>.
	InjectScript InjectMode = "script"

	// InjectElement places a <preloader-status> custom element right after
	// the application mount point. The runtime is expected to be imported
	// from the virtual module by the application itself.
	InjectElement InjectMode = "element"
)

// Valid reports whether m is a known inject mode.
func (m InjectMode) Valid() bool {
	return m == InjectScript || m == InjectElement
}

// Mode is the build environment mode supplied by the caller.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode parses a mode name. It accepts "development"/"dev" and
// "production"/"prod", case-insensitively.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return ModeDevelopment, true
	case "production", "prod":
		return ModeProduction, true
	}
	return "", false
}

// IsDevelopment reports whether m is the development mode.
func (m Mode) IsDevelopment() bool {
	return m == ModeDevelopment
}

// Options is the raw, user-supplied preload configuration.
//
// Only Routes is mandatory. A nil pointer means the field was not set, which
// is different from an explicit zero value: ShowStatus: Bool(false) disables
// the status indicator, a nil ShowStatus takes the default.
type Options struct {
	// Routes are the routes to prefetch, in order.
	Routes []RouteSpec `json:"routes" yaml:"routes"`

	// Delay is the time in milliseconds to wait after page load (default 2000).
	Delay *int `json:"delay,omitempty" yaml:"delay,omitempty"`

	// ShowStatus shows the status indicator (default true).
	ShowStatus *bool `json:"showStatus,omitempty" yaml:"showStatus,omitempty"`

	// StatusPosition is where the indicator is drawn (default bottom-right).
	StatusPosition *StatusPosition `json:"statusPosition,omitempty" yaml:"statusPosition,omitempty"`

	// Debug enables runtime logging (default: on in development mode).
	Debug *bool `json:"debug,omitempty" yaml:"debug,omitempty"`

	// Inject selects the HTML injection markup (default script).
	Inject *InjectMode `json:"inject,omitempty" yaml:"inject,omitempty"`

	// AutoDetect enables discovery of routes from the views directory.
	// It is applied by the host before Normalize; see DetectRoutes.
	AutoDetect *AutoDetect `json:"autoDetect,omitempty" yaml:"autoDetect,omitempty"`
}

// ResolvedOptions holds every option with defaults applied.
type ResolvedOptions struct {
	Delay          int
	ShowStatus     bool
	StatusPosition StatusPosition
	Debug          bool
	Inject         InjectMode
}

// Config is the normalized, immutable preload configuration.
type Config struct {
	options ResolvedOptions
	routes  []RouteSpec
	mode    Mode
}

// Options returns the resolved options.
func (c *Config) Options() ResolvedOptions {
	return c.options
}

// Routes returns a copy of the route list.
func (c *Config) Routes() []RouteSpec {
	return cloneRoutes(c.routes)
}

// Mode returns the mode the config was normalized for.
func (c *Config) Mode() Mode {
	return c.mode
}

// Normalize applies defaults to opts and returns the resolved configuration.
//
// Precedence per field: explicit value, then the mode default (Debug), then
// the static default. Path syntax and priority ranges are not validated.
// A negative Delay is clamped to zero.
func Normalize(opts Options, mode Mode) (*Config, error) {
	if opts.Routes == nil {
		return nil, ErrMissingRoutes
	}

	resolved := ResolvedOptions{
		Delay:          DefaultDelay,
		ShowStatus:     DefaultShowStatus,
		StatusPosition: DefaultStatusPosition,
		Debug:          mode.IsDevelopment(),
		Inject:         DefaultInject,
	}
	if opts.Delay != nil {
		resolved.Delay = max(*opts.Delay, 0)
	}
	if opts.ShowStatus != nil {
		resolved.ShowStatus = *opts.ShowStatus
	}
	if opts.StatusPosition != nil {
		resolved.StatusPosition = *opts.StatusPosition
	}
	if opts.Debug != nil {
		resolved.Debug = *opts.Debug
	}
	if opts.Inject != nil {
		resolved.Inject = *opts.Inject
	}

	return &Config{
		options: resolved,
		routes:  cloneRoutes(opts.Routes),
		mode:    mode,
	}, nil
}

func cloneRoutes(routes []RouteSpec) []RouteSpec {
	out := make([]RouteSpec, len(routes))
	for i, r := range routes {
		out[i] = r.clone()
	}
	return out
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Position returns a pointer to p.
func Position(p StatusPosition) *StatusPosition { return &p }

// Inject returns a pointer to m.
func Inject(m InjectMode) *InjectMode { return &m }

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	out := o
	if o.Routes != nil {
		out.Routes = cloneRoutes(o.Routes)
	}
	if o.Delay != nil {
		out.Delay = Int(*o.Delay)
	}
	if o.ShowStatus != nil {
		out.ShowStatus = Bool(*o.ShowStatus)
	}
	if o.StatusPosition != nil {
		out.StatusPosition = Position(*o.StatusPosition)
	}
	if o.Debug != nil {
		out.Debug = Bool(*o.Debug)
	}
	if o.Inject != nil {
		out.Inject = Inject(*o.Inject)
	}
	if o.AutoDetect != nil {
		ad := *o.AutoDetect
		ad.Exclude = slices.Clone(o.AutoDetect.Exclude)
		out.AutoDetect = &ad
	}
	return out
}

package preload

import (
	"encoding/json"
	"strings"

	"github.com/vango-dev/preload/pkg/routepath"
)

// Inference constants.
const (
	// RootAlias is the bundler alias for the views directory.
	RootAlias = "@/views"

	// IndexFile is the component file name inside a route directory, without suffix.
	IndexFile = "index"

	// ComponentSuffix is the component file extension.
	ComponentSuffix = ".vue"
)

// Reason sentinels used when a route does not state one.
const (
	ReasonAutoInferred   = "auto-inferred"
	ReasonUserConfigured = "user-configured"
)

// DefaultPriority is used for routes without an explicit priority.
// Lower values are loaded first.
const DefaultPriority = 2

// StatusElement is the custom element used by InjectElement.
const StatusElement = "<preloader-status></preloader-status>"

// Directive is one resolved prefetch instruction.
type Directive struct {
	Path          string
	ComponentPath string
	Reason        string
	Priority      int
}

// ImportExpression returns the lazy import expression for the directive's component.
func (d Directive) ImportExpression() string {
	return ImportExpression(d.ComponentPath)
}

// ImportExpression wraps a module path in a dynamic import arrow function:
//
//	() => import('@/views/a/index.vue')
func ImportExpression(modulePath string) string {
	return "() => import('" + jsQuoteEscaper.Replace(modulePath) + "')"
}

var jsQuoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
)

// InferComponentPath maps a route path to its component module path.
// One leading separator is stripped and the segments are nested under
// RootAlias:
//
//	InferComponentPath("/demo/13-calendar") == "@/views/demo/13-calendar/index.vue"
func InferComponentPath(path string) string {
	segments := routepath.Segments(path)
	return RootAlias + routepath.Separator + routepath.Join(segments) +
		routepath.Separator + IndexFile + ComponentSuffix
}

// ExpandRoute resolves a route spec into a directive. It never fails; an
// empty or malformed path still yields a directive.
func ExpandRoute(spec RouteSpec) Directive {
	if spec.Kind == RouteShorthand {
		return Directive{
			Path:          spec.Path,
			ComponentPath: InferComponentPath(spec.Path),
			Reason:        ReasonAutoInferred,
			Priority:      DefaultPriority,
		}
	}

	d := Directive{
		Path:          spec.Path,
		ComponentPath: InferComponentPath(spec.Path),
		Reason:        ReasonUserConfigured,
		Priority:      DefaultPriority,
	}
	if spec.ComponentPath != nil && *spec.ComponentPath != "" {
		d.ComponentPath = *spec.ComponentPath
	}
	if spec.Reason != nil {
		d.Reason = *spec.Reason
	}
	if spec.Priority != nil {
		d.Priority = *spec.Priority
	}
	return d
}

// directiveRecord is the serialized form embedded in the runtime module.
// Component is the display form; Module is the plain specifier the runtime
// imports.
type directiveRecord struct {
	Path      string `json:"path"`
	Component string `json:"component"`
	Module    string `json:"module"`
	Reason    string `json:"reason"`
	Priority  int    `json:"priority"`
}

// optionsRecord is the serialized form of ResolvedOptions.
type optionsRecord struct {
	Delay          int            `json:"delay"`
	ShowStatus     bool           `json:"showStatus"`
	StatusPosition StatusPosition `json:"statusPosition"`
	Debug          bool           `json:"debug"`
}

// Generator renders preload artifacts from a Config.
type Generator struct {
	config     *Config
	directives []Directive
}

// NewGenerator expands the configured routes and returns a generator.
func NewGenerator(cfg *Config) *Generator {
	directives := make([]Directive, len(cfg.routes))
	for i, r := range cfg.routes {
		directives[i] = ExpandRoute(r)
	}
	return &Generator{
		config:     cfg,
		directives: directives,
	}
}

// Config returns the configuration the generator was built from.
func (g *Generator) Config() *Config {
	return g.config
}

// Directives returns the expanded directives in route order.
func (g *Generator) Directives() []Directive {
	out := make([]Directive, len(g.directives))
	copy(out, g.directives)
	return out
}

// RenderRuntimeModule returns the runtime module source with the directives
// and options embedded as JSON. The output is identical for every call.
func (g *Generator) RenderRuntimeModule() string {
	records := make([]directiveRecord, len(g.directives))
	for i, d := range g.directives {
		records[i] = directiveRecord{
			Path:      d.Path,
			Component: d.ImportExpression(),
			Module:    d.ComponentPath,
			Reason:    d.Reason,
			Priority:  d.Priority,
		}
	}

	opts := g.config.options
	r := strings.NewReplacer(
		routesPlaceholder, mustIndent(records),
		optionsPlaceholder, mustIndent(optionsRecord{
			Delay:          opts.Delay,
			ShowStatus:     opts.ShowStatus,
			StatusPosition: opts.StatusPosition,
			Debug:          opts.Debug,
		}),
	)
	return r.Replace(runtimeTemplate)
}

// RenderHTMLInjection returns the markup to splice into the HTML document,
// or "" when the status indicator is disabled.
func (g *Generator) RenderHTMLInjection() string {
	opts := g.config.options
	if !opts.ShowStatus {
		return ""
	}
	if opts.Inject == InjectElement {
		return StatusElement
	}
	return "<script type=\"module\">\n" + g.RenderRuntimeModule() + "</script>"
}

// TransformHTML splices the injection fragment into an HTML document.
//
// Script injection goes immediately before the first </head>, falling back
// to </body> and then to the end of the document. Element injection goes
// right after <div id="app">; without that anchor the document is returned
// unchanged.
func (g *Generator) TransformHTML(html string) string {
	fragment := g.RenderHTMLInjection()
	if fragment == "" {
		return html
	}

	if g.config.options.Inject == InjectElement {
		const anchor = `<div id="app">`
		idx := strings.Index(html, anchor)
		if idx == -1 {
			return html
		}
		idx += len(anchor)
		return html[:idx] + "\n    " + fragment + html[idx:]
	}

	if idx := strings.Index(html, "</head>"); idx != -1 {
		return html[:idx] + fragment + "\n" + html[idx:]
	}
	if idx := strings.LastIndex(html, "</body>"); idx != -1 {
		return html[:idx] + fragment + "\n" + html[idx:]
	}
	return html + fragment
}

// mustIndent marshals v with two-space indentation. The record types contain
// only strings, ints and bools, so marshaling cannot fail.
func mustIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic("preload: marshal runtime record: " + err.Error())
	}
	return string(data)
}

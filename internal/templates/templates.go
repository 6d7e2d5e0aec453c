package templates

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// Routes are the starter routes. Empty writes an empty list.
	Routes []string

	// Views is the views directory.
	Views string

	// Upstream is the application dev server proxied by 'preload dev'.
	Upstream string

	// HTML is the HTML entry rewritten by 'preload build'.
	HTML string

	// AutoDetect adds an autoDetect block so routes are discovered from
	// the views directory.
	AutoDetect bool
}

// withDefaults fills empty fields with the config package defaults.
func (c Config) withDefaults() Config {
	if c.Views == "" {
		c.Views = config.DefaultViews
	}
	if c.Upstream == "" {
		c.Upstream = config.DefaultUpstream
	}
	if c.HTML == "" {
		c.HTML = "index.html"
	}
	if c.Routes == nil {
		c.Routes = []string{}
	}
	return c
}

// Template represents a starter config template.
type Template struct {
	// Name is the template name, also the --format value.
	Name string

	// Description describes the template.
	Description string

	// FileName is the config file written by Create.
	FileName string

	// Body is the text/template source.
	Body string
}

// Available templates.
var templates = map[string]*Template{
	"json": jsonTemplate(),
	"yaml": yamlTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[strings.ToLower(name)]
	if !ok {
		return nil, errors.New("E150").
			WithDetail("Unknown config format '" + name + "'").
			WithSuggestion("Available formats: " + strings.Join(List(), ", "))
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcs = template.FuncMap{
	// quote renders s as a double quoted string, valid in JSON and YAML.
	"quote": func(s string) (string, error) {
		b, err := json.Marshal(s)
		return string(b), err
	},
}

// Render executes the template.
func (t *Template) Render(cfg Config) ([]byte, error) {
	tmpl, err := template.New(t.Name).Funcs(funcs).Parse(t.Body)
	if err != nil {
		return nil, errors.Newf(errors.CategoryCLI, "invalid template %s: %v", t.Name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg.withDefaults()); err != nil {
		return nil, errors.Newf(errors.CategoryCLI, "template execute error %s: %v", t.Name, err)
	}
	return buf.Bytes(), nil
}

// Create writes the starter config into dir and returns its path. It
// refuses to overwrite an existing config unless force is set.
func (t *Template) Create(dir string, cfg Config, force bool) (string, error) {
	if existing, ok := config.Exists(dir); ok && !force {
		return "", errors.New("E103").
			WithDetail(filepath.Base(existing) + " already exists").
			WithSuggestion("Use --force to overwrite it")
	}

	data, err := t.Render(cfg)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, t.FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.New("E103").Wrap(err)
	}
	return path, nil
}

// jsonTemplate returns the preload.json template.
func jsonTemplate() *Template {
	return &Template{
		Name:        "json",
		Description: "preload.json",
		FileName:    "preload.json",
		Body: `{
  "preload": {
    "routes": [{{range $i, $r := .Routes}}{{if $i}}, {{end}}{{quote $r}}{{end}}],
    "delay": 2000,
    "showStatus": true,
    "statusPosition": "bottom-right"{{if .AutoDetect}},
    "autoDetect": {
      "exclude": []
    }{{end}}
  },
  "views": {{quote .Views}},
  "dev": {
    "upstream": {{quote .Upstream}}
  },
  "build": {
    "output": "dist",
    "html": {{quote .HTML}}
  }
}
`,
	}
}

// yamlTemplate returns the preload.yaml template.
func yamlTemplate() *Template {
	return &Template{
		Name:        "yaml",
		Description: "preload.yaml",
		FileName:    "preload.yaml",
		Body: `preload:
  routes:{{if not .Routes}} []{{end}}
{{- range .Routes}}
    - {{quote .}}
{{- end}}
  delay: 2000
  showStatus: true
  statusPosition: bottom-right
{{- if .AutoDetect}}
  autoDetect:
    exclude: []
{{- end}}

views: {{quote .Views}}

dev:
  upstream: {{quote .Upstream}}

build:
  output: dist
  html: {{quote .HTML}}
`,
	}
}

package config

import (
	"encoding/json"
	stderrors "errors"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"

	"github.com/vango-dev/preload/internal/errors"
	"github.com/vango-dev/preload/pkg/preload"
)

const (
	// ConfigFileName is the default name of the configuration file.
	ConfigFileName = "preload.json"

	// DefaultPort is the default development server port.
	DefaultPort = 5173

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultUpstream is the application server the dev server proxies to.
	DefaultUpstream = "http://localhost:3000"

	// DefaultViews is the default views directory.
	DefaultViews = "src/views"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultCacheSize is the default number of transformed HTML documents
	// kept by the dev server.
	DefaultCacheSize = 128

	// DefaultPublishPrefix is the default object key prefix for published
	// artifacts.
	DefaultPublishPrefix = "preload/"

	// DefaultRegion is the default publish region.
	DefaultRegion = "us-east-1"
)

// ConfigFileNames lists the recognized configuration files in lookup order.
var ConfigFileNames = []string{"preload.json", "preload.yaml", "preload.yml"}

// Config represents the complete preload configuration file.
type Config struct {
	// Preload contains the plugin options.
	Preload preload.Options `json:"preload" yaml:"preload"`

	// Mode is the project default mode ("development" or "production").
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Views is the views directory scanned by auto-detection.
	Views string `json:"views,omitempty" yaml:"views,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Build contains build configuration.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Publish contains artifact upload configuration.
	Publish PublishConfig `json:"publish,omitempty" yaml:"publish,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Upstream is the application server that requests are proxied to.
	Upstream string `json:"upstream,omitempty" yaml:"upstream,omitempty"`

	// HotReload reloads connected browsers when the config changes.
	HotReload *bool `json:"hotReload,omitempty" yaml:"hotReload,omitempty"`

	// Watch contains extra paths to watch for changes.
	Watch []string `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Ignore contains glob patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// CacheSize is the number of transformed HTML documents to cache.
	CacheSize int `json:"cacheSize,omitempty" yaml:"cacheSize,omitempty"`
}

// BuildConfig contains build settings.
type BuildConfig struct {
	// Output is the output directory for builds.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// HTML is the HTML entry rewritten with the injection. Empty skips it.
	HTML string `json:"html,omitempty" yaml:"html,omitempty"`

	// Hash adds a content hash to the runtime file name (default true).
	Hash *bool `json:"hash,omitempty" yaml:"hash,omitempty"`
}

// PublishConfig contains object storage settings.
type PublishConfig struct {
	// Bucket is the destination bucket.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the bucket region.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the service endpoint for S3 compatible stores.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// PathStyle forces path style addressing (default false).
	PathStyle *bool `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	hotReload, hash := true, true
	return &Config{
		Preload: preload.Options{
			Routes: []preload.RouteSpec{},
		},
		Views: DefaultViews,
		Dev: DevConfig{
			Port:      DefaultPort,
			Host:      DefaultHost,
			Upstream:  DefaultUpstream,
			HotReload: &hotReload,
			CacheSize: DefaultCacheSize,
		},
		Build: BuildConfig{
			Output: DefaultOutput,
			HTML:   "index.html",
			Hash:   &hash,
		},
		Publish: PublishConfig{
			Prefix: DefaultPublishPrefix,
			Region: DefaultRegion,
		},
	}
}

// Load reads configuration from the specified directory.
// It uses the first of ConfigFileNames present in the directory.
func Load(dir string) (*Config, error) {
	path, ok := Exists(dir)
	if !ok {
		return nil, errors.New("E100").
			WithDetail("No preload.json or preload.yaml found in " + dir).
			WithSuggestion("Run 'preload init' to create one")
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No config file at " + path).
				WithSuggestion("Run 'preload init' to create one")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			e := errors.New("E101").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that " + filepath.Base(path) + " is valid YAML")
			if line := yamlErrorLine(err); line > 0 {
				e.WithLocation(path, line, 0)
			}
			return nil, e
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			e := errors.New("E101").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
			if offset, ok := jsonErrorOffset(err); ok {
				line, col := lineColumn(data, offset)
				e.WithLocation(path, line, col)
			}
			return nil, e
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func jsonErrorOffset(err error) (int64, bool) {
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return syntaxErr.Offset, true
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return typeErr.Offset, true
	}
	return 0, false
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func yamlErrorLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// path has a YAML extension.
func (c *Config) SaveTo(path string) error {
	data, err := c.Marshal(isYAML(path))
	if err != nil {
		return errors.New("E103").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E103").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Marshal encodes the configuration as indented JSON or YAML.
func (c *Config) Marshal(asYAML bool) ([]byte, error) {
	if asYAML {
		return yaml.Marshal(c)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Views == "" {
		c.Views = DefaultViews
	}

	// Dev
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Upstream == "" {
		c.Dev.Upstream = DefaultUpstream
	}
	if c.Dev.HotReload == nil {
		c.Dev.HotReload = preload.Bool(true)
	}
	if c.Dev.CacheSize <= 0 {
		c.Dev.CacheSize = DefaultCacheSize
	}

	// Build
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.Hash == nil {
		c.Build.Hash = preload.Bool(true)
	}

	// Publish
	if c.Publish.Prefix == "" {
		c.Publish.Prefix = DefaultPublishPrefix
	}
	if c.Publish.Region == "" {
		c.Publish.Region = DefaultRegion
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E102").
			WithDetail("dev.port must be between 0 and 65535")
	}
	if c.Mode != "" {
		if _, ok := preload.ParseMode(c.Mode); !ok {
			return errors.New("E102").
				WithDetail("mode must be \"development\" or \"production\", got " + strconv.Quote(c.Mode))
		}
	}
	if p := c.Preload.StatusPosition; p != nil && !p.Valid() {
		return errors.New("E102").
			WithDetail("preload.statusPosition must be one of top-left, top-right, bottom-left, bottom-right, got " + strconv.Quote(string(*p))).
			WithSuggestion("Use \"" + string(preload.DefaultStatusPosition) + "\"")
	}
	if m := c.Preload.Inject; m != nil && !m.Valid() {
		return errors.New("E102").
			WithDetail("preload.inject must be \"script\" or \"element\", got " + strconv.Quote(string(*m)))
	}
	if ad := c.Preload.AutoDetect; ad != nil && ad.MinSize != "" {
		if _, err := humanize.ParseBytes(ad.MinSize); err != nil {
			return errors.New("E102").
				WithDetail("preload.autoDetect.minSize is not a size: " + strconv.Quote(ad.MinSize)).
				WithSuggestion("Use a size such as \"20 kB\"")
		}
	}
	if c.Dev.Upstream != "" {
		if _, err := c.UpstreamURL(); err != nil {
			return err
		}
	}
	return nil
}

// UpstreamURL parses dev.upstream, which must be an absolute http or https
// URL with a host.
func (c *Config) UpstreamURL() (*url.URL, error) {
	u, err := url.Parse(c.Dev.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		e := errors.New("E131").
			WithDetail("dev.upstream must be an http or https URL, got " + strconv.Quote(c.Dev.Upstream)).
			WithSuggestion("Use a URL such as " + DefaultUpstream)
		if err != nil {
			e.Wrap(err)
		}
		return nil, e
	}
	return u, nil
}

// HotReloadEnabled reports whether the dev server reloads browsers.
func (c *Config) HotReloadEnabled() bool {
	return c.Dev.HotReload == nil || *c.Dev.HotReload
}

// HashEnabled reports whether built runtime file names carry a hash.
func (c *Config) HashEnabled() bool {
	return c.Build.Hash == nil || *c.Build.Hash
}

// PathStyleEnabled reports whether S3 requests use path style addressing.
func (p PublishConfig) PathStyleEnabled() bool {
	return p.PathStyle != nil && *p.PathStyle
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// resolve makes path absolute relative to the config directory.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// ViewsPath returns the absolute path to the views directory.
func (c *Config) ViewsPath() string {
	if c.Views == "" {
		return c.resolve(DefaultViews)
	}
	return c.resolve(c.Views)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// HTMLPath returns the absolute path to the HTML entry, or "" when unset.
func (c *Config) HTMLPath() string {
	return c.resolve(c.Build.HTML)
}

// EnvPath returns the path of the project .env file.
func (c *Config) EnvPath() string {
	return c.resolve(".env")
}

// WatchPaths returns the files and directories the dev server watches:
// the config file, the .env file, the views directory when auto-detection
// is on, and any extra dev.watch entries.
func (c *Config) WatchPaths() []string {
	var paths []string
	if c.configPath != "" {
		paths = append(paths, c.configPath)
	}
	paths = append(paths, c.EnvPath())
	if c.Preload.AutoDetect != nil {
		paths = append(paths, c.ViewsPath())
	}
	for _, w := range c.Dev.Watch {
		paths = append(paths, c.resolve(w))
	}
	return paths
}

// Exists reports whether a config file exists in dir and returns its path.
func Exists(dir string) (string, bool) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if _, ok := Exists(dir); ok {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E100").
				WithDetail("No preload.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'preload init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

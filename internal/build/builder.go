package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/internal/errors"
	"github.com/vango-dev/preload/internal/telemetry"
	"github.com/vango-dev/preload/pkg/preload"
)

// ArtifactDir is the directory under the output path holding the preload
// artifacts.
const ArtifactDir = "preload"

// Logical artifact names.
const (
	ArtifactRuntime  = "runtime.js"
	ArtifactInject   = "inject.html"
	ArtifactManifest = "manifest.json"
)

// Artifact describes one written file.
type Artifact struct {
	// Path is the slash separated path relative to the output directory.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex encoded content hash.
	SHA256 string `json:"sha256"`

	// ContentType is the MIME type used when publishing.
	ContentType string `json:"contentType"`

	// Immutable is true when the file name carries the content hash.
	Immutable bool `json:"immutable"`
}

// Manifest lists the artifacts of a build.
type Manifest struct {
	Mode       preload.Mode        `json:"mode"`
	Directives int                 `json:"directives"`
	Artifacts  map[string]Artifact `json:"artifacts"`
}

// Result contains the build output.
type Result struct {
	// Duration is how long the build took.
	Duration time.Duration

	// OutputDir is the absolute build output directory.
	OutputDir string

	// Manifest describes the written artifacts.
	Manifest Manifest

	// ManifestPath is the path of the written manifest.
	ManifestPath string
}

// Options configures the builder.
type Options struct {
	// Mode is the --mode flag value. Empty defers to ResolveMode with a
	// production fallback.
	Mode string

	// Clean removes the output directory before building.
	Clean bool

	// Metrics records render metrics. May be nil.
	Metrics *telemetry.Metrics

	// OnProgress is called with progress updates.
	OnProgress func(step string)
}

// Builder writes production artifacts.
type Builder struct {
	config  *config.Config
	options Options
	plugin  *telemetry.Instrumented
}

// New creates a new builder.
func New(cfg *config.Config, options Options) *Builder {
	plugin := preload.NewPlugin(preload.WithConfigFile(cfg.Path()))
	return &Builder{
		config:  cfg,
		options: options,
		plugin:  telemetry.Instrument(plugin, options.Metrics),
	}
}

// Build performs a production build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()

	b.progress("Resolving configuration...")
	mode, err := b.config.ResolveMode(b.options.Mode, preload.ModeProduction)
	if err != nil {
		return nil, err
	}
	opts, err := b.config.PreloadOptions()
	if err != nil {
		return nil, err
	}
	if err := b.plugin.ConfigResolved(ctx, opts, mode); err != nil {
		if stderrors.Is(err, preload.ErrMissingRoutes) {
			return nil, errors.New("E102").
				WithDetail("preload.routes is required").
				WithSuggestion("Add a routes list or enable preload.autoDetect").
				Wrap(err)
		}
		return nil, err
	}
	gen, _ := b.plugin.Plugin().Generator()

	outputDir := b.config.OutputPath()
	if b.options.Clean {
		b.progress("Cleaning output directory...")
		if err := os.RemoveAll(outputDir); err != nil {
			return nil, errors.New("E110").Wrap(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(outputDir, ArtifactDir), 0755); err != nil {
		return nil, errors.New("E110").Wrap(err)
	}

	manifest := Manifest{
		Mode:       mode,
		Directives: len(gen.Directives()),
		Artifacts:  make(map[string]Artifact),
	}

	b.progress("Writing runtime module...")
	code, _, err := b.plugin.Load(ctx, preload.ResolvedVirtualModuleID)
	if err != nil {
		return nil, errors.New("E110").Wrap(err)
	}
	runtime, err := b.writeArtifact(outputDir, path.Join(ArtifactDir, ArtifactRuntime), []byte(code), b.config.HashEnabled())
	if err != nil {
		return nil, err
	}
	manifest.Artifacts[ArtifactRuntime] = runtime

	fragment, err := b.plugin.RenderHTMLInjection(ctx)
	if err != nil {
		return nil, errors.New("E110").Wrap(err)
	}
	if fragment != "" {
		b.progress("Writing HTML fragment...")
		inject, err := b.writeArtifact(outputDir, path.Join(ArtifactDir, ArtifactInject), []byte(fragment), false)
		if err != nil {
			return nil, err
		}
		manifest.Artifacts[ArtifactInject] = inject
	}

	if entry := b.config.HTMLPath(); entry != "" {
		b.progress("Rewriting " + filepath.Base(entry) + "...")
		src, err := os.ReadFile(entry)
		if err != nil {
			return nil, errors.New("E111").
				WithDetail("Cannot read " + entry).
				WithSuggestion("Set build.html to your index.html, or to \"\" to skip rewriting").
				Wrap(err)
		}
		html := b.plugin.TransformIndexHTML(ctx, string(src))
		name := filepath.Base(entry)
		page, err := b.writeArtifact(outputDir, name, []byte(html), false)
		if err != nil {
			return nil, err
		}
		manifest.Artifacts[name] = page
	}

	b.progress("Writing manifest...")
	manifestPath, err := b.writeManifest(outputDir, manifest)
	if err != nil {
		return nil, err
	}

	return &Result{
		Duration:     time.Since(start),
		OutputDir:    outputDir,
		Manifest:     manifest,
		ManifestPath: manifestPath,
	}, nil
}

// writeArtifact writes data under outputDir at rel, inserting the first
// eight hex digits of its hash before the extension when hashed is set.
func (b *Builder) writeArtifact(outputDir, rel string, data []byte, hashed bool) (Artifact, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if hashed {
		rel = hashedName(rel, hash)
	}

	dest := filepath.Join(outputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Artifact{}, errors.New("E110").Wrap(err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return Artifact{}, errors.New("E110").WithDetail("Cannot write " + dest).Wrap(err)
	}

	return Artifact{
		Path:        rel,
		Size:        int64(len(data)),
		SHA256:      hash,
		ContentType: contentType(rel),
		Immutable:   hashed,
	}, nil
}

// hashedName turns "preload/runtime.js" into "preload/runtime.<hash8>.js".
func hashedName(rel, hash string) string {
	ext := path.Ext(rel)
	return fmt.Sprintf("%s.%s%s", strings.TrimSuffix(rel, ext), hash[:8], ext)
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// writeManifest writes the artifact manifest.
func (b *Builder) writeManifest(outputDir string, manifest Manifest) (string, error) {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", errors.New("E110").Wrap(err)
	}
	data = append(data, '\n')

	manifestPath := filepath.Join(outputDir, ArtifactDir, ArtifactManifest)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return "", errors.New("E110").Wrap(err)
	}
	return manifestPath, nil
}

// ReadManifest loads the manifest written by a previous build.
func ReadManifest(outputDir string) (*Manifest, error) {
	manifestPath := filepath.Join(outputDir, ArtifactDir, ArtifactManifest)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No manifest at " + manifestPath).
				WithSuggestion("Run 'preload build' first")
		}
		return nil, errors.New("E121").Wrap(err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New("E121").WithDetail("Corrupt manifest " + manifestPath).Wrap(err)
	}
	return &m, nil
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// Clean removes the build output directory.
func (b *Builder) Clean() error {
	return os.RemoveAll(b.config.OutputPath())
}

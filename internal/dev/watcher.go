package dev

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/vango-dev/preload/pkg/preload"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeConfig ChangeType = iota
	ChangeEnv
	ChangeView
	ChangeAsset
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case ChangeConfig:
		return "config"
	case ChangeEnv:
		return "env"
	case ChangeView:
		return "view"
	default:
		return "asset"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the files and directories to watch.
	Paths []string

	// Ignore patterns to skip. A pattern without a slash matches a path
	// segment or the base name; a pattern with a slash matches the whole
	// slash separated path.
	Ignore []string

	// Debounce is the polling interval.
	Debounce time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	"*.tmp",
	"*.swp",
	"*~",
}

// ignorePattern is a compiled ignore entry.
type ignorePattern struct {
	raw      string
	matcher  glob.Glob
	fullPath bool
}

// Watcher polls files for changes.
type Watcher struct {
	config      WatcherConfig
	ignore      []ignorePattern
	onChange    func(Change)
	mu          sync.Mutex
	running     bool
	initialized bool
	stopCh      chan struct{}
	timestamps  map[string]time.Time
}

// NewWatcher creates a new file watcher. Invalid ignore globs are treated
// as literal names.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}

	return &Watcher{
		config:     config,
		ignore:     compileIgnore(config.Ignore),
		timestamps: make(map[string]time.Time),
	}
}

func compileIgnore(patterns []string) []ignorePattern {
	out := make([]ignorePattern, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		p := ignorePattern{raw: pattern, fullPath: strings.Contains(pattern, "/")}
		if strings.ContainsAny(pattern, "*?[{") {
			if p.fullPath {
				p.matcher, _ = glob.Compile(pattern, '/')
			} else {
				p.matcher, _ = glob.Compile(pattern)
			}
		}
		out = append(out, p)
	}
	return out
}

// OnChange sets the callback for file changes.
func (w *Watcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	w.scanInitial()

	ticker := time.NewTicker(w.config.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// SetPaths replaces the watched roots and ignore patterns. Files already
// present under the new roots are recorded without being reported, and
// files that are no longer watched are forgotten.
func (w *Watcher) SetPaths(paths, ignore []string) {
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}

	w.mu.Lock()
	w.config.Paths = append([]string(nil), paths...)
	w.config.Ignore = ignore
	w.ignore = compileIgnore(ignore)
	w.mu.Unlock()

	seen := make(map[string]time.Time)
	w.walk(func(p string, info os.FileInfo) {
		seen[p] = info.ModTime()
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.timestamps {
		if _, ok := seen[p]; !ok {
			delete(w.timestamps, p)
		}
	}
	for p, mod := range seen {
		if _, ok := w.timestamps[p]; !ok {
			w.timestamps[p] = mod
		}
	}
}

// Paths returns the watched roots.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.config.Paths...)
}

// walk calls fn for every watched file that is not ignored. Missing paths
// are skipped so a .env file may appear later.
func (w *Watcher) walk(fn func(path string, info os.FileInfo)) {
	w.mu.Lock()
	roots := w.config.Paths
	ignore := w.ignore
	w.mu.Unlock()

	for _, root := range roots {
		filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if p != root && matchIgnore(ignore, p) {
					return filepath.SkipDir
				}
				return nil
			}
			if !matchIgnore(ignore, p) {
				fn(p, info)
			}
			return nil
		})
	}
}

// scanInitial builds the initial timestamp map.
func (w *Watcher) scanInitial() {
	w.walk(func(p string, info os.FileInfo) {
		w.mu.Lock()
		w.timestamps[p] = info.ModTime()
		w.mu.Unlock()
	})

	w.mu.Lock()
	w.initialized = true
	w.mu.Unlock()
}

// checkForChanges scans for modified, new and deleted files.
func (w *Watcher) checkForChanges() {
	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()

	if callback == nil {
		return
	}

	var changes []Change

	w.walk(func(p string, info os.FileInfo) {
		w.mu.Lock()
		defer w.mu.Unlock()

		lastMod, exists := w.timestamps[p]
		modTime := info.ModTime()
		if !exists || modTime.After(lastMod) {
			w.timestamps[p] = modTime
			if exists || w.initialized {
				changes = append(changes, Change{Path: p, Type: classifyChange(p)})
			}
		}
	})

	w.mu.Lock()
	for p := range w.timestamps {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			delete(w.timestamps, p)
			changes = append(changes, Change{Path: p, Type: classifyChange(p)})
		}
	}
	w.mu.Unlock()

	// Report the first change of each type.
	reportedTypes := make(map[ChangeType]bool)
	for _, change := range changes {
		if !reportedTypes[change.Type] {
			reportedTypes[change.Type] = true
			callback(change)
		}
	}
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	w.mu.Lock()
	ignore := w.ignore
	w.mu.Unlock()
	return matchIgnore(ignore, fullPath)
}

func matchIgnore(patterns []ignorePattern, fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, p := range patterns {
		if p.matcher != nil {
			if p.fullPath {
				if p.matcher.Match(normalized) {
					return true
				}
			} else if p.matcher.Match(name) {
				return true
			}
			continue
		}

		if p.fullPath {
			if pathMatchesSegments(normalized, p.raw) {
				return true
			}
			continue
		}

		if pathHasSegment(normalized, p.raw) {
			return true
		}
	}

	return false
}

func pathHasSegment(path, segment string) bool {
	if segment == "" {
		return false
	}
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}

// classifyChange determines the type of change from the file name.
func classifyChange(path string) ChangeType {
	base := filepath.Base(path)
	switch {
	case preload.IsConfigFile(base):
		return ChangeConfig
	case base == ".env" || strings.HasPrefix(base, ".env."):
		return ChangeEnv
	case strings.EqualFold(filepath.Ext(base), preload.ComponentSuffix):
		return ChangeView
	default:
		return ChangeAsset
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

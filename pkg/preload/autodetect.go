package preload

import (
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"

	"github.com/vango-dev/preload/pkg/routepath"
)

// AutoDetect configures route discovery from the views directory.
type AutoDetect struct {
	// MinSize is the smallest component file worth prefetching, as a human
	// readable size ("20 kB", "1MiB"). Empty means no minimum.
	MinSize string `json:"minSize,omitempty" yaml:"minSize,omitempty"`

	// Exclude lists route path globs to skip ("/admin/**", "/demo/*").
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// DetectRoutes walks fsys, the views directory, for route components
// (IndexFile + ComponentSuffix) and returns a shorthand route for each one
// that passes the size and exclude filters, sorted by path. The top-level
// index component is skipped.
func DetectRoutes(fsys fs.FS, opts AutoDetect) ([]RouteSpec, error) {
	var minSize uint64
	if opts.MinSize != "" {
		n, err := humanize.ParseBytes(opts.MinSize)
		if err != nil {
			return nil, fmt.Errorf("preload: invalid autoDetect.minSize %q: %w", opts.MinSize, err)
		}
		minSize = n
	}

	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("preload: invalid autoDetect.exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	var routes []RouteSpec
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != IndexFile+ComponentSuffix {
			return nil
		}

		dir := path.Dir(p)
		if dir == "." {
			return nil
		}

		if minSize > 0 {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if uint64(info.Size()) < minSize {
				return nil
			}
		}

		route, err := routepath.FromComponentDir(dir)
		if err != nil {
			return nil
		}
		for _, g := range excludes {
			if g.Match(route) {
				return nil
			}
		}

		routes = append(routes, Shorthand(route))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Path < routes[j].Path
	})
	return routes, nil
}

// MergeDetected appends detected routes whose path is not already declared
// in user. User routes keep their position and settings.
func MergeDetected(user, detected []RouteSpec) []RouteSpec {
	seen := make(map[string]struct{}, len(user))
	merged := make([]RouteSpec, 0, len(user)+len(detected))
	for _, r := range user {
		seen[r.Path] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range detected {
		if _, ok := seen[r.Path]; ok {
			continue
		}
		seen[r.Path] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}

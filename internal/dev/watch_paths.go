package dev

import (
	"path/filepath"

	"github.com/vango-dev/preload/internal/config"
)

// CollectWatchPaths returns the deduplicated, cleaned watch paths for the
// project.
func CollectWatchPaths(cfg *config.Config) []string {
	paths := cfg.WatchPaths()

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}

	return unique
}

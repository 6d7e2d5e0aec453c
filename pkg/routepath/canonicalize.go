// Package routepath converts between route paths and view directory paths.
//
// Route paths use "/" as the separator regardless of the host OS. Functions
// here never touch the filesystem.
package routepath

import (
	"errors"
	"strings"
)

// Separator is the route path separator.
const Separator = "/"

// Canonicalization errors.
var (
	ErrBackslashInPath = errors.New("path contains backslash")
	ErrNullByteInPath  = errors.New("path contains null byte")
	ErrPathEscapesRoot = errors.New("path escapes root via ..")
)

// TrimLeadingSeparator removes at most one leading separator.
//
//	TrimLeadingSeparator("/demo")  == "demo"
//	TrimLeadingSeparator("//demo") == "/demo"
func TrimLeadingSeparator(path string) string {
	return strings.TrimPrefix(path, Separator)
}

// Segments strips one leading separator and splits the rest on the separator.
// Empty segments are kept so that Join(Segments(p)) reproduces the trimmed input.
func Segments(path string) []string {
	return strings.Split(TrimLeadingSeparator(path), Separator)
}

// Join joins segments with the separator.
func Join(segments []string) string {
	return strings.Join(segments, Separator)
}

// Canonicalize normalizes a route path:
//   - ensures a leading "/"
//   - collapses repeated slashes
//   - drops "." segments and resolves ".."
//   - removes a trailing slash (except for root)
//
// Backslashes, NUL bytes and ".." above root are rejected.
func Canonicalize(path string) (string, error) {
	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") {
		return "", ErrNullByteInPath
	}

	var result []string
	for _, seg := range strings.Split(path, Separator) {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return "", ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}

	return Separator + strings.Join(result, Separator), nil
}

// FromComponentDir converts a views-relative directory (as produced by
// io/fs walking, always slash separated) into a canonical route path.
//
//	FromComponentDir("demo/13-calendar") == "/demo/13-calendar"
//	FromComponentDir(".")                == "/"
func FromComponentDir(dir string) (string, error) {
	return Canonicalize(Separator + dir)
}

package framefile

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the frame files matching any of the glob patterns,
// sorted by GPS start. Patterns support ** for recursive matching.
// Relative patterns are taken from the working directory. Files whose names
// do not follow the naming convention are skipped.
func Discover(patterns ...string) ([]File, error) {
	seen := make(map[string]bool)
	var out []File
	for _, pattern := range patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(abs)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			name, err := ParseName(m)
			if err != nil {
				continue
			}
			seen[m] = true
			out = append(out, File{Path: m, Name: name})
		}
	}
	Sort(out)
	return out, nil
}

// Match reports whether path matches any of the glob patterns.
func Match(path string, patterns ...string) bool {
	for _, pattern := range patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			continue
		}
		if ok, _ := doublestar.PathMatch(abs, path); ok {
			return true
		}
	}
	return false
}

// staticPrefix returns the longest directory path before the first glob
// metacharacter of pattern.
func staticPrefix(pattern string) string {
	for i, c := range pattern {
		if c == '*' || c == '?' || c == '[' || c == '{' {
			return filepath.Dir(pattern[:i])
		}
	}
	return filepath.Dir(pattern)
}

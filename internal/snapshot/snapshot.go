package snapshot

import (
	"sort"
	"strings"
)

// Snapshot is an immutable point-in-time mapping of relative file path to
// content for one analysis run. Every value is non-empty after trimming.
type Snapshot map[string]string

// Len returns the number of files in the snapshot.
func (s Snapshot) Len() int {
	return len(s)
}

// Paths returns the file paths in sorted order. Iterating a Go map is
// randomized, so every consumer that needs determinism goes through here.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// sourceExtensions is the fixed allow-list of recognized source files.
var sourceExtensions = map[string]struct{}{
	".py":   {},
	".js":   {},
	".ts":   {},
	".java": {},
	".cpp":  {},
	".c":    {},
	".go":   {},
	".rs":   {},
	".php":  {},
}

// skipDirs are dependency and build directories excluded from the walk.
// Dot-directories are excluded separately.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"__pycache__":  {},
	"venv":         {},
	"env":          {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
}

func isSourceFile(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	_, ok := sourceExtensions[name[idx:]]
	return ok
}

func isSkippedDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := skipDirs[name]
	return ok
}

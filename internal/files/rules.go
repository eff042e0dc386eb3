// Package files decides which project files are worth indexing.
package files

import (
	"bytes"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

var indexable = map[string]bool{
	// Programming languages
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".py": true, ".rs": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".cc": true, ".hpp": true,
	".vim": true, ".lua": true, ".rb": true, ".php": true,

	// Configuration and documentation
	".md": true, ".yaml": true, ".yml": true, ".json": true, ".toml": true, ".txt": true,

	// Scripts
	".sh": true, ".bash": true, ".zsh": true, ".fish": true,
}

var ignoredDirs = map[string]bool{
	"node_modules":  true,
	".git":          true,
	".svn":          true,
	".hg":           true,
	"vendor":        true,
	"build":         true,
	"dist":          true,
	"out":           true,
	".next":         true,
	"target":        true,
	"__pycache__":   true,
	".pytest_cache": true,
	".vscode":       true,
	".idea":         true,
	".pacer":        true,
	"coverage":      true,
	".nyc_output":   true,
	"tmp":           true,
	"temp":          true,
}

// IsIndexable reports whether a file's extension is one we chunk and embed.
func IsIndexable(path string) bool {
	return indexable[strings.ToLower(filepath.Ext(path))]
}

// ShouldIgnore reports whether any path component is an ignored directory
// or the file itself is hidden.
func ShouldIgnore(path string) bool {
	for _, component := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if ignoredDirs[component] {
			return true
		}
	}

	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "."
}

// IsBinary checks for NUL bytes in the first 8KB.
func IsBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(8192, len(content))], 0) >= 0
}

// Discover walks root and returns indexable files as slash-separated paths
// relative to root, sorted.
func Discover(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !ShouldIgnore(rel) && IsIndexable(rel) {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Filter keeps only indexable, non-ignored paths.
func Filter(paths []string) []string {
	var result []string
	for _, path := range paths {
		if !ShouldIgnore(path) && IsIndexable(path) {
			result = append(result, path)
		}
	}
	return result
}

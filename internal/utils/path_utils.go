package utils

import (
	"path/filepath"

	"github.com/funvibe/infact/internal/config"
)

// ImportCandidates lists, in order, the paths an import of importPath made
// from a file in baseDir may refer to. Absolute paths are used as given;
// otherwise the import is tried relative to baseDir, then relative to the
// working directory, then relative to each of searchDirs.
func ImportCandidates(baseDir, importPath string, searchDirs []string) []string {
	if filepath.IsAbs(importPath) {
		return []string{filepath.Clean(importPath)}
	}
	var candidates []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}
	if baseDir != "" && baseDir != "." {
		add(filepath.Join(baseDir, importPath))
	}
	add(importPath)
	for _, dir := range searchDirs {
		add(filepath.Join(dir, importPath))
	}
	return candidates
}

// ExtractModuleName derives a display name from a file path.
// It takes the base filename and removes any recognized source extension.
func ExtractModuleName(path string) string {
	name := filepath.Base(path)
	for _, ext := range config.SourceFileExtensions {
		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

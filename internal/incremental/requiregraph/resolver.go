package requiregraph

import (
	"os"
	"path/filepath"
	"strings"
)

// PathResolver resolves `require` strings the way the Conduit toolchain
// lays out a project: a string starting with "./" or "../" is relative
// to the requiring file; anything else is looked up under each of
// Roots in turn (the prelude/stdlib search path). A path naming a
// directory expands to every .cdt file directly inside it.
type PathResolver struct {
	// Roots are searched, in order, for non-relative requires.
	Roots []string
}

// Find implements Resolver.
func (r *PathResolver) Find(importString, relativeTo string) ([]string, bool) {
	candidates := r.candidatePaths(importString, relativeTo)

	for _, c := range candidates {
		if paths, ok := expandPath(c); ok {
			return paths, true
		}
	}
	return nil, false
}

func (r *PathResolver) candidatePaths(importString, relativeTo string) []string {
	if strings.HasPrefix(importString, "./") || strings.HasPrefix(importString, "../") {
		base := "."
		if relativeTo != "" {
			base = filepath.Dir(relativeTo)
		}
		return []string{filepath.Join(base, importString)}
	}

	var out []string
	for _, root := range r.Roots {
		out = append(out, filepath.Join(root, importString))
	}
	// Also try the bare string as given (e.g. already-relative to cwd).
	out = append(out, importString)
	return out
}

// expandPath resolves a single candidate (with or without the .cdt
// suffix, and possibly a directory) to concrete files on disk.
func expandPath(candidate string) ([]string, bool) {
	tryPaths := []string{candidate}
	if filepath.Ext(candidate) == "" {
		tryPaths = append(tryPaths, candidate+".cdt")
	}

	for _, p := range tryPaths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			return []string{p}, true
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			continue
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".cdt" {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
		if len(files) > 0 {
			return files, true
		}
	}
	return nil, false
}

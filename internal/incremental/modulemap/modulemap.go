// Package modulemap tracks which generated-code module each source
// file belongs to, so a body-only change can skip regenerating (and
// recompiling) modules it never touches.
package modulemap

import "sync"

// Map is a bidirectional index between source files and the generated
// modules they contribute to. A single file may feed more than one
// module (for example a resource file that contributes to both a
// model module and a migration module).
type Map struct {
	mu            sync.RWMutex
	fileToModules map[string]map[string]struct{}
	moduleToFiles map[string]map[string]struct{}
}

// New creates an empty module-file map.
func New() *Map {
	return &Map{
		fileToModules: make(map[string]map[string]struct{}),
		moduleToFiles: make(map[string]map[string]struct{}),
	}
}

// Assign records that a file contributes to a module. Calling it again
// for the same pair is a no-op.
func (m *Map) Assign(file, module string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fileToModules[file]; !ok {
		m.fileToModules[file] = make(map[string]struct{})
	}
	m.fileToModules[file][module] = struct{}{}

	if _, ok := m.moduleToFiles[module]; !ok {
		m.moduleToFiles[module] = make(map[string]struct{})
	}
	m.moduleToFiles[module][file] = struct{}{}
}

// ClearFile drops every module association for a file, typically
// before re-assigning it following a recompile.
func (m *Map) ClearFile(file string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for module := range m.fileToModules[file] {
		delete(m.moduleToFiles[module], file)
		if len(m.moduleToFiles[module]) == 0 {
			delete(m.moduleToFiles, module)
		}
	}
	delete(m.fileToModules, file)
}

// ModulesForFile returns every module a file contributes to.
func (m *Map) ModulesForFile(file string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return keys(m.fileToModules[file])
}

// FilesForModule returns every file that contributes to a module.
func (m *Map) FilesForModule(module string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return keys(m.moduleToFiles[module])
}

// ModulesTouchedBy returns the union of modules contributed to by any
// file in the given set, which is exactly the set of modules a build
// must regenerate when those files have structurally changed.
func (m *Map) ModulesTouchedBy(files []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, f := range files {
		for mod := range m.fileToModules[f] {
			seen[mod] = struct{}{}
		}
	}
	return keys(seen)
}

// SkipModules returns every known module that is NOT touched by the
// given changed files: a body-only rebuild can leave these modules'
// generated output untouched on disk.
func (m *Map) SkipModules(changedFiles []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	touched := make(map[string]struct{})
	for _, f := range changedFiles {
		for mod := range m.fileToModules[f] {
			touched[mod] = struct{}{}
		}
	}

	var skip []string
	for mod := range m.moduleToFiles {
		if _, ok := touched[mod]; !ok {
			skip = append(skip, mod)
		}
	}
	return skip
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

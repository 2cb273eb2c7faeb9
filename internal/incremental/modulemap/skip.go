package modulemap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ArtifactName returns the stable on-disk file name for a module's
// cached object. Deriving it from a hash of the module identity rather
// than the identity itself keeps names filesystem-safe regardless of
// what characters a module name contains, and keeps them stable across
// runs so the skip decision can find last build's artefact.
func ArtifactName(module string) string {
	return fmt.Sprintf("%016x.o", xxhash.Sum64String(module))
}

// ArtifactPath joins a module's artefact name onto the artefact
// directory.
func ArtifactPath(dir, module string) string {
	return filepath.Join(dir, ArtifactName(module))
}

// SkipDecision is the outcome of asking whether one module's cached
// object can be reused instead of regenerated.
type SkipDecision struct {
	Module string
	Skip   bool
	// Reason is empty when Skip is true; otherwise it names the first
	// condition that forced a rebuild.
	Reason string
}

// Planner answers the per-module reuse question against last build's
// state. It is constructed once per build cycle from the loaded cache
// record and consulted by the code generator before each module is
// emitted.
type Planner struct {
	// Cached is the module-file map persisted by the previous build.
	// A nil map means no information is available and nothing can be
	// skipped.
	Cached map[string][]string
	// ArtifactDir holds the per-module cached objects.
	ArtifactDir string
	// FlagsChanged is true when the current build flags differ from the
	// cached record's; any difference disqualifies every module.
	FlagsChanged bool

	changed map[string]struct{}
}

// NewPlanner builds a planner for one cycle. changedFiles is the set of
// source paths the incremental cache reported as changed since the
// record was written.
func NewPlanner(cached map[string][]string, artifactDir string, flagsChanged bool, changedFiles []string) *Planner {
	changed := make(map[string]struct{}, len(changedFiles))
	for _, f := range changedFiles {
		changed[f] = struct{}{}
	}
	return &Planner{
		Cached:       cached,
		ArtifactDir:  artifactDir,
		FlagsChanged: flagsChanged,
		changed:      changed,
	}
}

// Decide runs the reuse checks for a single module, in order: a module
// absent from the cached map, a changed contributing file, a missing or
// empty artefact, or a flag difference each force a rebuild. Only a
// module passing all four reuses its cached object.
func (p *Planner) Decide(module string) SkipDecision {
	d := SkipDecision{Module: module}

	files, ok := p.Cached[module]
	if !ok {
		d.Reason = "no cached file mapping"
		return d
	}

	for _, f := range files {
		if _, hit := p.changed[f]; hit {
			d.Reason = fmt.Sprintf("contributing file changed: %s", f)
			return d
		}
	}

	info, err := os.Stat(ArtifactPath(p.ArtifactDir, module))
	if err != nil || info.Size() == 0 {
		d.Reason = "cached object missing or empty"
		return d
	}

	if p.FlagsChanged {
		d.Reason = "build flags changed"
		return d
	}

	d.Skip = true
	return d
}

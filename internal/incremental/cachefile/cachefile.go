// Package cachefile persists the state of an incremental build to
// disk between invocations: the fingerprints seen last time, the
// signatures extracted last time, and the build identity that must
// match before any of it can be trusted.
package cachefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/conduit-lang/conduit/internal/incremental/fingerprint"
	"github.com/conduit-lang/conduit/internal/incremental/signature"
)

// CacheVersion is bumped whenever the on-disk record's shape changes
// in a way that makes older records unreadable.
const CacheVersion = 1

// Identity captures everything about the toolchain and invocation that
// a cached record must match exactly, or the whole cache is discarded
// rather than partially trusted.
type Identity struct {
	CompilerVersion string   `json:"compiler_version"`
	CodegenTarget   string   `json:"codegen_target"`
	Flags           []string `json:"flags"`
	PreludeIdentity string   `json:"prelude_identity"`
}

// NewIdentity builds an identity with flags copied and sorted into
// canonical order, so two invocations that differ only in flag order
// describe the same build configuration.
func NewIdentity(compilerVersion, codegenTarget, preludeIdentity string, flags []string) Identity {
	sorted := append([]string(nil), flags...)
	sort.Strings(sorted)
	return Identity{
		CompilerVersion: compilerVersion,
		CodegenTarget:   codegenTarget,
		Flags:           sorted,
		PreludeIdentity: preludeIdentity,
	}
}

// Equal reports whether two identities describe the same build
// configuration. Flags are expected in canonical sorted order (see
// NewIdentity); any element-wise difference invalidates the whole
// record.
func (id Identity) Equal(other Identity) bool {
	if id.CompilerVersion != other.CompilerVersion ||
		id.CodegenTarget != other.CodegenTarget ||
		id.PreludeIdentity != other.PreludeIdentity ||
		len(id.Flags) != len(other.Flags) {
		return false
	}
	for i := range id.Flags {
		if id.Flags[i] != other.Flags[i] {
			return false
		}
	}
	return true
}

// AllocationHints carries table sizes observed at the end of a build so
// the next build can pre-size its maps and pools instead of growing
// them from empty. Every field is advisory; a zero value means "no
// hint" and is always safe.
type AllocationHints struct {
	StringPoolCap int `json:"string_pool_cap,omitempty"`
	TypeCount     int `json:"type_count,omitempty"`
	DefCount      int `json:"def_count,omitempty"`
	ModuleCount   int `json:"module_count,omitempty"`
}

// Record is the full on-disk shape of one project's incremental cache.
type Record struct {
	Version          int                         `json:"version"`
	Identity         Identity                    `json:"identity"`
	Files            map[string]fingerprint.File `json:"files"`
	Signatures       map[string]signature.File   `json:"file_signatures,omitempty"`
	ModuleFileMap    map[string][]string         `json:"module_file_map,omitempty"`
	FileDependencies map[string][]string         `json:"file_dependencies,omitempty"`
	AllocationHints  *AllocationHints            `json:"allocation_hints,omitempty"`
}

// newEmpty returns a blank record for the given identity.
func newEmpty(id Identity) *Record {
	return &Record{
		Version:  CacheVersion,
		Identity: id,
		Files:    make(map[string]fingerprint.File),
	}
}

// Path is the conventional location of the cache file within a
// project's cache directory.
func Path(cacheDir string) string {
	return filepath.Join(cacheDir, "incremental.json")
}

// Load reads a cache record from disk. A missing file, a version
// mismatch, or an identity mismatch against want are all treated the
// same way: not an error, just a fresh empty record, since any of them
// means nothing cached can safely be trusted for this build.
func Load(cacheDir string, want Identity) (*Record, error) {
	data, err := os.ReadFile(Path(cacheDir))
	if os.IsNotExist(err) {
		return newEmpty(want), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cachefile: reading %s: %w", Path(cacheDir), err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt cache file is recoverable by starting cold; it is
		// never worth failing the build over.
		return newEmpty(want), nil
	}

	if rec.Version != CacheVersion || !rec.Identity.Equal(want) {
		return newEmpty(want), nil
	}

	return &rec, nil
}

// Save atomically writes the record to disk: it writes to a temp file
// in the same directory and renames over the destination, so a
// process killed mid-write can never leave a half-written cache file
// behind for the next Load to choke on.
func Save(cacheDir string, rec *Record) error {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("cachefile: creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("cachefile: marshaling record: %w", err)
	}

	tmp, err := os.CreateTemp(cacheDir, "incremental-*.json.tmp")
	if err != nil {
		return fmt.Errorf("cachefile: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cachefile: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cachefile: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, Path(cacheDir)); err != nil {
		return fmt.Errorf("cachefile: renaming into place: %w", err)
	}
	return nil
}

// ChangedFiles compares a set of current fingerprints against the
// record and returns every path whose fingerprint differs, is entirely
// new, or was fingerprinted last build but is absent from current (a
// removed file is a change its dependents must see). The result is
// sorted so repeated invocations over the same state report the same
// order.
func (r *Record) ChangedFiles(current map[string]fingerprint.File) []string {
	var changed []string
	for path, fp := range current {
		prev, ok := r.Files[path]
		if !ok || !prev.Equal(fp) {
			changed = append(changed, path)
		}
	}
	for path := range r.Files {
		if _, ok := current[path]; !ok {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// Update replaces the record's fingerprints and signatures with the
// given fresh snapshots, ready for Save.
func (r *Record) Update(files map[string]fingerprint.File, sigs map[string]signature.File) {
	r.Files = files
	r.Signatures = sigs
}

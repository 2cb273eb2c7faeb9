// Package fingerprint tracks the identity of source files across build
// cycles: modification time, byte size, and content hash. It backs the
// fast-path inequality test (mtime/size) used by the incremental cache
// before falling back to a content hash comparison.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// File identifies the content of a single source file at a point in time.
// Equal Files have byte-equal content (modulo hash collisions, which are
// treated as negligible); see Equal for the role of mtime and size.
type File struct {
	Path    string `json:"path"`
	ModTime int64  `json:"mtime"`
	Size    int64  `json:"size"`
	Hash    string `json:"hash"`
	// QuickHash is an xxhash64 digest of the same content, computed in
	// the same read as Hash. It is not persisted across process
	// restarts as an equality test (Hash is authoritative there); it
	// exists so in-memory consumers like the parse cache can key on a
	// cheaper digest than SHA-256 when they don't need cryptographic
	// collision resistance.
	QuickHash string `json:"quick_hash,omitempty"`
}

// Equal reports whether f and other identify the same file content.
// mtime/size are compared first as a cheap inequality test: if either
// differs, Equal returns false without consulting the hash, so a file
// whose mtime changed but whose bytes did not is reported as unequal.
// When both match, the hash decides.
func (f File) Equal(other File) bool {
	if f.ModTime != other.ModTime || f.Size != other.Size {
		return false
	}
	return f.Hash == other.Hash
}

// Compute reads path and produces its fingerprint.
func Compute(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("fingerprint: stat %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("fingerprint: open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	qh := xxhash.New()
	w := io.MultiWriter(h, qh)
	if _, err := io.Copy(w, file); err != nil {
		return File{}, fmt.Errorf("fingerprint: hash %s: %w", path, err)
	}

	return File{
		Path:      path,
		ModTime:   info.ModTime().Unix(),
		Size:      info.Size(),
		Hash:      hex.EncodeToString(h.Sum(nil)),
		QuickHash: strconv.FormatUint(qh.Sum64(), 16),
	}, nil
}

// Store holds the fingerprints of every file observed this session,
// keyed by absolute path. Its methods lock an internal mutex, so they may
// be called concurrently; the watch coordinator is its sole mutator (see
// internal/incremental/coordinator).
type Store struct {
	mu      sync.Mutex
	entries map[string]File
}

// New creates an empty fingerprint store.
func New() *Store {
	return &Store{entries: make(map[string]File)}
}

// NewFromMap seeds a store from a previously persisted fingerprint map,
// such as one loaded from a cachefile.Record.
func NewFromMap(seed map[string]File) *Store {
	s := New()
	for path, fp := range seed {
		s.entries[path] = fp
	}
	return s
}

// Refresh recomputes the fingerprint for path, unless the current mtime
// and size already match the cached entry (in which case the cached hash
// is trusted and no rehash occurs).
func (s *Store) Refresh(path string) (File, error) {
	s.mu.Lock()
	cached, exists := s.entries[path]
	s.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}

	if exists && info.ModTime().Unix() == cached.ModTime && info.Size() == cached.Size {
		return cached, nil
	}

	fp, err := Compute(path)
	if err != nil {
		return File{}, err
	}

	s.mu.Lock()
	s.entries[path] = fp
	s.mu.Unlock()
	return fp, nil
}

// Get returns the last-known fingerprint for path, if any.
func (s *Store) Get(path string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.entries[path]
	return fp, ok
}

// Snapshot returns a copy of every tracked fingerprint, suitable for
// persisting in a cachefile.Record.
func (s *Store) Snapshot() map[string]File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]File, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Forget removes path from the store, e.g. after it is deleted from disk.
func (s *Store) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
}

// Package parsecache holds parsed ASTs in memory between incremental
// builds so files whose content hash has not moved never pay the
// lex/parse cost again, and hands out a deep copy on every read so no
// consumer can mutate the cached tree out from under later readers.
package parsecache

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
)

// ContentKey derives the cache key for raw file content. The key is an
// xxhash64 digest, not the authoritative SHA-256 fingerprint hash: this
// cache lives only for the process's lifetime, so cryptographic
// collision resistance buys nothing and the cheaper digest keeps key
// computation off the hot path for large batches.
func ContentKey(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Entry is one cached parse result, keyed by the content hash of the
// file it came from.
type Entry struct {
	Path    string
	Hash    string
	Program *ast.Program
}

// Cache is a concurrency-safe map from content hash to parsed program.
// Lookups by hash (not path) mean a file that round-trips back to a
// previously seen body still hits the cache even if the path differs.
type Cache struct {
	mu     sync.RWMutex
	byHash map[string]*Entry
	byPath map[string]string // path -> hash, for invalidation by path

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty parse cache.
func New() *Cache {
	return NewSized(0)
}

// NewSized creates a parse cache pre-sized for about n entries, e.g.
// the number of files a previous build's cache record fingerprinted.
// n <= 0 behaves like New.
func NewSized(n int) *Cache {
	if n < 0 {
		n = 0
	}
	return &Cache{
		byHash: make(map[string]*Entry, n),
		byPath: make(map[string]string, n),
	}
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// HitRate returns hits as a fraction of all lookups, 0 when none.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Get returns a deep copy of the cached program for a given content
// hash. The bool is false on a miss. Callers must never receive the
// cache's own tree: a deep copy is always taken so a consumer's later
// in-place mutation (e.g. during codegen lowering) cannot corrupt the
// entry for the next reader.
func (c *Cache) Get(hash string) (*ast.Program, bool) {
	c.mu.RLock()
	entry, ok := c.byHash[hash]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Program.Clone(), true
}

// Put stores a freshly parsed program under its content hash. The
// program passed in becomes owned by the cache: callers that keep
// using their own reference afterward must clone it themselves.
func (c *Cache) Put(path, hash string, program *ast.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHash[hash] = &Entry{Path: path, Hash: hash, Program: program}
	c.byPath[path] = hash
}

// Invalidate drops whatever entry is associated with a path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hash, ok := c.byPath[path]; ok {
		delete(c.byHash, hash)
		delete(c.byPath, path)
	}
}

// Size returns the number of distinct entries currently cached.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byHash)
}

// Clear drops every entry. Counters are left alone; use ResetStats.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHash = make(map[string]*Entry)
	c.byPath = make(map[string]string)
}

// Stats returns the current hit/miss counters and size.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.Size(),
	}
}

// ResetStats zeroes the hit/miss counters without touching entries.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}

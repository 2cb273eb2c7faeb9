package parsecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fixtureReader(files map[string]string) Reader {
	return func(path string) (string, string, error) {
		content, ok := files[path]
		if !ok {
			return "", "", fmt.Errorf("no fixture for %s", path)
		}
		return content, hashOf(content), nil
	}
}

func TestParseAll_ParsesEveryFile(t *testing.T) {
	files := map[string]string{
		"a.cdt": `resource A { id: string! }`,
		"b.cdt": `resource B { id: string! }`,
	}
	pool := NewPool(New(), fixtureReader(files), 2)
	results := pool.ParseAll([]string{"a.cdt", "b.cdt"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s: unexpected error %v", r.Path, r.Err)
		}
		if r.Program == nil || len(r.Program.Resources) != 1 {
			t.Errorf("%s: expected one resource parsed", r.Path)
		}
	}
}

func TestParseAll_CacheHitReturnsClone(t *testing.T) {
	files := map[string]string{
		"a.cdt": `resource A { id: string! }`,
	}
	cache := New()
	pool := NewPool(cache, fixtureReader(files), 1)

	first := pool.ParseAll([]string{"a.cdt"})[0]
	if first.Err != nil {
		t.Fatalf("unexpected error: %v", first.Err)
	}
	if cache.Size() != 1 {
		t.Fatalf("expected cache to hold 1 entry, got %d", cache.Size())
	}

	second := pool.ParseAll([]string{"a.cdt"})[0]
	if second.Program == first.Program {
		t.Error("expected cache hit to return a distinct clone, not the same pointer")
	}
	if len(second.Program.Resources) != len(first.Program.Resources) {
		t.Error("clone should have identical structure")
	}
}

func TestParseAll_SequentialFallback(t *testing.T) {
	t.Setenv("PARALLEL_PARSE", "0")
	files := map[string]string{
		"a.cdt": `resource A { id: string! }`,
		"b.cdt": `resource B { id: string! }`,
	}
	pool := NewPool(New(), fixtureReader(files), 4)
	results := pool.ParseAll([]string{"a.cdt", "b.cdt"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestParseAll_ReadErrorSurfaced(t *testing.T) {
	pool := NewPool(New(), fixtureReader(map[string]string{}), 1)
	results := pool.ParseAll([]string{"missing.cdt"})
	if results[0].Err == nil {
		t.Error("expected read error to surface")
	}
}

// Parallel parsing must be observationally equivalent to sequential:
// same per-path success, same resource structure.
func TestParseAll_ParallelMatchesSequential(t *testing.T) {
	files := make(map[string]string)
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		path := name + ".cdt"
		files[path] = fmt.Sprintf("resource R%s {\n  id: string!\n}", name)
		paths = append(paths, path)
	}

	parallel := NewPool(New(), fixtureReader(files), 4).ParseAll(paths)

	t.Setenv("PARALLEL_PARSE", "0")
	sequential := NewPool(New(), fixtureReader(files), 4).ParseAll(paths)

	if len(parallel) != len(sequential) {
		t.Fatalf("result counts differ: %d vs %d", len(parallel), len(sequential))
	}
	for i := range parallel {
		p, s := parallel[i], sequential[i]
		if p.Path != s.Path || (p.Err == nil) != (s.Err == nil) {
			t.Fatalf("result %d diverges: %+v vs %+v", i, p, s)
		}
		if p.Program.Resources[0].Name != s.Program.Resources[0].Name {
			t.Errorf("%s: parsed structure diverges", p.Path)
		}
	}
}

func TestParseAll_RequirePreambleDoesNotBreakParsing(t *testing.T) {
	files := map[string]string{
		"main.cdt": "require \"./a\"\nrequire \"lib/std\"\n\nresource Main {\n  id: string!\n}",
	}
	results := NewPool(New(), fixtureReader(files), 1).ParseAll([]string{"main.cdt"})

	r := results[0]
	if r.Err != nil || len(r.Errors) > 0 {
		t.Fatalf("require preamble must be transparent to the parser: %v %v", r.Err, r.Errors)
	}
	if len(r.Program.Resources) != 1 || r.Program.Resources[0].Name != "Main" {
		t.Errorf("expected Main resource parsed, got %+v", r.Program.Resources)
	}
	// The blanked preamble must preserve line numbers for diagnostics.
	if got := r.Program.Resources[0].Loc.Line; got != 4 {
		t.Errorf("resource location line = %d, want 4", got)
	}
}

func TestCacheStats(t *testing.T) {
	files := map[string]string{"a.cdt": "resource A {\n  id: string!\n}"}
	cache := New()
	pool := NewPool(cache, fixtureReader(files), 1)

	pool.ParseAll([]string{"a.cdt"}) // miss
	pool.ParseAll([]string{"a.cdt"}) // hit

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit / 1 miss", stats)
	}
	if stats.HitRate() != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", stats.HitRate())
	}

	cache.ResetStats()
	if s := cache.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("expected counters zeroed, got %+v", s)
	}
	if cache.Size() != 1 {
		t.Error("ResetStats must not drop entries")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Error("Clear must drop every entry")
	}
}

package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conduit-lang/conduit/internal/compiler/driver"
	"github.com/conduit-lang/conduit/internal/incremental/cachefile"
	"github.com/conduit-lang/conduit/internal/incremental/modulemap"
	"github.com/conduit-lang/conduit/internal/incremental/parsecache"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// fakeCompiler records the skip planner it was handed and replays a
// canned result, so coordinator behavior can be tested without the
// full driver pipeline.
type fakeCompiler struct {
	result   *driver.Result
	err      error
	calls    int
	planners []*modulemap.Planner
}

func (f *fakeCompiler) Compile(entries []string, skip *modulemap.Planner) (*driver.Result, error) {
	f.calls++
	f.planners = append(f.planners, skip)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, f.err
}

func newTestCoordinator(t *testing.T, comp Compiler, cacheDir string, entries ...string) *Coordinator {
	t.Helper()
	c, err := New(comp, Options{
		EntryFiles: entries,
		CacheDir:   cacheDir,
		Identity:   cachefile.NewIdentity("test", "go", "", nil),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func realCompiler(cacheDir string) *driver.Compiler {
	return driver.New(parsecache.New(), driver.Options{OutputDir: cacheDir})
}

func TestCoordinator_FirstBuildIsFullAndPersists(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	main := writeSource(t, dir, "main.cdt", `resource Main { id: string! }`)

	c := newTestCoordinator(t, realCompiler(cacheDir), cacheDir, main)

	changes := make(chan []string, 1)
	c.buildCycle(nil, changes)
	if c.watcher != nil {
		c.watcher.Stop()
	}

	if _, err := os.Stat(cachefile.Path(cacheDir)); err != nil {
		t.Errorf("expected cache file to be written: %v", err)
	}
	if len(c.record.Signatures) != 1 {
		t.Errorf("expected one signature recorded, got %d", len(c.record.Signatures))
	}
	if len(c.record.ModuleFileMap) != 1 {
		t.Errorf("expected one module in the file map, got %d", len(c.record.ModuleFileMap))
	}
	if c.record.AllocationHints == nil || c.record.AllocationHints.TypeCount != 1 {
		t.Errorf("expected allocation hints with one type, got %+v", c.record.AllocationHints)
	}
	if _, err := os.Stat(modulemap.ArtifactPath(cacheDir, "Main")); err != nil {
		t.Errorf("expected module artefact on disk: %v", err)
	}
}

func TestCoordinator_SecondSessionSkipsUnchangedModules(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	main := writeSource(t, dir, "main.cdt", `resource Main { id: string! }`)

	c1 := newTestCoordinator(t, realCompiler(cacheDir), cacheDir, main)
	changes := make(chan []string, 1)
	c1.buildCycle(nil, changes)
	if c1.watcher != nil {
		c1.watcher.Stop()
	}

	// A fresh session over an unchanged tree: the planner should let
	// the driver reuse the artefact instead of regenerating it.
	comp := realCompiler(cacheDir)
	c2 := newTestCoordinator(t, comp, cacheDir, main)
	planner := c2.skipPlanner(nil)
	if d := planner.Decide("Main"); !d.Skip {
		t.Errorf("expected Main to be skippable, got reason %q", d.Reason)
	}

	c2.buildCycle(nil, changes)
	if c2.watcher != nil {
		c2.watcher.Stop()
	}
	if len(c2.record.Signatures) != 1 {
		t.Errorf("expected signature still present after no-op rebuild, got %d", len(c2.record.Signatures))
	}
}

func TestCoordinator_FailedBuildKeepsRecordAndWatchesEntries(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	main := writeSource(t, dir, "main.cdt", `resource Main { id: string! }`)

	comp := &fakeCompiler{err: os.ErrNotExist}
	c := newTestCoordinator(t, comp, cacheDir, main)

	changes := make(chan []string, 1)
	c.buildCycle(nil, changes)
	defer func() {
		if c.watcher != nil {
			c.watcher.Stop()
		}
	}()

	if comp.calls != 1 {
		t.Fatalf("expected one compile attempt, got %d", comp.calls)
	}
	if len(c.record.Files) != 0 {
		t.Errorf("failed build must not update the record, got %d fingerprints", len(c.record.Files))
	}
	found := false
	for _, p := range c.watched {
		if p == main {
			found = true
		}
	}
	if !found {
		t.Errorf("expected entry file to remain watched after a failed build, watched = %v", c.watched)
	}
}

func TestCoordinator_RejectsUnknownSandboxTarget(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.cdt", `resource Main { id: string! }`)

	_, err := New(&fakeCompiler{}, Options{
		EntryFiles: []string{main},
		CacheDir:   filepath.Join(dir, "cache"),
		Run:        true,
		RunCommand: "./build/app",
		Target:     "wasm64-unknown-unknown",
		Identity:   cachefile.NewIdentity("test", "wasm64-unknown-unknown", "", nil),
	})
	if err == nil {
		t.Fatal("expected an error for an unknown sandbox runtime in run-mode")
	}
}

func TestRuntimeLauncher_Wasm32UsesWasmtime(t *testing.T) {
	cmd, args, err := runtimeLauncher("wasm32-wasi", "./build/app.wasm", []string{"--port", "8080"})
	if err != nil {
		t.Fatalf("runtimeLauncher() error = %v", err)
	}
	if cmd != "wasmtime" {
		t.Errorf("expected wasmtime launcher, got %q", cmd)
	}
	want := []string{"run", "--wasm-features", "exception-handling", "./build/app.wasm", "--port", "8080"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestRuntimeLauncher_NativePassesThrough(t *testing.T) {
	cmd, args, err := runtimeLauncher("", "./build/app", []string{"-v"})
	if err != nil {
		t.Fatalf("runtimeLauncher() error = %v", err)
	}
	if cmd != "./build/app" || len(args) != 1 || args[0] != "-v" {
		t.Errorf("expected direct exec, got %q %v", cmd, args)
	}
}

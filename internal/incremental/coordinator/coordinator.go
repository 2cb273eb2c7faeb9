package coordinator

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit/internal/compiler/driver"
	"github.com/conduit-lang/conduit/internal/incremental/cachefile"
	"github.com/conduit-lang/conduit/internal/incremental/classify"
	"github.com/conduit-lang/conduit/internal/incremental/fingerprint"
	"github.com/conduit-lang/conduit/internal/incremental/modulemap"
	"github.com/conduit-lang/conduit/internal/incremental/signature"
)

// Compiler is the collaborator contract the coordinator drives. The
// production implementation is internal/compiler/driver; tests swap in
// fakes.
type Compiler interface {
	Compile(entries []string, skip *modulemap.Planner) (*driver.Result, error)
}

// Options configures one Coordinator run.
type Options struct {
	// EntryFiles are the initial sources passed to the watch command.
	EntryFiles []string

	// Run launches RunCommand with RunArgs after every successful
	// build. The previous child is stopped first (SIGTERM, grace,
	// SIGKILL).
	Run        bool
	RunCommand string
	RunArgs    []string

	// Target is the codegen target descriptor. A wasm32 architecture
	// routes run-mode through the wasmtime sandbox runtime.
	Target string

	// ClearTerminal wipes the screen before each compilation.
	ClearTerminal bool

	// CacheDir holds the on-disk incremental cache record and the
	// per-module artefacts.
	CacheDir string
	// ClearCache discards any existing cache before the first build.
	ClearCache bool

	Debounce time.Duration
	// PollFallback forces the polling watcher backend even when native
	// notifications are available.
	PollFallback bool
	PollInterval time.Duration
	// Identity gates the on-disk cache: any mismatch at load time means
	// a cold build.
	Identity cachefile.Identity
	// IgnoreGlobs are doublestar patterns (e.g. "**/.git/**") matched
	// against changed paths before they reach the debounce queue. Nil
	// selects defaultIgnoreGlobs.
	IgnoreGlobs []string

	Logger *zap.SugaredLogger
}

// Coordinator owns every moving part of one incremental watch session:
// the compiler collaborator, the fingerprint store, the classifier, the
// on-disk cache, the filesystem watcher, and the child process. It runs
// on a single goroutine; everything it owns is mutated only from there.
type Coordinator struct {
	opts Options
	log  *zap.SugaredLogger

	compiler   Compiler
	extractor  *signature.Extractor
	classifier *classify.Classifier
	fp         *fingerprint.Store
	record     *cachefile.Record

	runner  *Runner
	watcher *Watcher

	// interrupted is set by the signal handler and observed at cycle
	// boundaries.
	interrupted atomic.Bool

	// watched is the last set of paths handed to the watcher; kept so a
	// failed build leaves the previous watch set intact.
	watched []string
}

// New builds a Coordinator ready to Run. Watcher construction failures
// surface later, in Run; everything here is either pure setup or
// best-effort cache loading.
func New(compiler Compiler, opts Options) (*Coordinator, error) {
	if len(opts.EntryFiles) == 0 {
		return nil, fmt.Errorf("coordinator: no entry files")
	}
	if opts.Debounce == 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	}
	if opts.IgnoreGlobs == nil {
		opts.IgnoreGlobs = defaultIgnoreGlobs
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if opts.Run {
		if _, _, err := runtimeLauncher(opts.Target, opts.RunCommand, opts.RunArgs); err != nil {
			// An unknown sandbox runtime cannot be deferred: run-mode
			// would never be able to start the child.
			return nil, err
		}
	}

	c := &Coordinator{
		opts:       opts,
		log:        log,
		compiler:   compiler,
		extractor:  signature.NewExtractor(),
		classifier: classify.NewClassifier(),
		fp:         fingerprint.New(),
	}

	if opts.ClearCache {
		_ = os.RemoveAll(opts.CacheDir)
	}

	rec, err := cachefile.Load(opts.CacheDir, opts.Identity)
	if err != nil {
		return nil, err
	}
	c.record = rec
	c.fp = fingerprint.NewFromMap(rec.Files)

	return c, nil
}

// Run executes the full watch loop: an initial build, then repeated
// incremental rebuilds triggered by filesystem changes, until an
// interrupt signal arrives. The interrupt is the only clean exit.
func (c *Coordinator) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	changes := make(chan []string, 1)

	c.buildCycle(nil, changes)

	for {
		if c.interrupted.Load() {
			return c.shutdown()
		}

		select {
		case files := <-changes:
			c.announceChanges(files)
			if c.runner != nil {
				// The old binary must not keep running against sources
				// it no longer matches.
				c.runner.Stop()
			}
			c.buildCycle(files, changes)

		case <-sigCh:
			c.interrupted.Store(true)
		}
	}
}

// shutdown kills the child, closes the watcher, and persists the cache.
// A persist failure is logged, never returned: exiting 0 on a clean
// interrupt is part of the contract.
func (c *Coordinator) shutdown() error {
	c.log.Infow("interrupt received, shutting down")
	if c.runner != nil {
		c.runner.Stop()
	}
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if err := c.persist(); err != nil {
		c.log.Warnw("could not persist incremental cache", "error", err)
	}
	return nil
}

// buildCycle performs one pass of the loop body: announce, compile,
// classify, persist, re-arm the watcher, restart the child. changed is
// nil on the first (cold) cycle. Errors never propagate: a failed build
// leaves the previous watch set and cache record intact and the loop
// keeps waiting.
func (c *Coordinator) buildCycle(changed []string, changes chan []string) {
	if c.opts.ClearTerminal {
		clearTerminal()
	}
	color.New(color.FgCyan, color.Bold).Printf("compiling %s\n", strings.Join(c.opts.EntryFiles, " "))

	planner := c.skipPlanner(changed)

	start := time.Now()
	result, err := c.compiler.Compile(c.opts.EntryFiles, planner)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%v\n", err)
		c.log.Debugw("build failed", "error", err)
		c.armWatcher(c.fallbackWatchSet(), changes)
		return
	}

	fps := make(map[string]fingerprint.File, len(result.Requires))
	for _, p := range result.Requires {
		fp, err := c.fp.Refresh(p)
		if err != nil {
			c.log.Warnw("could not fingerprint file", "path", p, "error", err)
			c.fp.Forget(p)
			continue
		}
		fps[p] = fp
	}

	sigs := make(map[string]signature.File, len(result.Programs))
	for path, prog := range result.Programs {
		sigs[path] = c.extractor.Extract(path, prog, result.HasMacroCalls[path])
	}

	c.classifyAndLog(fps, sigs)

	c.record.Update(fps, sigs)
	c.record.ModuleFileMap = result.Modules
	c.record.AllocationHints = result.AllocationHints()
	if err := c.persist(); err != nil {
		c.log.Warnw("could not persist incremental cache", "error", err)
	}

	color.New(color.FgGreen).Printf("build finished in %s (%d modules generated, %d reused)\n",
		time.Since(start).Round(time.Millisecond), len(result.Generated), len(result.Skipped))

	c.armWatcher(result.Requires, changes)

	if c.opts.Run {
		c.restartChild()
	}
}

// skipPlanner builds the module-reuse decision for this cycle from the
// prior record and the set of files changed since it was written. A
// cold cache yields a planner with no mapping, which skips nothing.
func (c *Coordinator) skipPlanner(changed []string) *modulemap.Planner {
	if changed == nil {
		// First cycle: the record's fingerprints are the baseline, so
		// changed files must be computed rather than event-driven.
		changed = c.changedSinceRecord()
	}
	// Flag differences never reach here: an identity mismatch already
	// emptied the record at load time.
	return modulemap.NewPlanner(c.record.ModuleFileMap, c.opts.CacheDir, false, changed)
}

// changedSinceRecord re-fingerprints every file the record knows about
// and reports what moved (or disappeared) while the process was not
// running.
func (c *Coordinator) changedSinceRecord() []string {
	current := make(map[string]fingerprint.File, len(c.record.Files))
	for path := range c.record.Files {
		fp, err := c.fp.Refresh(path)
		if err != nil {
			// Missing now: leaving it out of current makes ChangedFiles
			// report it as removed.
			c.fp.Forget(path)
			continue
		}
		current[path] = fp
	}
	return c.record.ChangedFiles(current)
}

// classifyAndLog partitions this cycle's changed files into body-only
// and structural and reports the split. The classification is recorded
// for observability and for dependents-skipping policy downstream; it
// never gates the child restart (a freshly built output is always the
// one that should be running).
func (c *Coordinator) classifyAndLog(fps map[string]fingerprint.File, sigs map[string]signature.File) {
	changed := c.record.ChangedFiles(fps)
	if len(changed) == 0 {
		return
	}

	lookup := func(path string) (*signature.File, bool) {
		prev, ok := c.record.Signatures[path]
		if !ok {
			return nil, false
		}
		return &prev, true
	}

	var bodyOnly, structural []string
	for _, res := range c.classifier.ClassifyBatch(changed, lookup, sigs) {
		if res.Kind == classify.KindBodyOnly {
			bodyOnly = append(bodyOnly, res.Path)
		} else {
			structural = append(structural, res.Path)
		}
	}
	c.log.Infow("classified changed files", "body_only", bodyOnly, "structural", structural)
}

// armWatcher points the watcher at a fresh path set, replacing the
// previous one. Backend preference: forced polling if requested,
// otherwise native directory watches (cheap: one OS watch per
// directory), then native per-file watches, then polling as the last
// resort for filesystems with no working notification facility.
func (c *Coordinator) armWatcher(paths []string, changes chan []string) {
	if c.watcher != nil {
		c.watcher.Stop()
		c.watcher = nil
	}
	c.watched = paths

	deliver := func(files []string) { changes <- files }

	attempts := []struct {
		backend  Backend
		interval time.Duration
	}{
		{BackendNativeDir, c.opts.Debounce},
		{BackendNativeFile, c.opts.Debounce},
		{BackendPolling, c.opts.PollInterval},
	}
	if c.opts.PollFallback {
		attempts = attempts[2:]
	}

	for _, a := range attempts {
		w, err := NewWatcher(a.backend, paths, a.interval, c.opts.IgnoreGlobs, c.log, deliver)
		if err != nil {
			c.log.Warnw("watcher backend unavailable", "backend", a.backend, "error", err)
			continue
		}
		c.watcher = w
		c.watcher.Start()
		return
	}

	// No backend could be constructed, on the first cycle or a later
	// one: the error is logged and the loop keeps running; without a
	// watcher the only exit is the interrupt.
	c.log.Errorw("could not construct any watcher backend")
}

// fallbackWatchSet is what gets watched when a build failed before
// producing an authoritative require set: the entry files plus
// everything the last good record fingerprinted. Editing any of them
// (or re-creating a deleted entry) wakes the loop and retries.
func (c *Coordinator) fallbackWatchSet() []string {
	seen := make(map[string]struct{}, len(c.watched)+len(c.opts.EntryFiles))
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range c.opts.EntryFiles {
		add(p)
	}
	for p := range c.record.Files {
		add(p)
	}
	for _, p := range c.watched {
		add(p)
	}
	return out
}

func (c *Coordinator) restartChild() {
	cmd, args := mustRuntimeLauncher(c.opts.Target, c.opts.RunCommand, c.opts.RunArgs)
	if c.runner == nil {
		c.runner = NewRunner(cmd, args, nil, c.log)
	}
	if err := c.runner.Restart(); err != nil {
		// A launch failure is not a build failure; keep watching.
		c.log.Warnw("could not start child process", "error", err)
	}
}

func (c *Coordinator) announceChanges(files []string) {
	c.log.Infow("files changed", "paths", files)
	color.New(color.FgYellow).Printf("changed: %s\n", strings.Join(files, ", "))
}

func (c *Coordinator) persist() error {
	return cachefile.Save(c.opts.CacheDir, c.record)
}

// clearTerminal wipes the screen and homes the cursor, the same escape
// sequence `clear` emits.
func clearTerminal() {
	fmt.Print("\x1b[2J\x1b[H")
}

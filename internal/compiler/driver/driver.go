// Package driver implements the compiler collaborator the incremental
// core is built around: one call that takes an entry source, discovers
// everything it requires, parses the whole set through the parse cache,
// validates cross-file declarations, and emits one backend module per
// resource -- skipping any module whose cached object is still valid.
package driver

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
	"github.com/conduit-lang/conduit/internal/incremental/cachefile"
	"github.com/conduit-lang/conduit/internal/incremental/modulemap"
	"github.com/conduit-lang/conduit/internal/incremental/parsecache"
	"github.com/conduit-lang/conduit/internal/incremental/requiregraph"
)

// Options configures a Compiler.
type Options struct {
	// OutputDir receives one artefact per backend module.
	OutputDir string
	// PreludeRoots are searched for non-relative requires.
	PreludeRoots []string
	// PreludeImport, when non-empty, is resolved and compiled before the
	// entry sources, exactly as if every entry began by requiring it.
	PreludeImport string
	// Flags is the active compiler flag set, consulted when statically
	// deciding macro-if branches during discovery.
	Flags map[string]bool
	// Workers bounds the parallel parser pool; <= 0 lets the pool pick.
	Workers int
	// TypeCountHint pre-sizes the per-cycle declaration tables, fed from
	// the previous build's allocation hints. Zero is always safe.
	TypeCountHint int

	Logger *zap.SugaredLogger
}

// Compiler is the reference implementation of the compile collaborator.
// It owns nothing long-lived except the parse cache handed to New; the
// watch coordinator keeps both alive across build cycles.
type Compiler struct {
	opts  Options
	cache *parsecache.Cache
	pool  *parsecache.Pool
	log   *zap.SugaredLogger
}

// New creates a Compiler over a parse cache. The cache may be shared
// with (and outlive) many Compile calls; that sharing is the whole
// point of incremental parsing.
func New(cache *parsecache.Cache, opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Compiler{
		opts:  opts,
		cache: cache,
		pool:  parsecache.NewPool(cache, diskReader, opts.Workers),
		log:   log,
	}
}

// Result is what one compile cycle produced.
type Result struct {
	// Requires is the authoritative ordered list of every source file
	// that participated, providers before consumers. The coordinator
	// points the file watcher at exactly this set.
	Requires []string
	// Programs holds the parsed (cloned) program for each file.
	Programs map[string]*ast.Program
	// HasMacroCalls marks files whose preamble contained any macro
	// construct; their signatures can never be trusted for equality.
	HasMacroCalls map[string]bool
	// Modules maps each backend module to the source files that
	// contributed definitions to it.
	Modules map[string][]string
	// Generated and Skipped partition the modules of this cycle into
	// freshly emitted and reused-from-cache.
	Generated []string
	Skipped   []string
}

// AllocationHints summarizes this cycle's observed sizes for the next
// build's pre-allocation: declared types, member definitions, and
// modules, plus a combined figure for interning-pool capacity.
func (r *Result) AllocationHints() *cachefile.AllocationHints {
	types, defs := 0, 0
	for _, prog := range r.Programs {
		types += len(prog.Resources)
		for _, res := range prog.Resources {
			defs += len(res.Fields) + len(res.Scopes) + len(res.Computed) + len(res.Hooks)
		}
	}
	return &cachefile.AllocationHints{
		StringPoolCap: types + defs,
		TypeCount:     types,
		DefCount:      defs,
		ModuleCount:   len(r.Modules),
	}
}

// FileError is a diagnostic tied to one source file. Compile returns
// these inside a Diagnostics error rather than printing them; the
// caller owns presentation.
type FileError struct {
	Path string
	Err  error
}

// Diagnostics aggregates every error of one compile cycle. It is a
// recoverable error by contract: the watch loop prints it and keeps
// watching.
type Diagnostics struct {
	Errors []FileError
}

func (d *Diagnostics) Error() string {
	if len(d.Errors) == 1 {
		return fmt.Sprintf("compile: %s: %v", d.Errors[0].Path, d.Errors[0].Err)
	}
	return fmt.Sprintf("compile: %d errors (first: %s: %v)", len(d.Errors), d.Errors[0].Path, d.Errors[0].Err)
}

// Compile runs one full cycle for the given entry sources. skip may be
// nil (cold build: generate every module). The entry files are read
// fresh from disk through discovery, never from any cache, so edits
// made while the previous cycle was still running are picked up.
func (c *Compiler) Compile(entries []string, skip *modulemap.Planner) (*Result, error) {
	for _, entry := range entries {
		if _, err := os.Stat(entry); err != nil {
			return nil, &Diagnostics{Errors: []FileError{{Path: entry, Err: err}}}
		}
	}

	// Discovery gets a fresh discoverer each cycle: the visited set must
	// not leak across builds or deleted files would stay discovered.
	resolver := &requiregraph.PathResolver{Roots: c.opts.PreludeRoots}
	disc := requiregraph.NewDiscoverer(resolver, c.opts.Flags)
	requires, err := disc.Discover(entries, c.opts.PreludeImport)
	if err != nil {
		return nil, err
	}

	results := c.pool.ParseAll(requires)

	res := &Result{
		Requires:      requires,
		Programs:      make(map[string]*ast.Program, len(results)),
		HasMacroCalls: disc.HasMacroCalls,
		Modules:       make(map[string][]string, c.opts.TypeCountHint),
	}

	var diags []FileError
	for _, r := range results {
		if r.Err != nil {
			diags = append(diags, FileError{Path: r.Path, Err: r.Err})
			continue
		}
		if len(r.Errors) > 0 {
			diags = append(diags, FileError{Path: r.Path, Err: &r.Errors[0]})
			continue
		}
		res.Programs[r.Path] = r.Program
	}
	if len(diags) > 0 {
		return nil, &Diagnostics{Errors: diags}
	}

	verrs, warnings := validate(requires, res.Programs)
	for _, w := range warnings {
		c.log.Warnw("validation warning", "path", w.Path, "warning", w.Err)
	}
	if len(verrs) > 0 {
		return nil, &Diagnostics{Errors: verrs}
	}

	for _, path := range requires {
		prog := res.Programs[path]
		if prog == nil {
			continue
		}
		for _, r := range prog.Resources {
			res.Modules[r.Name] = append(res.Modules[r.Name], path)
		}
	}

	if err := c.generateModules(res, skip); err != nil {
		return nil, err
	}

	c.log.Debugw("compile cycle finished",
		"files", len(requires),
		"modules", len(res.Modules),
		"generated", len(res.Generated),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// generateModules emits an artefact per module, consulting the skip
// planner first. A generation failure for one module aborts the cycle:
// unlike parse errors there is nothing useful downstream can do with a
// half-written artefact set.
func (c *Compiler) generateModules(res *Result, skip *modulemap.Planner) error {
	if err := os.MkdirAll(c.opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("driver: creating output dir: %w", err)
	}

	modules := make([]string, 0, len(res.Modules))
	for m := range res.Modules {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	for _, mod := range modules {
		if skip != nil {
			if d := skip.Decide(mod); d.Skip {
				res.Skipped = append(res.Skipped, mod)
				c.log.Debugw("reusing cached module object", "module", mod)
				continue
			} else if d.Reason != "" {
				c.log.Debugw("rebuilding module", "module", mod, "reason", d.Reason)
			}
		}

		code, err := generateModule(mod, res.Modules[mod], res.Programs)
		if err != nil {
			return fmt.Errorf("driver: generating module %s: %w", mod, err)
		}
		path := modulemap.ArtifactPath(c.opts.OutputDir, mod)
		if err := os.WriteFile(path, []byte(code), 0644); err != nil {
			return fmt.Errorf("driver: writing module %s: %w", mod, err)
		}
		res.Generated = append(res.Generated, mod)
	}
	return nil
}

// diskReader feeds the parse pool with file content keyed by the cheap
// in-memory hash; see parsecache for why QuickHash and not SHA-256.
func diskReader(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), parsecache.ContentKey(data), nil
}

package parsecache

import (
	"context"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
	"github.com/conduit-lang/conduit/internal/compiler/lexer"
	"github.com/conduit-lang/conduit/internal/compiler/parser"
	"github.com/conduit-lang/conduit/internal/incremental/requiregraph"
)

// ParseResult is the outcome of parsing one file.
type ParseResult struct {
	Path    string
	Hash    string
	Program *ast.Program
	Errors  []parser.ParseError
	Err     error
}

// Reader supplies file content and its content hash. It exists so the
// parallel parser can be driven by either disk reads or an in-memory
// fixture in tests.
type Reader func(path string) (content string, hash string, err error)

// Pool parses a batch of files, consulting and populating a parse
// cache, using a worker goroutine per logical CPU (bounded by the
// number of files). Each worker gets its own lexer/parser instances:
// nothing about lexing or parsing one file is shared with another.
type Pool struct {
	cache   *Cache
	read    Reader
	Workers int
}

// NewPool creates a parallel parser backed by the given cache and file
// reader. workers <= 0 selects min(NumCPU, len(paths)) at call time.
func NewPool(cache *Cache, read Reader, workers int) *Pool {
	return &Pool{cache: cache, read: read, Workers: workers}
}

// ParseAll parses every path, using cached entries where the content
// hash is unchanged, and returns one result per input path in input
// order. Parsing runs in parallel unless PARALLEL_PARSE=0 is set in
// the environment, in which case it falls back to a single goroutine
// (useful for deterministic debugging and for small batches where pool
// setup would dominate wall time).
func (p *Pool) ParseAll(paths []string) []ParseResult {
	results := make([]ParseResult, len(paths))

	if !parallelEnabled() || len(paths) <= 1 {
		for i, path := range paths {
			results[i] = p.parseOne(path)
		}
		return results
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i := range paths {
		i := i
		g.Go(func() error {
			results[i] = p.parseOne(paths[i])
			return nil
		})
	}
	g.Wait()

	return results
}

func (p *Pool) parseOne(path string) ParseResult {
	content, hash, err := p.read(path)
	if err != nil {
		return ParseResult{Path: path, Err: err}
	}

	if cached, ok := p.cache.Get(hash); ok {
		return ParseResult{Path: path, Hash: hash, Program: cached}
	}

	// The require/macro preamble belongs to the discoverer's grammar,
	// not the resource parser's; blank it out (line numbers preserved)
	// before tokenizing.
	content = requiregraph.StripDirectives(content)

	l := lexer.New(content)
	tokens, lexErrs := l.ScanTokens()
	if len(lexErrs) > 0 {
		return ParseResult{Path: path, Hash: hash, Err: lexErrs[0]}
	}

	prog, parseErrs := parser.New(tokens).Parse()
	if len(parseErrs) > 0 {
		return ParseResult{Path: path, Hash: hash, Program: prog, Errors: parseErrs}
	}

	p.cache.Put(path, hash, prog)
	return ParseResult{Path: path, Hash: hash, Program: prog.Clone()}
}

// parallelEnabled honors PARALLEL_PARSE: only "0" disables the pool;
// any other value, or an unset variable, leaves it on.
func parallelEnabled() bool {
	return os.Getenv("PARALLEL_PARSE") != "0"
}

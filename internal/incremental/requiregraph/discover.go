package requiregraph

import (
	"os"
	"path/filepath"
)

// Resolver turns an import string into the absolute path(s) it refers
// to. A single string can resolve to more than one file (e.g. a
// directory require that pulls in every file inside it); not-found is
// reported through ok=false rather than an error, since the discoverer
// treats resolution failure as silently skippable (the semantic phase
// is the authoritative reporter).
type Resolver interface {
	Find(importString string, relativeTo string) (paths []string, ok bool)
}

// Discoverer enumerates every source file statically reachable from a
// set of initial sources, in post-order (providers before consumers).
// It is best-effort: parse errors, I/O errors, and unresolved requires
// are swallowed rather than surfaced, matching the "semantic phase is
// authoritative" policy in the specification.
type Discoverer struct {
	Resolver Resolver
	Flags    map[string]bool

	visited map[string]bool
	order   []string
	// HasMacroCalls records, per discovered file, whether the file
	// contained any macro construct.
	HasMacroCalls map[string]bool
}

// NewDiscoverer creates a discoverer using the given resolver and active
// compiler flag set (used to statically decide `{% if flag?(...) %}`
// branches where possible).
func NewDiscoverer(resolver Resolver, flags map[string]bool) *Discoverer {
	return &Discoverer{
		Resolver:      resolver,
		Flags:         flags,
		visited:       make(map[string]bool),
		HasMacroCalls: make(map[string]bool),
	}
}

// Discover resolves the prelude identifier (if any) and every initial
// source file, then walks their require graphs to a fixed point.
// Re-invoking Discover with identical inputs and an unchanged filesystem
// produces the identical ordered list.
func (d *Discoverer) Discover(initialSources []string, preludeImport string) ([]string, error) {
	if preludeImport != "" {
		if paths, ok := d.Resolver.Find(preludeImport, ""); ok {
			for _, p := range paths {
				d.visitFile(p)
			}
		}
	}

	for _, src := range initialSources {
		d.visitFile(src)
	}

	return d.order, nil
}

// visitFile reads, scans, and recurses into a single file; it is a
// no-op if the file was already discovered.
func (d *Discoverer) visitFile(path string) {
	canon := canonicalize(path)
	if d.visited[canon] {
		return
	}
	d.visited[canon] = true

	content, err := os.ReadFile(path)
	if err != nil {
		// Swallowed: the semantic phase will report the I/O error properly.
		return
	}

	if HasMacroCalls(string(content)) {
		d.HasMacroCalls[canon] = true
	}

	nodes, err := Scan(string(content))
	if err != nil {
		// Swallowed: malformed macro preamble, let the real parser complain.
		return
	}

	d.walk(nodes, path)

	d.order = append(d.order, canon)
}

// walk recurses through a node sequence, resolving requires relative to
// requirer and descending into macro-if branches that can be statically
// decided (or both, conservatively, when they cannot).
func (d *Discoverer) walk(nodes []Node, requirer string) {
	for _, n := range nodes {
		switch node := n.(type) {
		case *Require:
			paths, ok := d.Resolver.Find(node.Path, requirer)
			if !ok {
				continue
			}
			for _, p := range paths {
				d.visitFile(p)
			}

		case *MacroIf:
			if v, ok := EvalFlag(node.CondText, d.Flags); ok {
				if v {
					d.walk(node.Then, requirer)
				} else {
					d.walk(node.Else, requirer)
				}
				continue
			}
			// Cannot decide: conservative over-discovery explores both.
			d.walk(node.Then, requirer)
			d.walk(node.Else, requirer)

		case *MacroFor:
			// Never recursed into: requires nested in a macro-for body
			// are only discoverable once the macro expander runs.
		}
	}
}

func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

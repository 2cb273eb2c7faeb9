// Package classify decides, for a single changed file, whether the
// change can be satisfied by recompiling only that file's body or
// whether it ripples outward to every file that requires it.
package classify

import (
	"github.com/conduit-lang/conduit/internal/incremental/signature"
)

// Kind describes how a file change propagates.
type Kind string

const (
	// KindUnchanged means the file's content hash did not move at all.
	KindUnchanged Kind = "unchanged"
	// KindBodyOnly means the file's external signature is identical to
	// what was last cached: only statement bodies differ, so dependents
	// never need to see this file again.
	KindBodyOnly Kind = "body_only"
	// KindStructural means the file's external signature changed (or
	// could not be trusted), so every file that transitively requires
	// it must be recompiled too.
	KindStructural Kind = "structural"
)

// Result is the outcome of classifying one file.
type Result struct {
	Path string
	Kind Kind
	// PreviousSignature is nil the first time a file is seen.
	PreviousSignature *signature.File
	NewSignature      signature.File
}

// Propagates reports whether dependents of this file must also be
// rebuilt as a consequence of this file's change.
func (r Result) Propagates() bool {
	return r.Kind == KindStructural
}

// Classifier holds no state of its own; it is handed the previous
// signature (if any) explicitly by its caller, which is expected to be
// backed by an on-disk incremental cache record.
type Classifier struct{}

// NewClassifier creates a change classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify compares a freshly extracted signature against whatever was
// cached for this path on the previous run. previous is nil when the
// file is new to the cache (a cold file is always treated as
// structural, since nothing downstream has ever seen its shape).
func (c *Classifier) Classify(path string, previous *signature.File, current signature.File) Result {
	res := Result{Path: path, NewSignature: current, PreviousSignature: previous}

	if previous == nil {
		res.Kind = KindStructural
		return res
	}

	if current.HasMacroCalls || previous.HasMacroCalls {
		// Macro-bearing files are never trusted to be body-only: the
		// expansion that produced the previous signature is invisible
		// to this comparison.
		res.Kind = KindStructural
		return res
	}

	if previous.Equal(current) {
		res.Kind = KindBodyOnly
	} else {
		res.Kind = KindStructural
	}
	return res
}

// ClassifyBatch runs Classify over a set of changed files, given a
// lookup function for each file's previously cached signature. A
// changed path with no current signature is a file that was removed
// (or failed to parse this cycle): it classifies as structural, since
// dependents referenced a contract that no longer exists.
func (c *Classifier) ClassifyBatch(changed []string, lookup func(path string) (*signature.File, bool), current map[string]signature.File) []Result {
	results := make([]Result, 0, len(changed))
	for _, path := range changed {
		var prev *signature.File
		if p, found := lookup(path); found {
			prev = p
		}

		sig, ok := current[path]
		if !ok {
			results = append(results, Result{Path: path, Kind: KindStructural, PreviousSignature: prev})
			continue
		}
		results = append(results, c.Classify(path, prev, sig))
	}
	return results
}

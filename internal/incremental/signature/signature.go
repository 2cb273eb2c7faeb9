// Package signature extracts the externally observable structural
// footprint of a compiled source file -- its top-level type and method
// shapes, excluding method bodies -- so the change classifier can tell
// a body-only edit from one that breaks the file's contract.
package signature

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
)

// Kind mirrors the declaration kinds a signature can describe.
type Kind string

const (
	KindStruct Kind = "struct" // a Conduit resource
)

// TypeDecl is the structural shape of one top-level type declaration.
type TypeDecl struct {
	QualifiedName  string
	Kind           Kind
	Parent         string
	GenericParams  []string
}

// Method is the structural shape of one callable member. Bodies are
// deliberately absent: only the name, argument surface, and return
// restriction participate in signature equality.
type Method struct {
	QualifiedName     string
	ArgNames          []string
	ArgRestrictions   []string
	ReturnRestriction string
	IsAbstract        bool
}

// File is the aggregated structural footprint of one source file.
type File struct {
	Path          string
	TypeDecls     []TypeDecl
	Methods       []Method
	Mixins        []string
	Constants     []string
	HasMacroCalls bool
}

// Equal reports whether two signatures describe the same external
// contract. A file with HasMacroCalls set never compares equal to
// anything, including itself as previously cached: macro expansion is
// opaque, so equality can never be trusted.
func (f File) Equal(other File) bool {
	if f.HasMacroCalls || other.HasMacroCalls {
		return false
	}
	return reflect.DeepEqual(normalize(f), normalize(other))
}

// normalize returns a copy with every slice sorted into a canonical
// order, since two extractions of structurally-equal ASTs must compare
// equal regardless of declaration order within a file.
func normalize(f File) File {
	out := f
	out.Path = ""

	out.TypeDecls = append([]TypeDecl(nil), f.TypeDecls...)
	sort.Slice(out.TypeDecls, func(i, j int) bool {
		return out.TypeDecls[i].QualifiedName < out.TypeDecls[j].QualifiedName
	})

	out.Methods = append([]Method(nil), f.Methods...)
	sort.Slice(out.Methods, func(i, j int) bool {
		return out.Methods[i].QualifiedName < out.Methods[j].QualifiedName
	})

	out.Mixins = sortedCopy(f.Mixins)
	out.Constants = sortedCopy(f.Constants)
	return out
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// Extractor walks a parsed, pre-semantic AST once per file and produces
// its top-level signature. It never descends into method bodies: hook,
// scope, and computed bodies are recorded by name/shape only.
type Extractor struct{}

// NewExtractor creates a signature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract produces the top-level signature of a single file's program.
// hasMacroCalls is supplied by the require-graph scan (see
// internal/incremental/requiregraph), since macro detection happens at
// the raw-text preamble level rather than inside this AST.
func (e *Extractor) Extract(path string, program *ast.Program, hasMacroCalls bool) File {
	sig := File{Path: path, HasMacroCalls: hasMacroCalls}

	for _, res := range program.Resources {
		sig.TypeDecls = append(sig.TypeDecls, TypeDecl{
			QualifiedName: res.Name,
			Kind:          KindStruct,
		})

		for _, field := range res.Fields {
			sig.Methods = append(sig.Methods, Method{
				QualifiedName:     fmt.Sprintf("%s#%s", res.Name, field.Name),
				ArgRestrictions:   nil,
				ReturnRestriction: typeRestriction(field.Type, field.Nullable),
			})
		}

		for _, hook := range res.Hooks {
			sig.Methods = append(sig.Methods, Method{
				QualifiedName:     fmt.Sprintf("%s#%s_%s", res.Name, hook.Timing, hook.Event),
				ArgRestrictions:   []string{fmt.Sprintf("async=%v", hook.IsAsync), fmt.Sprintf("transaction=%v", hook.IsTransaction)},
				ReturnRestriction: "",
			})
			sig.Mixins = append(sig.Mixins, hook.Middleware...)
		}

		for _, scope := range res.Scopes {
			args := make([]string, 0, len(scope.Arguments))
			restrictions := make([]string, 0, len(scope.Arguments))
			for _, a := range scope.Arguments {
				args = append(args, a.Name)
				restrictions = append(restrictions, typeRestriction(a.Type, false))
			}
			sig.Methods = append(sig.Methods, Method{
				QualifiedName:     fmt.Sprintf("%s.%s", res.Name, scope.Name),
				ArgNames:          args,
				ArgRestrictions:   restrictions,
				ReturnRestriction: "scope",
			})
		}

		for _, computed := range res.Computed {
			sig.Methods = append(sig.Methods, Method{
				QualifiedName:     fmt.Sprintf("%s#%s", res.Name, computed.Name),
				ReturnRestriction: typeRestriction(computed.Type, false),
			})
		}

		sig.Mixins = append(sig.Mixins, res.Middleware...)
		sig.Constants = append(sig.Constants, fmt.Sprintf("%s.operations=%v", res.Name, res.Operations))

		for _, rel := range res.Relationships {
			sig.TypeDecls[len(sig.TypeDecls)-1].GenericParams = append(
				sig.TypeDecls[len(sig.TypeDecls)-1].GenericParams,
				fmt.Sprintf("%s:%s", rel.Name, rel.Type),
			)
		}
	}

	return sig
}

// typeRestriction captures a type's surface representation as a string,
// exactly as written, so comparison is purely structural and requires no
// access to the type checker. `Int32` and `Int32?` are different
// signatures even when eventually equivalent in some context.
func typeRestriction(t *ast.TypeNode, nullable bool) string {
	if t == nil {
		return ""
	}
	s := t.Name
	switch t.Kind {
	case ast.TypeArray:
		s = fmt.Sprintf("array<%s>", typeRestriction(t.ElementType, t.ElementType != nil && t.ElementType.Nullable))
	case ast.TypeHash:
		s = fmt.Sprintf("hash<%s,%s>", typeRestriction(t.KeyType, false), typeRestriction(t.ValueType, false))
	case ast.TypeEnum:
		s = fmt.Sprintf("enum<%v>", t.EnumValues)
	case ast.TypeResource:
		s = t.Name
	case ast.TypeStruct:
		s = "struct{...}"
	}
	if nullable {
		return s + "?"
	}
	return s
}

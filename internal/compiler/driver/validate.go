package driver

import (
	"github.com/conduit-lang/conduit/internal/compiler/ast"
	"github.com/conduit-lang/conduit/internal/compiler/errors"
)

// validOnDelete is the set of referential actions the schema layer can
// honor. Empty means "not specified" and defaults downstream.
var validOnDelete = map[string]bool{
	"":         true,
	"cascade":  true,
	"restrict": true,
	"nullify":  true,
}

// validate runs the cross-file declaration checks that must hold before
// any module is generated. A resource name may be declared in more than
// one file (reopening merges into one module) but every relationship
// must be internally consistent and target a resource that exists
// somewhere in the compiled set. Errors abort the cycle; warnings are
// returned separately for the caller to log.
func validate(order []string, programs map[string]*ast.Program) (errs, warnings []FileError) {
	declared := make(map[string]string, len(order)) // resource -> first declaring file
	for _, path := range order {
		prog := programs[path]
		if prog == nil {
			continue
		}
		for _, r := range prog.Resources {
			if _, ok := declared[r.Name]; !ok {
				declared[r.Name] = path
			}
		}
	}

	// Foreign keys must be unique across every declaration of a
	// resource, including reopenings in other files.
	type fkOwner struct {
		relName string
	}
	foreignKeys := make(map[string]map[string]fkOwner) // resource -> fk -> first owner

	for _, path := range order {
		prog := programs[path]
		if prog == nil {
			continue
		}
		for _, r := range prog.Resources {
			for _, rel := range r.Relationships {
				if _, ok := declared[rel.Type]; !ok {
					errs = append(errs, FileError{
						Path: path,
						Err:  errors.NewUndefinedResource(rel.Loc, rel.Type).WithFile(path),
					})
					continue
				}

				if rel.Type == r.Name {
					warnings = append(warnings, FileError{
						Path: path,
						Err:  errors.NewSelfReferentialRelationship(rel.Loc, r.Name).WithFile(path),
					})
				}

				if !validOnDelete[rel.OnDelete] {
					errs = append(errs, FileError{
						Path: path,
						Err:  errors.NewInvalidOnDelete(rel.Loc, rel.OnDelete).WithFile(path),
					})
				}

				if rel.ForeignKey != "" {
					if !validFieldName(rel.ForeignKey) {
						errs = append(errs, FileError{
							Path: path,
							Err:  errors.NewInvalidForeignKey(rel.Loc, rel.ForeignKey, "not a snake_case field name").WithFile(path),
						})
					} else {
						owners := foreignKeys[r.Name]
						if owners == nil {
							owners = make(map[string]fkOwner)
							foreignKeys[r.Name] = owners
						}
						if prev, taken := owners[rel.ForeignKey]; taken {
							errs = append(errs, FileError{
								Path: path,
								Err:  errors.NewConflictingRelationships(rel.Loc, prev.relName, rel.Name).WithFile(path),
							})
						} else {
							owners[rel.ForeignKey] = fkOwner{relName: rel.Name}
						}
					}
				}
			}
		}
	}
	return errs, warnings
}

// validFieldName reports whether s is a snake_case identifier: a lower
// letter followed by lower letters, digits, and underscores.
func validFieldName(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

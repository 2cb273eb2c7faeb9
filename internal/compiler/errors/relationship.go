package errors

import (
	"fmt"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
)

// Relationship error codes (REL300-399)
const (
	// ErrInvalidForeignKey indicates an invalid foreign key specification
	ErrInvalidForeignKey ErrorCode = "REL302"
	// ErrInvalidOnDelete indicates an invalid on_delete action
	ErrInvalidOnDelete ErrorCode = "REL303"
	// ErrSelfReferentialRelationship indicates a resource referencing itself without proper setup
	ErrSelfReferentialRelationship ErrorCode = "REL305"
	// ErrConflictingRelationships indicates conflicting relationship definitions
	ErrConflictingRelationships ErrorCode = "REL306"
)

// NewInvalidForeignKey creates a REL302 error
func NewInvalidForeignKey(loc ast.SourceLocation, foreignKey, reason string) *CompilerError {
	return newError(
		ErrInvalidForeignKey,
		"invalid_foreign_key",
		CategoryRelationship,
		SeverityError,
		fmt.Sprintf("Invalid foreign key '%s': %s", foreignKey, reason),
		loc,
	).WithSuggestion("Foreign key must be a valid field name in snake_case")
}

// NewInvalidOnDelete creates a REL303 error
func NewInvalidOnDelete(loc ast.SourceLocation, action string) *CompilerError {
	return newError(
		ErrInvalidOnDelete,
		"invalid_on_delete",
		CategoryRelationship,
		SeverityError,
		fmt.Sprintf("Invalid on_delete action '%s'", action),
		loc,
	).WithSuggestion("Valid on_delete actions: cascade, restrict, nullify").
		WithExamples(
			"author: User! { foreign_key: \"author_id\", on_delete: cascade }",
			"category: Category? { foreign_key: \"category_id\", on_delete: nullify }",
		)
}

// NewSelfReferentialRelationship creates a REL305 warning
func NewSelfReferentialRelationship(loc ast.SourceLocation, resourceName string) *CompilerError {
	return newError(
		ErrSelfReferentialRelationship,
		"self_referential_relationship",
		CategoryRelationship,
		SeverityWarning,
		fmt.Sprintf("Resource '%s' references itself", resourceName),
		loc,
	).WithSuggestion("Ensure the relationship is nullable or has proper constraints to prevent infinite recursion")
}

// NewConflictingRelationships creates a REL306 error
func NewConflictingRelationships(loc ast.SourceLocation, field1, field2 string) *CompilerError {
	return newError(
		ErrConflictingRelationships,
		"conflicting_relationships",
		CategoryRelationship,
		SeverityError,
		fmt.Sprintf("Conflicting relationships: '%s' and '%s' use the same foreign key", field1, field2),
		loc,
	).WithSuggestion("Each relationship must use a unique foreign key")
}

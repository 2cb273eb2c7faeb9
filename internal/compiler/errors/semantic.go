package errors

import (
	"fmt"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
)

// Semantic error codes (SEM200-299)
const (
	// ErrUndefinedResource indicates an undefined resource was referenced
	ErrUndefinedResource ErrorCode = "SEM204"
)

// NewUndefinedResource creates a SEM204 error
func NewUndefinedResource(loc ast.SourceLocation, resourceName string) *CompilerError {
	return newError(
		ErrUndefinedResource,
		"undefined_resource",
		CategorySemantic,
		SeverityError,
		fmt.Sprintf("Undefined resource '%s'", resourceName),
		loc,
	).WithSuggestion("Ensure the resource is defined in a .cdt file")
}

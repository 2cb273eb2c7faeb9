package errors

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
)

func TestCompilerError_Error(t *testing.T) {
	loc := ast.SourceLocation{Line: 3, Column: 7}
	err := NewUndefinedResource(loc, "Pst").WithFile("app/models/post.cdt")

	msg := err.Error()
	if !strings.Contains(msg, "Pst") {
		t.Errorf("expected message to name the resource, got %q", msg)
	}
	if err.Category != CategorySemantic {
		t.Errorf("Category = %s, want %s", err.Category, CategorySemantic)
	}
	if err.Location.Line != 3 || err.Location.Column != 7 {
		t.Errorf("unexpected location %+v", err.Location)
	}
	if err.File != "app/models/post.cdt" {
		t.Errorf("File = %s", err.File)
	}
}

func TestCompilerError_Builders(t *testing.T) {
	err := NewInvalidForeignKey(ast.SourceLocation{Line: 1, Column: 1}, "AuthorID", "not a snake_case field name").
		WithExpected("author_id").
		WithActual("AuthorID").
		WithSuggestion("rename the foreign key")

	if err.Expected != "author_id" || err.Actual != "AuthorID" {
		t.Errorf("builder fields not applied: %+v", err)
	}
	if err.Suggestion != "rename the foreign key" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
}

func TestCompilerError_ToJSON(t *testing.T) {
	err := NewInvalidOnDelete(ast.SourceLocation{Line: 2, Column: 4}, "obliterate")
	out, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatalf("ToJSON() error = %v", jerr)
	}

	var decoded map[string]any
	if uerr := json.Unmarshal([]byte(out), &decoded); uerr != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", uerr)
	}
	if decoded["category"] != string(CategoryRelationship) {
		t.Errorf("category = %v, want %s", decoded["category"], CategoryRelationship)
	}
}

func TestSelfReferentialRelationship_IsWarning(t *testing.T) {
	err := NewSelfReferentialRelationship(ast.SourceLocation{Line: 4, Column: 3}, "Category")
	if err.Severity != SeverityWarning {
		t.Errorf("Severity = %s, want %s", err.Severity, SeverityWarning)
	}
}

func TestErrorList(t *testing.T) {
	list := ErrorList{
		NewUndefinedResource(ast.SourceLocation{Line: 1, Column: 1}, "A"),
		NewConflictingRelationships(ast.SourceLocation{Line: 2, Column: 1}, "author", "editor"),
		NewSelfReferentialRelationship(ast.SourceLocation{Line: 3, Column: 1}, "B"),
	}

	if !list.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
	if !list.HasWarnings() {
		t.Error("expected HasWarnings to be true")
	}
	errs, warnings, _ := list.ErrorCount()
	if errs != 2 || warnings != 1 {
		t.Errorf("ErrorCount() = (%d, %d), want (2, 1)", errs, warnings)
	}
}

func TestFormatError(t *testing.T) {
	err := NewUndefinedResource(ast.SourceLocation{Line: 5, Column: 2}, "Ghost").WithFile("a.cdt")
	out := FormatError(err)
	if !strings.Contains(out, "Ghost") {
		t.Errorf("formatted output should name the resource: %q", out)
	}
	if !strings.Contains(out, "5") {
		t.Errorf("formatted output should include the line number: %q", out)
	}
}

func TestFormatCompact(t *testing.T) {
	err := NewUndefinedResource(ast.SourceLocation{Line: 5, Column: 2}, "Ghost").WithFile("a.cdt")
	out := FormatCompact(err)
	if !strings.Contains(out, "a.cdt") || !strings.Contains(out, "5") {
		t.Errorf("compact format should carry file and line: %q", out)
	}
}

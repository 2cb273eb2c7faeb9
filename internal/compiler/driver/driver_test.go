package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conduit-lang/conduit/internal/incremental/modulemap"
	"github.com/conduit-lang/conduit/internal/incremental/parsecache"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newCompiler(outDir string) *Compiler {
	return New(parsecache.New(), Options{OutputDir: outDir})
}

func TestCompile_ColdBuildGeneratesEveryModule(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	writeFile(t, dir, "author.cdt", "resource Author {\n  name: string!\n}")
	main := writeFile(t, dir, "main.cdt", "require \"./author\"\n\nresource Post {\n  title: string!\n  author: Author! {\n    on_delete: cascade\n  }\n}")

	result, err := newCompiler(out).Compile([]string{main}, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(result.Requires) != 2 {
		t.Fatalf("expected 2 participating files, got %v", result.Requires)
	}
	if filepath.Base(result.Requires[0]) != "author.cdt" {
		t.Errorf("expected provider before consumer, got %v", result.Requires)
	}

	if len(result.Modules) != 2 {
		t.Fatalf("expected modules for Author and Post, got %v", result.Modules)
	}
	if len(result.Generated) != 2 || len(result.Skipped) != 0 {
		t.Errorf("cold build must generate everything: generated=%v skipped=%v", result.Generated, result.Skipped)
	}

	for _, mod := range []string{"Author", "Post"} {
		data, err := os.ReadFile(modulemap.ArtifactPath(out, mod))
		if err != nil {
			t.Fatalf("missing artefact for %s: %v", mod, err)
		}
		if !strings.Contains(string(data), "type "+mod+" struct {") {
			t.Errorf("artefact for %s lacks its struct: %s", mod, data)
		}
	}
}

func TestCompile_SkipPlannerReusesModules(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	writeFile(t, dir, "author.cdt", "resource Author {\n  name: string!\n}")
	main := writeFile(t, dir, "main.cdt", "require \"./author\"\n\nresource Post {\n  title: string!\n}")

	comp := newCompiler(out)
	first, err := comp.Compile([]string{main}, nil)
	if err != nil {
		t.Fatalf("cold Compile() error = %v", err)
	}

	// Only main.cdt changed: Author's module should be reused, Post's
	// regenerated.
	planner := modulemap.NewPlanner(first.Modules, out, false, []string{main})

	second, err := comp.Compile([]string{main}, planner)
	if err != nil {
		t.Fatalf("warm Compile() error = %v", err)
	}

	if len(second.Skipped) != 1 || second.Skipped[0] != "Author" {
		t.Errorf("expected Author skipped, got %v", second.Skipped)
	}
	if len(second.Generated) != 1 || second.Generated[0] != "Post" {
		t.Errorf("expected Post regenerated, got %v", second.Generated)
	}
}

func TestCompile_MissingEntryIsRecoverableDiagnostics(t *testing.T) {
	dir := t.TempDir()
	_, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{filepath.Join(dir, "nope.cdt")}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing entry file")
	}
	if _, ok := err.(*Diagnostics); !ok {
		t.Errorf("expected *Diagnostics, got %T", err)
	}
}

func TestCompile_SyntaxErrorSurfacesAsDiagnostics(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.cdt", "resource {\n  id string\n}")

	_, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{main}, nil)
	if err == nil {
		t.Fatal("expected parse errors to fail the compile")
	}
	diags, ok := err.(*Diagnostics)
	if !ok {
		t.Fatalf("expected *Diagnostics, got %T", err)
	}
	if len(diags.Errors) == 0 || diags.Errors[0].Path != main {
		t.Errorf("diagnostics should name the failing file: %+v", diags.Errors)
	}
}

func TestCompile_UnknownRelationshipTargetFails(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.cdt", "resource Post {\n  author: Ghost! {\n    on_delete: cascade\n  }\n}")

	_, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{main}, nil)
	if err == nil {
		t.Fatal("expected unknown relationship target to fail validation")
	}
	if !strings.Contains(err.Error(), "Ghost") {
		t.Errorf("error should name the missing resource: %v", err)
	}
}

func TestCompile_InvalidOnDeleteFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "author.cdt", "resource Author {\n  name: string!\n}")
	main := writeFile(t, dir, "main.cdt", "require \"./author\"\n\nresource Post {\n  author: Author! {\n    on_delete: obliterate\n  }\n}")

	_, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{main}, nil)
	if err == nil {
		t.Fatal("expected an invalid on_delete action to fail validation")
	}
	if !strings.Contains(err.Error(), "obliterate") {
		t.Errorf("error should name the bad action: %v", err)
	}
}

func TestCompile_MalformedForeignKeyFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "author.cdt", "resource Author {\n  name: string!\n}")
	main := writeFile(t, dir, "main.cdt", "require \"./author\"\n\nresource Post {\n  author: Author! {\n    foreign_key: \"AuthorID\"\n  }\n}")

	_, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{main}, nil)
	if err == nil {
		t.Fatal("expected a non-snake_case foreign key to fail validation")
	}
	if !strings.Contains(err.Error(), "AuthorID") {
		t.Errorf("error should name the bad foreign key: %v", err)
	}
}

func TestCompile_ConflictingForeignKeysFail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "author.cdt", "resource Author {\n  name: string!\n}")
	main := writeFile(t, dir, "main.cdt", "require \"./author\"\n\nresource Post {\n  author: Author! {\n    foreign_key: \"person_id\"\n  }\n  editor: Author! {\n    foreign_key: \"person_id\"\n  }\n}")

	_, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{main}, nil)
	if err == nil {
		t.Fatal("expected two relationships sharing a foreign key to fail validation")
	}
	if !strings.Contains(err.Error(), "author") || !strings.Contains(err.Error(), "editor") {
		t.Errorf("error should name both conflicting relationships: %v", err)
	}
}

func TestCompile_SelfReferenceIsWarningNotError(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.cdt", "resource Category {\n  name: string!\n  parent: Category? {\n    on_delete: nullify\n  }\n}")

	result, err := newCompiler(filepath.Join(dir, "out")).Compile([]string{main}, nil)
	if err != nil {
		t.Fatalf("a self-referential relationship must warn, not fail: %v", err)
	}
	if len(result.Generated) != 1 {
		t.Errorf("expected the module to still be generated, got %v", result.Generated)
	}
}

func TestCompile_ResourceReopeningMergesIntoOneModule(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	writeFile(t, dir, "user_base.cdt", "resource User {\n  id: string!\n}")
	main := writeFile(t, dir, "main.cdt", "require \"./user_base\"\n\nresource User {\n  email: string!\n}")

	result, err := newCompiler(out).Compile([]string{main}, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	files := result.Modules["User"]
	if len(files) != 2 {
		t.Fatalf("expected both files to contribute to User, got %v", files)
	}

	data, err := os.ReadFile(modulemap.ArtifactPath(out, "User"))
	if err != nil {
		t.Fatal(err)
	}
	code := string(data)
	if !strings.Contains(code, "ID ") || !strings.Contains(code, "Email ") {
		t.Errorf("merged module should carry fields from both declarations:\n%s", code)
	}
}

func TestCompile_EntryReadFreshEachCycle(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	main := writeFile(t, dir, "main.cdt", "resource Main {\n  id: string!\n}")

	comp := newCompiler(out)
	if _, err := comp.Compile([]string{main}, nil); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	writeFile(t, dir, "main.cdt", "resource Main {\n  id: string!\n  name: string!\n}")
	result, err := comp.Compile([]string{main}, nil)
	if err != nil {
		t.Fatalf("second Compile() error = %v", err)
	}

	prog := result.Programs[main]
	if prog == nil || len(prog.Resources[0].Fields) != 2 {
		t.Error("expected the edited entry to be re-read from disk, not served stale from cache")
	}
}

package driver

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/conduit/internal/compiler/ast"
)

// generateModule emits the Go source for one backend module. A module
// corresponds to one resource; when the same resource is reopened in
// several files, every contributing file's declaration is merged into
// the one artefact, in discovery order (providers first).
func generateModule(module string, files []string, programs map[string]*ast.Program) (string, error) {
	var decls []*ast.ResourceNode
	for _, f := range files {
		prog := programs[f]
		if prog == nil {
			continue
		}
		for _, r := range prog.Resources {
			if r.Name == module {
				decls = append(decls, r)
			}
		}
	}
	if len(decls) == 0 {
		return "", fmt.Errorf("no declaration found for module %s", module)
	}

	var b strings.Builder
	b.WriteString("// Code generated by conduit. DO NOT EDIT.\n\n")
	b.WriteString("package models\n\n")

	if doc := decls[0].Documentation; doc != "" {
		fmt.Fprintf(&b, "// %s\n", doc)
	}
	fmt.Fprintf(&b, "type %s struct {\n", module)
	for _, decl := range decls {
		for _, field := range decl.Fields {
			fmt.Fprintf(&b, "\t%s %s `json:%q`\n", exportedName(field.Name), goType(field.Type, field.Nullable), field.Name)
		}
		for _, rel := range decl.Relationships {
			fmt.Fprintf(&b, "\t%s %s `json:%q`\n", exportedName(rel.Name), relType(rel), rel.Name)
		}
	}
	b.WriteString("}\n")

	for _, decl := range decls {
		for _, scope := range decl.Scopes {
			args := make([]string, 0, len(scope.Arguments))
			for _, a := range scope.Arguments {
				args = append(args, fmt.Sprintf("%s %s", a.Name, goType(a.Type, false)))
			}
			fmt.Fprintf(&b, "\n// %s is the %q scope.\nfunc (%s *%s) %s(%s) {}\n",
				exportedName(scope.Name), scope.Name, receiver(module), module, exportedName(scope.Name), strings.Join(args, ", "))
		}
	}

	return b.String(), nil
}

func receiver(name string) string {
	return strings.ToLower(name[:1])
}

// exportedName turns a snake_case declaration name into the exported Go
// identifier it maps to.
func exportedName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if p == "id" {
			parts[i] = "ID"
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

func goType(t *ast.TypeNode, nullable bool) string {
	if t == nil {
		return "any"
	}
	var base string
	switch t.Kind {
	case ast.TypeArray:
		base = "[]" + goType(t.ElementType, false)
	case ast.TypeHash:
		base = fmt.Sprintf("map[%s]%s", goType(t.KeyType, false), goType(t.ValueType, false))
	case ast.TypeEnum:
		base = "string"
	case ast.TypeResource:
		base = t.Name
	case ast.TypeStruct:
		base = "map[string]any"
	default:
		base = primitiveType(t.Name)
	}
	if nullable && !strings.HasPrefix(base, "[]") && !strings.HasPrefix(base, "map[") {
		return "*" + base
	}
	return base
}

func primitiveType(name string) string {
	switch name {
	case "string", "text", "uuid":
		return "string"
	case "int":
		return "int64"
	case "float":
		return "float64"
	case "bool":
		return "bool"
	case "timestamp", "datetime":
		return "time.Time"
	default:
		return "any"
	}
}

func relType(rel *ast.RelationshipNode) string {
	switch rel.Kind {
	case ast.RelationshipHasMany, ast.RelationshipHasManyThrough:
		return "[]*" + rel.Type
	default:
		return "*" + rel.Type
	}
}

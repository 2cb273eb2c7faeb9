package requiregraph

import (
	"bufio"
	"fmt"
	"strings"
)

// Scan walks the raw text of a source file and produces its top-level
// node sequence. It only recognizes three productions: a require
// statement, a macro-if block (with optional else), and a macro-for
// block (whose body is skipped verbatim). Everything else is ordinary
// resource/body text and is ignored -- the discoverer only needs the
// shape of requires and macro conditionals, never the rest of the
// language.
func Scan(content string) ([]Node, error) {
	s := &scanner{lines: strings.Split(content, "\n")}
	nodes, err := s.block()
	if err != nil {
		return nil, err
	}
	if s.pos != len(s.lines) {
		return nil, fmt.Errorf("requiregraph: unexpected macro terminator at line %d", s.pos+1)
	}
	return nodes, nil
}

type scanner struct {
	lines []string
	pos   int
}

func (s *scanner) peek() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	return strings.TrimSpace(s.lines[s.pos]), true
}

// block consumes statements until EOF or an unconsumed `{% else %}` /
// `{% end %}` line, which it leaves for the caller to inspect.
func (s *scanner) block() ([]Node, error) {
	var nodes []Node
	for {
		line, ok := s.peek()
		if !ok {
			return nodes, nil
		}
		if isMacroElse(line) || isMacroEnd(line) {
			return nodes, nil
		}

		switch {
		case isMacroForStart(line):
			startLine := s.pos + 1
			s.pos++
			if err := s.skipMacroForBody(); err != nil {
				return nil, err
			}
			nodes = append(nodes, &MacroFor{Line: startLine})

		case isMacroIfStart(line):
			cond := macroIfCond(line)
			startLine := s.pos + 1
			s.pos++

			thenNodes, err := s.block()
			if err != nil {
				return nil, err
			}

			var elseNodes []Node
			if l, ok := s.peek(); ok && isMacroElse(l) {
				s.pos++
				elseNodes, err = s.block()
				if err != nil {
					return nil, err
				}
			}

			if l, ok := s.peek(); !ok || !isMacroEnd(l) {
				return nil, fmt.Errorf("requiregraph: missing {%% end %%} for macro-if opened at line %d", startLine)
			}
			s.pos++

			nodes = append(nodes, &MacroIf{CondText: cond, Then: thenNodes, Else: elseNodes, Line: startLine})

		default:
			if path, ok := requirePath(line); ok {
				nodes = append(nodes, &Require{Path: path, Line: s.pos + 1})
			}
			s.pos++
		}
	}
}

// skipMacroForBody discards lines until the matching {% end %}, tracking
// nested macro-if/macro-for blocks so an inner `end` doesn't terminate
// the outer one early.
func (s *scanner) skipMacroForBody() error {
	depth := 1
	startLine := s.pos
	for {
		line, ok := s.peek()
		if !ok {
			return fmt.Errorf("requiregraph: missing {%% end %%} for macro-for opened at line %d", startLine)
		}
		switch {
		case isMacroForStart(line), isMacroIfStart(line):
			depth++
		case isMacroEnd(line):
			depth--
		}
		s.pos++
		if depth == 0 {
			return nil
		}
	}
}

func requirePath(line string) (string, bool) {
	if !strings.HasPrefix(line, "require ") {
		return "", false
	}
	arg := strings.TrimSpace(strings.TrimPrefix(line, "require "))
	arg = strings.Trim(arg, `"`)
	if arg == "" {
		return "", false
	}
	return arg, true
}

func isMacroIfStart(line string) bool  { return macroDirective(line, "if") != "" }
func isMacroForStart(line string) bool { return macroDirective(line, "for") != "" }

func isMacroElse(line string) bool {
	return isMacroDelim(line) && strings.TrimSpace(strings.Trim(line, "{%}")) == "else"
}

func isMacroEnd(line string) bool {
	return isMacroDelim(line) && strings.TrimSpace(strings.Trim(line, "{%}")) == "end"
}

func isMacroDelim(line string) bool {
	return strings.HasPrefix(line, "{%") && strings.HasSuffix(line, "%}")
}

// macroDirective returns the text following "{% <kw> " up to "%}" when
// line opens a macro block with the given keyword, or "" otherwise.
func macroDirective(line, kw string) string {
	if !isMacroDelim(line) {
		return ""
	}
	inner := strings.TrimSpace(line[2 : len(line)-2])
	prefix := kw + " "
	if !strings.HasPrefix(inner, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(inner, prefix))
}

func macroIfCond(line string) string {
	return macroDirective(line, "if")
}

// StripDirectives returns content with the preamble grammar blanked
// out: require statements, macro delimiter lines, macro-for bodies
// (template text the resource parser cannot tokenize), and lines
// carrying a bare {{ ... }} expression. Blanked lines are replaced with
// empty ones so every surviving declaration keeps its original line
// number. The resource parser has no preamble grammar at all; this is
// the seam between the discoverer's half of the language and the
// parser's half.
func StripDirectives(content string) string {
	lines := strings.Split(content, "\n")
	forDepth := 0
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if forDepth > 0 {
			switch {
			case isMacroForStart(line), isMacroIfStart(line):
				forDepth++
			case isMacroEnd(line):
				forDepth--
			}
			lines[i] = ""
			continue
		}

		switch {
		case isMacroForStart(line):
			forDepth++
			lines[i] = ""
		case isMacroDelim(line):
			lines[i] = ""
		case strings.Contains(line, "{{"):
			lines[i] = ""
		default:
			if _, ok := requirePath(line); ok {
				lines[i] = ""
			}
		}
	}
	return strings.Join(lines, "\n")
}

// HasMacroCalls reports whether content contains any macro construct at
// all (if/for, or a bare `{{ ... }}` macro expression/call). A file with
// macro calls can never be trusted to compare equal to a prior
// signature, since a macro's expansion is opaque to the signature
// extractor.
func HasMacroCalls(content string) bool {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		t := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(t, "{%") || strings.HasPrefix(t, "{{") {
			return true
		}
	}
	return false
}

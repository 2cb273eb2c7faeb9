package requiregraph

import "strings"

// EvalFlag evaluates a macro-if condition against the active compiler
// flag set. It understands exactly the forms the specification allows:
// a `flag?(:name)` call, its negation, conjunctions/disjunctions of such
// terms, and the boolean literals true/false. Anything else returns
// ok=false so the caller can fall back to exploring both branches.
func EvalFlag(cond string, flags map[string]bool) (result bool, ok bool) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return false, false
	}

	p := &flagParser{input: cond, flags: flags}
	v, ok := p.parseOr()
	if !ok || p.pos != len(p.input) {
		return false, false
	}
	return v, true
}

type flagParser struct {
	input string
	pos   int
	flags map[string]bool
}

func (p *flagParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *flagParser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *flagParser) parseOr() (bool, bool) {
	left, ok := p.parseAnd()
	if !ok {
		return false, false
	}
	for {
		save := p.pos
		if p.consume("||") {
			right, ok := p.parseAnd()
			if !ok {
				p.pos = save
				return false, false
			}
			left = left || right
			continue
		}
		p.pos = save
		return left, true
	}
}

func (p *flagParser) parseAnd() (bool, bool) {
	left, ok := p.parseUnary()
	if !ok {
		return false, false
	}
	for {
		save := p.pos
		if p.consume("&&") {
			right, ok := p.parseUnary()
			if !ok {
				p.pos = save
				return false, false
			}
			left = left && right
			continue
		}
		p.pos = save
		return left, true
	}
}

func (p *flagParser) parseUnary() (bool, bool) {
	if p.consume("!") {
		v, ok := p.parseUnary()
		return !v, ok
	}
	return p.parseAtom()
}

func (p *flagParser) parseAtom() (bool, bool) {
	p.skipSpace()
	switch {
	case p.consume("true"):
		return true, true
	case p.consume("false"):
		return false, true
	case p.consume("("):
		v, ok := p.parseOr()
		if !ok || !p.consume(")") {
			return false, false
		}
		return v, true
	case p.consume("flag?(:"):
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] != ')' {
			p.pos++
		}
		if p.pos >= len(p.input) {
			return false, false
		}
		name := p.input[start:p.pos]
		p.pos++ // consume ')'
		return p.flags[name], true
	default:
		return false, false
	}
}

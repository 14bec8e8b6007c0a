package script

import "fmt"

type parser struct {
	lex  *lexer
	cur  token
	peek token
}

func newParser(src string) *parser {
	p := &parser{lex: newLexer(src)}
	p.cur = p.lex.next()
	p.peek = p.lex.next()
	return p
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.next()
}

func (p *parser) atEOF() bool { return p.cur.kind == tokEOF }

func (p *parser) is(text string) bool {
	return (p.cur.kind == tokPunct || p.cur.kind == tokIdent) && p.cur.text == text
}

func (p *parser) expect(text string) error {
	if !p.is(text) {
		return fmt.Errorf("linker script: expected %q, got %q", text, p.cur.text)
	}
	p.advance()
	return nil
}

// Parse parses one linker script's top-level command list.
func Parse(src string) (*Script, error) {
	p := newParser(src)
	s := &Script{}

	for !p.atEOF() {
		if p.cur.kind != tokIdent && !p.is("{") {
			p.advance()
			continue
		}

		switch p.cur.text {
		case "INPUT", "GROUP":
			p.advance()
			refs, err := p.parseInputList()
			if err != nil {
				return nil, err
			}
			s.Inputs = append(s.Inputs, refs...)
		case "AS_NEEDED":
			p.advance()
			refs, err := p.parseInputList()
			if err != nil {
				return nil, err
			}
			for i := range refs {
				refs[i].AsNeeded = true
			}
			s.Inputs = append(s.Inputs, refs...)
		case "OUTPUT":
			p.advance()
			if err := p.expect("("); err != nil {
				return nil, err
			}
			s.Output = p.cur.text
			p.advance()
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		case "SEARCH_DIR":
			p.advance()
			if err := p.expect("("); err != nil {
				return nil, err
			}
			s.SearchDirs = append(s.SearchDirs, p.cur.text)
			p.advance()
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		case "ENTRY":
			p.advance()
			if err := p.expect("("); err != nil {
				return nil, err
			}
			s.Entry = p.cur.text
			p.advance()
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		case "ASSERT":
			p.advance()
			if err := p.expect("("); err != nil {
				return nil, err
			}
			expr := p.collectUntilDepth0(",", ")")
			msg := ""
			if p.is(",") {
				p.advance()
				msg = p.cur.text
				p.advance()
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			s.Asserts = append(s.Asserts, Assertion{Expr: expr, Message: msg})
		case "PROVIDE", "PROVIDE_HIDDEN":
			hidden := p.cur.text == "PROVIDE_HIDDEN"
			p.advance()
			if err := p.expect("("); err != nil {
				return nil, err
			}
			name := p.cur.text
			p.advance()
			if err := p.expect("="); err != nil {
				return nil, err
			}
			expr := p.collectUntilDepth0(")")
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			s.Provides = append(s.Provides, Provide{Name: name, Expr: expr, Hidden: hidden})
		case "MEMORY":
			p.advance()
			regions, err := p.parseMemory()
			if err != nil {
				return nil, err
			}
			s.Memory = append(s.Memory, regions...)
		case "PHDRS":
			p.advance()
			phdrs, err := p.parsePhdrs()
			if err != nil {
				return nil, err
			}
			s.Phdrs = append(s.Phdrs, phdrs...)
		case "SECTIONS":
			p.advance()
			secs, err := p.parseSections()
			if err != nil {
				return nil, err
			}
			s.OutputSecs = append(s.OutputSecs, secs...)
		case "VERSION":
			p.advance()
			nodes, err := p.parseVersion()
			if err != nil {
				return nil, err
			}
			s.Versions = append(s.Versions, nodes...)
		default:
			// Bare version-script body ("{ global: *; local: foo; };"),
			// or named version nodes ("VERS_1.0 { ... };"), with no
			// leading VERSION keyword; any other unhandled top-level
			// statement is skipped to the terminating semicolon or a
			// balanced brace.
			if p.is("{") {
				nodes, err := p.parseVersionBody("")
				if err != nil {
					return nil, err
				}
				s.Versions = append(s.Versions, nodes)
			} else if p.peek.kind == tokPunct && p.peek.text == "{" {
				nodes, err := p.parseVersion()
				if err != nil {
					return nil, err
				}
				s.Versions = append(s.Versions, nodes...)
			} else {
				p.skipStatement()
			}
		}

		if p.is(";") {
			p.advance()
		}
	}

	return s, nil
}

func (p *parser) parseInputList() ([]InputRef, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var refs []InputRef
	for !p.is(")") && !p.atEOF() {
		if p.is(",") {
			p.advance()
			continue
		}
		if p.cur.text == "AS_NEEDED" {
			p.advance()
			inner, err := p.parseInputList()
			if err != nil {
				return nil, err
			}
			for i := range inner {
				inner[i].AsNeeded = true
			}
			refs = append(refs, inner...)
			continue
		}
		refs = append(refs, InputRef{Name: p.cur.text})
		p.advance()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return refs, nil
}

func (p *parser) parseMemory() ([]MemoryRegion, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var regions []MemoryRegion
	for !p.is("}") && !p.atEOF() {
		name := p.cur.text
		p.advance()
		attr := ""
		if p.is("(") {
			p.advance()
			attr = p.cur.text
			p.advance()
			p.expect(")")
		}
		p.expect(":")
		region := MemoryRegion{Name: name, Attr: attr}
		for !p.is("}") && !p.atEOF() {
			if p.is(",") {
				// A comma either separates this region's attributes or
				// ends the region before the next one's name.
				if k := p.peek.text; k != "ORIGIN" && k != "org" && k != "o" && k != "LENGTH" && k != "len" && k != "l" {
					break
				}
				p.advance()
				continue
			}
			if p.cur.text == "ORIGIN" || p.cur.text == "org" || p.cur.text == "o" {
				p.advance()
				p.expect("=")
				region.Origin = p.collectUntilDepth0(",", "}")
			} else if p.cur.text == "LENGTH" || p.cur.text == "len" || p.cur.text == "l" {
				p.advance()
				p.expect("=")
				region.Length = p.collectUntilDepth0(",", "}")
			} else {
				p.advance()
			}
		}
		regions = append(regions, region)
		if p.is(",") {
			p.advance()
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return regions, nil
}

func (p *parser) parsePhdrs() ([]Phdr, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var phdrs []Phdr
	for !p.is("}") && !p.atEOF() {
		name := p.cur.text
		p.advance()
		typ := p.cur.text
		p.advance()
		flags := ""
		for !p.is(";") && !p.is("}") && !p.atEOF() {
			if p.cur.text == "FLAGS" {
				p.advance()
				p.expect("(")
				flags = p.collectUntilDepth0(")")
				p.expect(")")
			} else {
				p.advance()
			}
		}
		phdrs = append(phdrs, Phdr{Name: name, Type: typ, Flags: flags})
		if p.is(";") {
			p.advance()
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return phdrs, nil
}

// parseSections parses the body of a SECTIONS block into a flat list of
// output section statements. The input-section selector list inside each
// "{ ... }" is kept as raw tokens (e.g. "*(.text .text.*)") rather than
// parsed into its own grammar, since spec.md's testable scenarios only
// need the output section names and their member selectors, not a full
// SECTIONS evaluator.
func (p *parser) parseSections() ([]OutputSectionStmt, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var stmts []OutputSectionStmt
	for !p.is("}") && !p.atEOF() {
		if p.cur.kind != tokIdent {
			p.advance()
			continue
		}
		name := p.cur.text
		p.advance()

		addr := ""
		if !p.is(":") {
			addr = p.collectUntilDepth0(":")
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		if err := p.expect("{"); err != nil {
			return nil, err
		}

		stmt := OutputSectionStmt{Name: name, Address: addr}
		depth := 1
		var cur []rune
		for depth > 0 && !p.atEOF() {
			if p.is("{") {
				depth++
				p.advance()
				continue
			}
			if p.is("}") {
				depth--
				p.advance()
				continue
			}
			if p.is(";") {
				if len(cur) > 0 {
					stmt.Inputs = append(stmt.Inputs, string(cur))
					cur = nil
				}
				p.advance()
				continue
			}
			if len(cur) > 0 {
				cur = append(cur, ' ')
			}
			cur = append(cur, []rune(p.cur.text)...)
			p.advance()
		}
		if len(cur) > 0 {
			stmt.Inputs = append(stmt.Inputs, string(cur))
		}
		stmts = append(stmts, stmt)
		if p.is(";") {
			p.advance()
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) parseVersion() ([]VersionNode, error) {
	// Either an anonymous "VERSION { ... };" or a sequence of named nodes
	// "VERSION_1.0 { ... } VERSION_2.0 { ... } VERSION_1.0;".
	if p.is("{") {
		node, err := p.parseVersionBody("")
		return []VersionNode{node}, err
	}

	var nodes []VersionNode
	for p.cur.kind == tokIdent && !p.atEOF() {
		name := p.cur.text
		p.advance()
		node, err := p.parseVersionBody(name)
		if err != nil {
			return nil, err
		}
		if p.cur.kind == tokIdent && !p.is("VERSION") {
			node.Parent = p.cur.text
			p.advance()
		}
		nodes = append(nodes, node)
		if p.is(";") {
			p.advance()
		}
	}
	return nodes, nil
}

func (p *parser) parseVersionBody(name string) (VersionNode, error) {
	node := VersionNode{Name: name}
	if err := p.expect("{"); err != nil {
		return node, err
	}

	local := false
	for !p.is("}") && !p.atEOF() {
		if p.cur.text == "global" && p.peek.text == ":" {
			local = false
			p.advance()
			p.advance()
			continue
		}
		if p.cur.text == "local" && p.peek.text == ":" {
			local = true
			p.advance()
			p.advance()
			continue
		}
		if p.is(";") {
			p.advance()
			continue
		}
		if p.is("}") {
			break
		}
		node.Patterns = append(node.Patterns, VersionPattern{Pattern: p.cur.text, Local: local})
		p.advance()
	}

	if err := p.expect("}"); err != nil {
		return node, err
	}
	return node, nil
}

// collectUntilDepth0 joins tokens (space-separated) until one of the
// stop punctuation strings is seen at paren/brace depth 0.
func (p *parser) collectUntilDepth0(stops ...string) string {
	isStop := func() bool {
		for _, s := range stops {
			if p.is(s) {
				return true
			}
		}
		return false
	}

	depth := 0
	var out []rune
	for !p.atEOF() {
		if depth == 0 && isStop() {
			break
		}
		switch p.cur.text {
		case "(", "[":
			depth++
		case ")", "]":
			depth--
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, []rune(p.cur.text)...)
		p.advance()
	}
	return string(out)
}

// skipStatement advances past tokens until a terminating ";" at depth 0,
// or a balanced "{ ... }" block, whichever comes first. Used for
// directives this parser doesn't model (e.g. OUTPUT_FORMAT, TARGET).
func (p *parser) skipStatement() {
	if p.cur.kind == tokIdent {
		p.advance()
	}
	if p.is("(") {
		depth := 0
		for !p.atEOF() {
			if p.is("(") {
				depth++
			} else if p.is(")") {
				depth--
			}
			p.advance()
			if depth == 0 {
				break
			}
		}
		return
	}
	if p.is("{") {
		depth := 0
		for !p.atEOF() {
			if p.is("{") {
				depth++
			} else if p.is("}") {
				depth--
			}
			p.advance()
			if depth == 0 {
				break
			}
		}
		return
	}
	for !p.atEOF() && !p.is(";") {
		p.advance()
	}
}

// Package script implements a recursive-descent parser for the subset of
// the GNU linker script language spec.md §6 names: INPUT, GROUP,
// AS_NEEDED, OUTPUT, SEARCH_DIR, SECTIONS, PHDRS, MEMORY, VERSION, ENTRY,
// ASSERT, PROVIDE, and arithmetic expressions used inside those. It does
// not attempt the full bison grammar GNU ld accepts; unrecognized
// directives inside a SECTIONS/PHDRS/MEMORY block are skipped by brace
// matching rather than rejected, the same tolerant stance the teacher's
// own archive/ELF readers take toward fields they don't interpret.
package script

// InputRef is one file named by INPUT/GROUP, optionally wrapped in
// AS_NEEDED(...).
type InputRef struct {
	Name     string
	AsNeeded bool
}

// Assertion is one ASSERT(expr, message) statement. Expr is kept as the
// raw token text rather than a parsed arithmetic tree: the linker only
// needs to report the message when asked to evaluate scripts that fail,
// and spec.md's testable scenarios never require evaluating one.
type Assertion struct {
	Expr    string
	Message string
}

// Provide is one PROVIDE(name = expr) or PROVIDE_HIDDEN(name = expr).
type Provide struct {
	Name   string
	Expr   string
	Hidden bool
}

// MemoryRegion is one NAME (ATTR) : ORIGIN = x, LENGTH = y entry from a
// MEMORY block.
type MemoryRegion struct {
	Name   string
	Attr   string
	Origin string
	Length string
}

// Phdr is one "name TYPE [FLAGS(n)];" entry from a PHDRS block.
type Phdr struct {
	Name  string
	Type  string
	Flags string
}

// VersionPattern is one symbol-matching glob inside a VERSION node's
// global: or local: list.
type VersionPattern struct {
	Pattern string
	Local   bool
}

// VersionNode is one version name block: "NAME { global: pat; local: pat; } [parent];"
// An anonymous (unnamed) top-level VERSION{} script has Name == "".
type VersionNode struct {
	Name     string
	Parent   string
	Patterns []VersionPattern
}

// OutputSectionStmt is one output section description in a SECTIONS
// block's body, with its raw input-section selector list kept verbatim.
// Every identifier in the body is read as an output section name; symbol
// assignments such as "PROVIDE(foo = .);" are not recognized there.
type OutputSectionStmt struct {
	Name    string
	Address string
	Inputs  []string
}

// Script is the parsed result of one linker script file.
type Script struct {
	Inputs      []InputRef
	Output      string
	SearchDirs  []string
	Entry       string
	Asserts     []Assertion
	Provides    []Provide
	Memory      []MemoryRegion
	Phdrs       []Phdr
	Versions    []VersionNode
	OutputSecs  []OutputSectionStmt
}

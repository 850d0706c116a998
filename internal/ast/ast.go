// Package ast holds the parser's output: one Module per "module ... {
// ... }" declaration, with every part/wire argument and result
// expression captured verbatim and in declaration order. The parser
// leaves each Expr's Offset and Width at zero; width inference
// (internal/sema) keeps widths in its own symbol table and does not
// write them back here.
package ast

// ExprKind distinguishes the three expression shapes the grammar
// allows: a (possibly sliced) identifier, an integer literal (must
// resolve to 0 or 1), or a brace concatenation of sub-expressions.
type ExprKind int

const (
	Ident ExprKind = iota
	IntLit
	Concat
)

// Expr is the "symbol entry" of spec.md §3: a reference to a signal,
// optionally sliced. Its offset/width pair is not filled in by the
// parser or by sema and stays zero.
type Expr struct {
	Kind ExprKind
	Line int

	// Ident
	Name    string
	Sliced  bool // true if "[i]" or "[i..j]" was written
	Lo, Hi  int  // inclusive bit range as written; Lo==Hi for "[i]"
	Offset  int  // starting bit within the referent; left at zero
	Width   int  // number of bits this Expr denotes; left at zero

	// IntLit
	IntVal int // 0 or 1

	// Concat
	Parts []*Expr
}

// Param is a module interface parameter: "name" or "name[N]".
type Param struct {
	Name  string
	Width int // 1 if no bracket was written
	Line  int
}

// Part is one part statement: "(label:)? Module(args) -> results".
type Part struct {
	Label      string // "" if anonymous
	ModuleName string
	Args       []*Expr
	Results    []*Expr
	Line       int
}

// Wire is one wire statement: "input -> output".
type Wire struct {
	Input  *Expr // Concat or a single Ident/IntLit
	Output *Expr // always an Ident (possibly sliced)
	Line   int
}

// Module is one parsed "module name(...) -> (...) { ... }" declaration.
type Module struct {
	Name    string
	Inputs  []Param
	Outputs []Param
	Parts   []*Part
	Wires   []*Wire
	Line    int
}

// File is the result of parsing one source unit: every module
// declaration, in the order they appeared.
type File struct {
	Modules []*Module
}

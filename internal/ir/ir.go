// Package ir holds the compiled representation of a module — the
// "module descriptor" of spec.md §3 — plus the insertion-ordered
// registry of descriptors and the static capacity limits a
// compilation must respect.
package ir

import "fmt"

// SourceKind tags what a single input bit of a part, or a single
// output bit of a module, is ultimately wired to.
type SourceKind int

const (
	// Unassigned marks a module-output bit that has not yet been
	// given a producer; surviving past compilation is a compile
	// error (spec.md §9 Open Questions: never leave this as a
	// silent nil, always surface it).
	Unassigned SourceKind = iota
	External   // a bit of the enclosing module's own input vector
	Internal   // a bit of a sibling part's output vector
	ConstZero
	ConstOne
)

// Source identifies the producer of one bit.
type Source struct {
	Kind      SourceKind
	ParamBit  int // for External: absolute bit index in the input vector
	PartIndex int // for Internal: index into Module.Parts
	PartBit   int // for Internal: absolute bit index in that part's output vector
}

// Part is one instantiated sub-module within a compiled Module.
type Part struct {
	Desc  *Module
	Label string // "" if the part was anonymous
}

// Module is the compiled descriptor of spec.md §3: either one of the
// three primitives, or a composition of previously compiled parts.
type Module struct {
	Name string

	InputWidths  []int
	InputCount   int
	OutputWidths []int
	OutputCount  int

	Parts       []Part
	Connections [][]Source // Connections[p] has len == Parts[p].Desc.InputCount
	Outputs     []Source   // len == OutputCount

	SinkCounts []int // len == InputCount; computed bottom-up, post-lowering only
	NodeCount  int
	DffCount   int

	IsNand bool
	IsDff  bool
	IsRAM  bool
}

// Class distinguishes the error taxonomy of spec.md §7.
type Class int

const (
	ClassCompile Class = iota
	ClassCapacity
	ClassSimulate
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassCompile:
		return "compile"
	case ClassCapacity:
		return "capacity"
	case ClassSimulate:
		return "simulate"
	case ClassInternal:
		return "internal"
	default:
		return "error"
	}
}

// Error is a classified diagnostic. errors.As lets a host distinguish
// error classes without string matching (spec.md §7).
type Error struct {
	Class Class
	Line  int
	Msg   string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s error: line %d: %s", e.Class, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s error: %s", e.Class, e.Msg)
}

func CompileErr(line int, format string, args ...interface{}) error {
	return &Error{Class: ClassCompile, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func CapacityErr(line int, format string, args ...interface{}) error {
	return &Error{Class: ClassCapacity, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func SimulateErr(format string, args ...interface{}) error {
	return &Error{Class: ClassSimulate, Msg: fmt.Sprintf(format, args...)}
}

func InternalErr(format string, args ...interface{}) error {
	return &Error{Class: ClassInternal, Msg: fmt.Sprintf(format, args...)}
}

// Static capacities from spec.md §4.9.
const (
	MaxParts           = 64
	MaxWires           = 32
	MaxInputBits       = 160
	MaxOutputBits      = 128
	MaxModulesPerBuild = 64
)

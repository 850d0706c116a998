// Package sema implements width inference, symbol resolution, and
// connection lowering (spec.md §4.3–§4.4) as a single pass over a
// parsed module: part results and module inputs/outputs have no
// forward-reference problem (their width follows immediately from an
// already-compiled descriptor or a declared parameter), so only wire
// outputs need the iterative fixed-point resolution spec.md describes,
// and once a wire's inputs all resolve, the same step lowers it
// straight to connections — there is no separate later "purely width"
// phase to redo as sources.
package sema

import "grci/internal/ir"

// symKind distinguishes the four places an identifier can resolve to,
// per spec.md §3's "offset ... into a module input, output, sibling
// part output, wire output, or constant literal".
type symKind int

const (
	symModInput symKind = iota
	symModOutput
	symPartOut
	symWireOut
)

// symbol is one entry of a module's working symbol table. For
// symModOutput it additionally tracks, bit by bit, whether a producer
// has been wired yet — spec.md §9's "detect any unwired module output
// bit" invariant depends on this being checked explicitly rather than
// left as a zero-value Source.
type symbol struct {
	kind symKind
	name string
	width int

	paramBase int // symModInput/symModOutput: offset in the full input/output vector

	partIndex   int // symPartOut: which part produced it
	partBitBase int // symPartOut: offset within that part's output vector

	producer    []ir.Source // symModOutput only, len == width
	producerSet []bool      // symModOutput only, len == width

	resolved []ir.Source // symWireOut only: fully resolved at creation time
}

func constSource(v int) ir.Source {
	if v == 1 {
		return ir.Source{Kind: ir.ConstOne}
	}
	return ir.Source{Kind: ir.ConstZero}
}

func sourceAt(sym *symbol, i int) ir.Source {
	switch sym.kind {
	case symModInput:
		return ir.Source{Kind: ir.External, ParamBit: sym.paramBase + i}
	case symPartOut:
		return ir.Source{Kind: ir.Internal, PartIndex: sym.partIndex, PartBit: sym.partBitBase + i}
	case symWireOut:
		return sym.resolved[i]
	default:
		panic("sourceAt: unexpected symbol kind")
	}
}

// assignProducer writes sources into existing's producer buffer
// starting at bit startOffset, failing if any targeted bit was
// already wired (spec.md §7: "declared-output redeclaration").
func assignProducer(existing *symbol, startOffset int, sources []ir.Source, line int) error {
	for j, s := range sources {
		idx := startOffset + j
		if existing.producerSet[idx] {
			return ir.CompileErr(line, "output %q bit %d is wired more than once", existing.name, idx)
		}
		existing.producer[idx] = s
		existing.producerSet[idx] = true
	}
	return nil
}

// Package sim is the runtime half of the engine: it expands a
// compiled ir.Module into a flat arena of nodes (spec.md §9's "the
// arena owns, nodes reference" design) and drives it one half-cycle
// at a time.
package sim

// nodeKind is the tagged union of spec.md §3's "Runtime node":
// {Constant, Nand, Dff, RamOut}. A sum type over an interface keeps
// eval a single switch instead of a per-kind virtual dispatch layer.
type nodeKind int

const (
	nodeConstant nodeKind = iota
	nodeNand
	nodeDff
	nodeRamOut
)

// node is one arena entry. a and b are indices into the same arena,
// not pointers — indices survive reslicing and let a Dff's input
// reference a node allocated after it, which is exactly how a
// sequential feedback loop is represented (see instance.go's
// ensure/resolveSources).
type node struct {
	kind nodeKind

	constVal bool // nodeConstant

	a, b int // nodeNand: both operands. nodeDff: a is the driving input, b unused.

	ram    *ramBlock // nodeRamOut
	ramBit int       // nodeRamOut: which of the 16 output bits this node exposes

	evalState   evalState
	cachedState bool

	lastState bool // nodeDff only: the committed previous-cycle value
}

// evalState tracks eval's own recursion through a node, independent of
// the ensure/instantiate-time resolving flag in instance.go: ensure
// only ever sees the part-instantiation graph, where a primitive's
// output index is registered before its operands are wired, so a
// cycle formed purely by sibling primitives (two Nands feeding each
// other directly, no composite submodule in between) never trips it.
// eval sees the actual per-step value-dependency graph and is the
// only place a pure combinational cycle — with or without a composite
// submodule boundary in it — can be caught.
type evalState int

const (
	evalUnvisited evalState = iota
	evalInProgress
	evalDone
)

// ramBlock backs one Ram64K part: 65536 sixteen-bit words plus the
// node indices wired to its data/load/address inputs. cachedWord and
// wordValid implement spec.md §4.7's "the first RamOut evaluated per
// step computes the whole word and populates all 16 siblings at once".
type ramBlock struct {
	data [65536]uint16

	inIdx   [16]int
	loadIdx int
	addrIdx [16]int

	cachedWord uint16
	wordValid  bool
}

// eval recursively computes node idx's value for the current step,
// memoising via evalState/cachedState so a fanned-out node is only
// evaluated once regardless of how many consumers read it. A node
// re-entered while still evalInProgress means its value depends on
// itself with no flip-flop anywhere in the chain to supply a stale
// previous-cycle value instead — a pure combinational cycle, which is
// a wiring bug rather than something a step can evaluate.
func (inst *Instance) eval(idx int) bool {
	n := &inst.arena.nodes[idx]
	switch n.evalState {
	case evalDone:
		return n.cachedState
	case evalInProgress:
		panic("sim: combinational cycle with no flip-flop to break it")
	}
	n.evalState = evalInProgress
	var result bool
	switch n.kind {
	case nodeConstant:
		result = n.constVal
	case nodeNand:
		result = !(inst.eval(n.a) && inst.eval(n.b))
	case nodeDff:
		result = n.lastState
	case nodeRamOut:
		result = inst.evalRamOut(n)
	}
	n.cachedState = result
	n.evalState = evalDone
	return result
}

func (inst *Instance) evalRamOut(n *node) bool {
	ram := n.ram
	if !ram.wordValid {
		addr := 0
		for i := 15; i >= 0; i-- {
			addr <<= 1
			if inst.eval(ram.addrIdx[i]) {
				addr |= 1
			}
		}
		ram.cachedWord = ram.data[addr]
		ram.wordValid = true
	}
	return (ram.cachedWord>>uint(n.ramBit))&1 != 0
}

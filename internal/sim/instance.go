package sim

import "grci/internal/ir"

// arena is the flat, index-addressed node storage of spec.md §9,
// shared by a whole instance regardless of how deeply its parts
// nest. Two constant nodes are shared by every consumer in the
// instance, matching "constants 0, 1 ... are each a single node per
// instance".
type arena struct {
	nodes []node
	rams  []*ramBlock

	// dffOrder lists flip-flop node indices in the order they were
	// instantiated; Step walks it to run the rising-edge pass and to
	// slice out a labeled part's own registers (see ensure below).
	dffOrder []int

	constZero, constOne int
}

func newArena() *arena {
	a := &arena{}
	a.constZero = a.alloc(node{kind: nodeConstant, constVal: false})
	a.constOne = a.alloc(node{kind: nodeConstant, constVal: true})
	return a
}

func (a *arena) alloc(n node) int {
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

// resolveSources turns a connection or output list into concrete
// arena indices. callerInputs are the enclosing level's own input
// node indices; siblingOut fetches (instantiating on demand via
// ensure, see instantiate below) another part's output indices at
// the same level.
func resolveSources(a *arena, srcs []ir.Source, callerInputs []int, siblingOut func(int) []int) []int {
	out := make([]int, len(srcs))
	for i, s := range srcs {
		switch s.Kind {
		case ir.External:
			out[i] = callerInputs[s.ParamBit]
		case ir.Internal:
			out[i] = siblingOut(s.PartIndex)[s.PartBit]
		case ir.ConstZero:
			out[i] = a.constZero
		case ir.ConstOne:
			out[i] = a.constOne
		default:
			panic("sim: unassigned source reached instantiation")
		}
	}
	return out
}

// SubmoduleState is a live view onto one labeled part's storage —
// either the flip-flops of a register-like part, or a Ram64K's data
// array — per spec.md §6.2's submodule handle. Reads/writes go
// straight to the flip-flop nodes or RAM words, with no separate
// host-write staging buffer; the next Step observes them.
type SubmoduleState struct {
	dffNodes []int // nil when ram != nil
	ram      *ramBlock
	arena    *arena
}

// IsRAM reports whether this view is backed by a Ram64K part rather
// than a flip-flop register.
func (s *SubmoduleState) IsRAM() bool { return s.ram != nil }

// Len reports the number of host-visible state bits: one per
// flip-flop for a register-like part, or 1,048,576 (65536 sixteen-bit
// words) for a Ram64K part.
func (s *SubmoduleState) Len() int {
	if s.ram != nil {
		return 65536 * 16
	}
	return len(s.dffNodes)
}

// Get reads state bit i, LSB-first within each underlying word for
// RAM (spec.md §6.3's byte-packing convention reinterpreted at
// 16-bit-word granularity — see DESIGN.md for why).
func (s *SubmoduleState) Get(i int) bool {
	if s.ram != nil {
		word := s.ram.data[i/16]
		return (word>>uint(i%16))&1 != 0
	}
	return s.arena.nodes[s.dffNodes[i]].lastState
}

// Set writes state bit i. For a register this is the value the next
// combinational pass (and the next rising edge, unless overwritten by
// the driving logic) will observe.
func (s *SubmoduleState) Set(i int, v bool) {
	if s.ram != nil {
		word := s.ram.data[i/16]
		bit := uint16(1) << uint(i%16)
		if v {
			word |= bit
		} else {
			word &^= bit
		}
		s.ram.data[i/16] = word
		s.ram.wordValid = false
		return
	}
	s.arena.nodes[s.dffNodes[i]].lastState = v
}

// Instance is one instantiation of a compiled module: the top of a
// running simulation (spec.md §3's "module instance").
type Instance struct {
	Desc *ir.Module

	arena *arena

	inputNodes  []int // InputCount Constant-node indices the host writes before Step
	outputNodes []int // OutputCount resolved indices, recomputed fresh each Step

	labeled map[string]*SubmoduleState

	clock bool
}

// NewInstance recursively expands desc into a fresh node arena and
// returns a ready-to-step instance. All instance inputs start low.
func NewInstance(desc *ir.Module) *Instance {
	a := newArena()

	inputNodes := make([]int, desc.InputCount)
	for i := range inputNodes {
		inputNodes[i] = a.alloc(node{kind: nodeConstant, constVal: false})
	}

	labeled := make(map[string]*SubmoduleState)
	outputNodes := instantiate(a, desc, inputNodes, labeled)

	return &Instance{
		Desc:        desc,
		arena:       a,
		inputNodes:  inputNodes,
		outputNodes: outputNodes,
		labeled:     labeled,
	}
}

// instantiate recursively expands desc given its caller-supplied
// input node indices, returning desc's own output node indices.
//
// Parts are resolved lazily and memoized (ensure), not strictly in
// declaration order: a part may reference a sibling declared later in
// the source, which is exactly how a register's combinational
// next-state logic refers back to the register's own Dff output.
// Primitive parts register their arena index *before* resolving their
// own operands, so a cycle that passes through at least one Dff
// terminates — the Dff's identity is known to the rest of the graph
// immediately, well before its driving subgraph is.
//
// The resolving guard below only catches a cycle in the *instantiation*
// graph: a composite submodule part whose own arguments reference its
// own not-yet-returned output. It cannot see a cycle formed purely by
// sibling primitives wired directly to each other (two Nands feeding
// each other's inputs, no composite part and no Dff anywhere in the
// loop) — primitives commit their output index to partOut before their
// operands are resolved, so a re-entrant ensure call on the same
// primitive returns that index immediately instead of ever re-checking
// resolving. That class of pure combinational cycle produces a genuine
// index cycle in the node graph and is instead caught at evaluation
// time, by eval's own evalState guard in node.go, the first time the
// instance is stepped.
func instantiate(a *arena, desc *ir.Module, callerInputs []int, labeled map[string]*SubmoduleState) []int {
	partOut := make([][]int, len(desc.Parts))
	resolving := make([]bool, len(desc.Parts))

	var ensure func(i int) []int
	ensure = func(i int) []int {
		if partOut[i] != nil {
			return partOut[i]
		}
		if resolving[i] {
			panic("sim: combinational cycle with no flip-flop to break it")
		}
		resolving[i] = true

		part := desc.Parts[i]
		desc2 := part.Desc
		dffBefore := len(a.dffOrder)
		var out []int
		var ram *ramBlock

		switch {
		case desc2.IsNand:
			idx := a.alloc(node{kind: nodeNand, a: -1, b: -1})
			out = []int{idx}
			partOut[i] = out
			in := resolveSources(a, desc.Connections[i], callerInputs, ensure)
			a.nodes[idx].a, a.nodes[idx].b = in[0], in[1]

		case desc2.IsDff:
			idx := a.alloc(node{kind: nodeDff, a: -1})
			a.dffOrder = append(a.dffOrder, idx)
			out = []int{idx}
			partOut[i] = out
			in := resolveSources(a, desc.Connections[i], callerInputs, ensure)
			a.nodes[idx].a = in[0]

		case desc2.IsRAM:
			ram = &ramBlock{loadIdx: -1}
			a.rams = append(a.rams, ram)
			outs := make([]int, 16)
			for k := 0; k < 16; k++ {
				outs[k] = a.alloc(node{kind: nodeRamOut, ram: ram, ramBit: k})
			}
			out = outs
			partOut[i] = out
			in := resolveSources(a, desc.Connections[i], callerInputs, ensure)
			copy(ram.inIdx[:], in[0:16])
			ram.loadIdx = in[16]
			copy(ram.addrIdx[:], in[17:33])

		default:
			in := resolveSources(a, desc.Connections[i], callerInputs, ensure)
			out = instantiate(a, desc2, in, labeled)
			partOut[i] = out
		}

		if part.Label != "" {
			rec := &SubmoduleState{arena: a, ram: ram}
			if ram == nil {
				rec.dffNodes = append([]int(nil), a.dffOrder[dffBefore:]...)
			}
			labeled[part.Label] = rec
		}

		resolving[i] = false
		return out
	}

	// Flip-flops first, so feedback through a Dff at this level
	// terminates whichever part of the loop is declared first.
	for i, p := range desc.Parts {
		if p.Desc.IsDff {
			ensure(i)
		}
	}
	for i := range desc.Parts {
		ensure(i)
	}

	return resolveSources(a, desc.Outputs, callerInputs, ensure)
}

// SetInput sets instance input bit i.
func (inst *Instance) SetInput(i int, v bool) {
	inst.arena.nodes[inst.inputNodes[i]].constVal = v
}

// Output reads module output bit i as of the last Step (or the
// all-zero reset state before the first Step).
func (inst *Instance) Output(i int) bool {
	return inst.arena.nodes[inst.outputNodes[i]].cachedState
}

// Submodule returns the labeled part's state view, or nil if no part
// in the instance carries that label (spec.md §7's "unknown submodule
// label" simulation error — surfaced as a nil result here so the
// caller can report it in terms meaningful to their own host API).
func (inst *Instance) Submodule(label string) *SubmoduleState {
	return inst.labeled[label]
}

// Step advances the instance by one half-cycle and returns the new
// clock level, exactly mirroring spec.md §4.7's eight-step procedure
// (steps 1, 2 and 7 — host-input propagation, staged state writes and
// the state mirror — collapse into direct reads/writes through
// SetInput/SubmoduleState in this port).
func (inst *Instance) Step() bool {
	inst.clock = !inst.clock

	inst.resetVisited()

	if inst.clock {
		inst.runRisingEdge()
		inst.resetVisited()
	}

	for _, i := range inst.outputNodes {
		inst.eval(i)
	}

	return inst.clock
}

func (inst *Instance) resetVisited() {
	for i := range inst.arena.nodes {
		inst.arena.nodes[i].evalState = evalUnvisited
	}
	for _, r := range inst.arena.rams {
		r.wordValid = false
	}
}

// runRisingEdge computes every flip-flop's new value from the
// *previous* cycle's stored state, then commits all of them at once —
// the two-pass scheme spec.md §9 calls for to avoid a flip-flop racing
// its own new value through a combinational cone shared with another
// flip-flop.
func (inst *Instance) runRisingEdge() {
	newState := make([]bool, len(inst.arena.dffOrder))
	for k, idx := range inst.arena.dffOrder {
		n := &inst.arena.nodes[idx]
		newState[k] = inst.eval(n.a)
		inst.resetNonDffVisited()
	}

	// RAM writes sample load/address/data the same way a flip-flop
	// samples its input: against the pre-edge state of every other
	// flip-flop, before any of this edge's new values are committed.
	type pendingWrite struct {
		ram  *ramBlock
		addr int
		word uint16
	}
	var writes []pendingWrite
	for _, ram := range inst.arena.rams {
		if ram.loadIdx < 0 || !inst.eval(ram.loadIdx) {
			continue
		}
		addr := 0
		for i := 15; i >= 0; i-- {
			addr <<= 1
			if inst.eval(ram.addrIdx[i]) {
				addr |= 1
			}
		}
		var word uint16
		for i := 15; i >= 0; i-- {
			word <<= 1
			if inst.eval(ram.inIdx[i]) {
				word |= 1
			}
		}
		writes = append(writes, pendingWrite{ram, addr, word})
	}
	inst.resetNonDffVisited()

	for k, idx := range inst.arena.dffOrder {
		inst.arena.nodes[idx].lastState = newState[k]
	}
	for _, w := range writes {
		w.ram.data[w.addr] = w.word
	}
}

func (inst *Instance) resetNonDffVisited() {
	for i := range inst.arena.nodes {
		if inst.arena.nodes[i].kind != nodeDff {
			inst.arena.nodes[i].evalState = evalUnvisited
		}
	}
	for _, r := range inst.arena.rams {
		r.wordValid = false
	}
}

package sim

import (
	"testing"

	"grci/internal/ir"
)

func nandModule() *ir.Module { return ir.Nand }
func dffModule() *ir.Module  { return ir.Dff }

// TestStepAndFromNand is end-to-end scenario 1 of the spec's testable
// properties: And(a,b) built from two Nands evaluates the truth table
// {0,0,0,1}.
func TestStepAndFromNand(t *testing.T) {
	desc := &ir.Module{
		Name:         "And",
		InputWidths:  []int{1, 1},
		InputCount:   2,
		OutputWidths: []int{1},
		OutputCount:  1,
		Parts: []ir.Part{
			{Desc: nandModule()},
			{Desc: nandModule()},
		},
		Connections: [][]ir.Source{
			{{Kind: ir.External, ParamBit: 0}, {Kind: ir.External, ParamBit: 1}},
			{{Kind: ir.Internal, PartIndex: 0, PartBit: 0}, {Kind: ir.Internal, PartIndex: 0, PartBit: 0}},
		},
		Outputs:   []ir.Source{{Kind: ir.Internal, PartIndex: 1, PartBit: 0}},
		NodeCount: 2,
	}

	cases := []struct{ a, b, want bool }{
		{false, false, false},
		{false, true, false},
		{true, false, false},
		{true, true, true},
	}
	for _, c := range cases {
		inst := NewInstance(desc)
		inst.SetInput(0, c.a)
		inst.SetInput(1, c.b)
		inst.Step()
		if got := inst.Output(0); got != c.want {
			t.Errorf("And(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// muxModule builds a 2:1 multiplexer descriptor: out = sel ? b : a,
// using only Nand — four gates implementing (a & !sel) | (b & sel).
func muxModule() *ir.Module {
	return &ir.Module{
		Name:         "Mux",
		InputWidths:  []int{1, 1, 1},
		InputCount:   3,
		OutputWidths: []int{1},
		OutputCount:  1,
		Parts: []ir.Part{
			{Desc: nandModule()}, // 0: notSel = Nand(sel,sel)
			{Desc: nandModule()}, // 1: t1 = Nand(a, notSel)
			{Desc: nandModule()}, // 2: t2 = Nand(b, sel)
			{Desc: nandModule()}, // 3: out = Nand(t1, t2)
		},
		Connections: [][]ir.Source{
			{{Kind: ir.External, ParamBit: 2}, {Kind: ir.External, ParamBit: 2}},
			{{Kind: ir.External, ParamBit: 0}, {Kind: ir.Internal, PartIndex: 0, PartBit: 0}},
			{{Kind: ir.External, ParamBit: 1}, {Kind: ir.External, ParamBit: 2}},
			{{Kind: ir.Internal, PartIndex: 1, PartBit: 0}, {Kind: ir.Internal, PartIndex: 2, PartBit: 0}},
		},
		Outputs:   []ir.Source{{Kind: ir.Internal, PartIndex: 3, PartBit: 0}},
		NodeCount: 4,
	}
}

// registerBitModule is a 1-bit load/hold register: Dff(Mux(q, in, load)).
// q is the register's own previous output, fed back combinationally —
// the same feedback-through-a-Dff shape the full 8-bit register of the
// spec's scenario 3 uses, at a width small enough to hand-verify.
func registerBitModule() *ir.Module {
	mux := muxModule()
	return &ir.Module{
		Name:         "RegisterBit",
		InputWidths:  []int{1, 1},
		InputCount:   2,
		OutputWidths: []int{1},
		OutputCount:  1,
		Parts: []ir.Part{
			{Desc: mux},    // 0: Mux(q, in, load) -- references part 1's output, declared after it
			{Desc: dffModule(), Label: "q"}, // 1: Dff(mux_out)
		},
		Connections: [][]ir.Source{
			{
				{Kind: ir.Internal, PartIndex: 1, PartBit: 0}, // q (fed back)
				{Kind: ir.External, ParamBit: 0},              // in
				{Kind: ir.External, ParamBit: 1},              // load
			},
			{{Kind: ir.Internal, PartIndex: 0, PartBit: 0}},
		},
		Outputs:   []ir.Source{{Kind: ir.Internal, PartIndex: 1, PartBit: 0}},
		NodeCount: mux.NodeCount + 1,
		DffCount:  1,
	}
}

// cycle drives one full clock cycle: Step is a single half-cycle
// (spec.md §4.7), so a rising edge followed by the matching falling
// edge is two calls.
func cycle(inst *Instance) {
	inst.Step()
	inst.Step()
}

func TestStepRegisterLoadAndHold(t *testing.T) {
	desc := registerBitModule()
	inst := NewInstance(desc)

	set := func(in, load bool) {
		inst.SetInput(0, in)
		inst.SetInput(1, load)
	}

	// load=0: holding, starts at 0.
	set(true, false)
	cycle(inst)
	if inst.Output(0) {
		t.Fatalf("register changed state while load was low")
	}

	// load=1: captures the input on the rising edge.
	set(true, true)
	cycle(inst)
	if !inst.Output(0) {
		t.Fatalf("register did not load a 1")
	}

	// load=0 again: must hold the loaded value regardless of in.
	set(false, false)
	cycle(inst)
	if !inst.Output(0) {
		t.Fatalf("register lost its value after load dropped")
	}
}

// shiftRegisterModule is the two-stage shift register of scenario 4:
// stage2 = Dff(stage1), stage1 = Dff(in).
func shiftRegisterModule() *ir.Module {
	return &ir.Module{
		Name:         "Shift2",
		InputWidths:  []int{1},
		InputCount:   1,
		OutputWidths: []int{1, 1},
		OutputCount:  2,
		Parts: []ir.Part{
			{Desc: dffModule()}, // 0: stage1 = Dff(in)
			{Desc: dffModule()}, // 1: stage2 = Dff(stage1)
		},
		Connections: [][]ir.Source{
			{{Kind: ir.External, ParamBit: 0}},
			{{Kind: ir.Internal, PartIndex: 0, PartBit: 0}},
		},
		Outputs: []ir.Source{
			{Kind: ir.Internal, PartIndex: 0, PartBit: 0},
			{Kind: ir.Internal, PartIndex: 1, PartBit: 0},
		},
		NodeCount: 2,
		DffCount:  2,
	}
}

// TestStepFlipFlopRaceSafety is scenario 4: after two rising edges of
// input 1,0, stage1 must read the value sampled on the *second* edge
// (0) while stage2 reads what stage1 held going into that edge (1) —
// not the value stage1 just adopted. A naive single-pass evaluator
// that updated stage1 and then immediately re-read it for stage2
// would instead leave both stages at 0.
func TestStepFlipFlopRaceSafety(t *testing.T) {
	desc := shiftRegisterModule()
	inst := NewInstance(desc)

	inputs := []bool{true, false}
	for _, in := range inputs {
		inst.SetInput(0, in)
		cycle(inst)
	}

	if inst.Output(0) != false || inst.Output(1) != true {
		t.Fatalf("got stage1=%v stage2=%v, want stage1=false stage2=true", inst.Output(0), inst.Output(1))
	}
}

func ramModule() *ir.Module {
	ram := ir.Ram64K
	outs := make([]ir.Source, 16)
	conns := make([]ir.Source, 33)
	for i := 0; i < 33; i++ {
		conns[i] = ir.Source{Kind: ir.External, ParamBit: i}
	}
	for i := 0; i < 16; i++ {
		outs[i] = ir.Source{Kind: ir.Internal, PartIndex: 0, PartBit: i}
	}
	return &ir.Module{
		Name:         "RamTop",
		InputWidths:  []int{16, 1, 16},
		InputCount:   33,
		OutputWidths: []int{16},
		OutputCount:  16,
		Parts:        []ir.Part{{Desc: ram, Label: "mem"}},
		Connections:  [][]ir.Source{conns},
		Outputs:      outs,
		NodeCount:    16,
	}
}

func setWord(inst *Instance, base int, width int, v uint64) {
	for i := 0; i < width; i++ {
		inst.SetInput(base+i, v&(1<<uint(i)) != 0)
	}
}

func readWord(inst *Instance, base, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		if inst.Output(base + i) {
			v |= 1 << uint(i)
		}
	}
	return v
}

// TestStepRamWriteThenRead is scenario 5: write 0xBEEF at 0x1000 on a
// rising edge, then read it back combinationally with load low.
func TestStepRamWriteThenRead(t *testing.T) {
	desc := ramModule()
	inst := NewInstance(desc)

	setWord(inst, 0, 16, 0xBEEF) // data in
	inst.SetInput(16, true)      // load
	setWord(inst, 17, 16, 0x1000)
	inst.Step() // rising edge: write

	inst.SetInput(16, false) // load
	setWord(inst, 17, 16, 0x1000)
	inst.Step() // falling edge: combinational read

	if got := readWord(inst, 0, 16); got != 0xBEEF {
		t.Fatalf("read back 0x%04X, want 0xBEEF", got)
	}
}

// TestSubmoduleStateRoundTrip exercises the register-state view: write
// via SubmoduleState, step with a no-op input, read it back.
func TestSubmoduleStateRoundTrip(t *testing.T) {
	desc := registerBitModule()
	inst := NewInstance(desc)

	reg := inst.Submodule("q")
	if reg == nil {
		t.Fatalf("expected a labeled submodule \"q\"")
	}
	reg.Set(0, true)

	inst.SetInput(0, false)
	inst.SetInput(1, false) // load=0, no-op
	inst.Step()

	if !reg.Get(0) {
		t.Fatalf("register state did not round-trip through a no-op step")
	}
}

// TestRamSubmoduleStatePoke exercises the Ram64K state view directly,
// bypassing the simulated load line.
func TestRamSubmoduleStatePoke(t *testing.T) {
	desc := ramModule()
	inst := NewInstance(desc)

	mem := inst.Submodule("mem")
	if mem == nil || !mem.IsRAM() {
		t.Fatalf("expected a RAM-backed submodule \"mem\"")
	}
	for i := 0; i < 16; i++ {
		mem.Set(16*5+i, (0xCAFE>>uint(i))&1 != 0)
	}

	setWord(inst, 16, 1, 0) // load = 0
	setWord(inst, 17, 16, 5)
	inst.Step()

	if got := readWord(inst, 0, 16); got != 0xCAFE {
		t.Fatalf("read 0x%04X after poke, want 0xCAFE", got)
	}
}

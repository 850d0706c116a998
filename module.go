package grci

import (
	"grci/internal/ir"
	"grci/internal/sim"
)

// Module is a running instance of a compiled module — the top of one
// simulation (spec.md §3's "module instance"). Create one with
// (*Compiler).NewModule.
type Module struct {
	desc *ir.Module
	inst *sim.Instance
}

func newModule(desc *ir.Module) *Module {
	return &Module{desc: desc, inst: sim.NewInstance(desc)}
}

// InputCount and OutputCount report the module's interface width in
// bits, for a host that wants to drive or read it generically.
func (m *Module) InputCount() int  { return m.desc.InputCount }
func (m *Module) OutputCount() int { return m.desc.OutputCount }

// SetInput drives instance input bit i. Bits are numbered in
// declaration order across the module's parameter list: a second
// 4-bit parameter's bit 0 is instance input bit 4, and so on.
func (m *Module) SetInput(i int, v bool) {
	m.inst.SetInput(i, v)
}

// SetInputWord drives count consecutive input bits starting at
// offset from the low bits of a host-side integer, LSB-first — the
// common case of feeding a whole bus in one call.
func (m *Module) SetInputWord(offset, count int, value uint64) {
	for i := 0; i < count; i++ {
		m.inst.SetInput(offset+i, value&(1<<uint(i)) != 0)
	}
}

// Output reads output bit i as of the last Step.
func (m *Module) Output(i int) bool {
	return m.inst.Output(i)
}

// OutputWord reads count consecutive output bits starting at offset
// back into a host-side integer, LSB-first.
func (m *Module) OutputWord(offset, count int) uint64 {
	var v uint64
	for i := 0; i < count; i++ {
		if m.inst.Output(offset + i) {
			v |= 1 << uint(i)
		}
	}
	return v
}

// Step advances the simulation by one half-cycle and returns the new
// clock level (true on the rising-edge half).
func (m *Module) Step() bool {
	return m.inst.Step()
}

// Close releases the instance. The underlying arena becomes garbage
// once m is unreferenced; Close exists for symmetry with
// destroy_module in the source API.
func (m *Module) Close() {
	m.inst = nil
}

// Submodule returns a handle onto a labeled part's own state: a
// Register view if the part is (or expands to) flip-flops, or a Ram
// view if it is a Ram64K instance. It returns nil if no part carries
// that label — spec.md §7's "unknown submodule label" simulation
// error, surfaced here as a nil result rather than a Go error so a
// caller can decide how harshly to treat a typo'd label.
func (m *Module) Submodule(label string) *Register {
	st := m.inst.Submodule(label)
	if st == nil || st.IsRAM() {
		return nil
	}
	return &Register{st: st}
}

// Ram returns a 64K-word memory view onto a labeled Ram64K part, or
// nil if label does not name one.
func (m *Module) Ram(label string) *Ram {
	st := m.inst.Submodule(label)
	if st == nil || !st.IsRAM() {
		return nil
	}
	return &Ram{st: st}
}

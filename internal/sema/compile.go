package sema

import (
	"grci/internal/ast"
	"grci/internal/ir"
)

// Compile lowers one parsed module into a compiled descriptor,
// resolving every part against reg (submodules must already be
// registered — spec.md §7's ban on forward or self reference between
// modules falls straight out of that: a part naming the module
// currently being compiled simply won't be found yet).
//
// Compile never mutates reg; the caller registers the result (or
// rolls the whole compile_src call back) once every module in the
// source file has compiled successfully.
func Compile(reg *ir.Registry, m *ast.Module) (*ir.Module, error) {
	if len(m.Parts) > ir.MaxParts {
		return nil, ir.CapacityErr(m.Line, "module %q has %d parts, limit is %d", m.Name, len(m.Parts), ir.MaxParts)
	}
	if len(m.Wires) > ir.MaxWires {
		return nil, ir.CapacityErr(m.Line, "module %q has %d wires, limit is %d", m.Name, len(m.Wires), ir.MaxWires)
	}

	symtab := make(map[string]*symbol)

	inputWidths, inputCount, err := declareParams(symtab, m.Inputs, symModInput, m.Line)
	if err != nil {
		return nil, err
	}
	if inputCount > ir.MaxInputBits {
		return nil, ir.CapacityErr(m.Line, "module %q has %d input bits, limit is %d", m.Name, inputCount, ir.MaxInputBits)
	}
	outputWidths, outputCount, err := declareParams(symtab, m.Outputs, symModOutput, m.Line)
	if err != nil {
		return nil, err
	}
	if outputCount > ir.MaxOutputBits {
		return nil, ir.CapacityErr(m.Line, "module %q has %d output bits, limit is %d", m.Name, outputCount, ir.MaxOutputBits)
	}

	parts := make([]ir.Part, 0, len(m.Parts))
	partArgs := make([][]*ast.Expr, 0, len(m.Parts))
	partLines := make([]int, 0, len(m.Parts))

	// Phase 2: every part's results resolve immediately — a
	// submodule was compiled before this one, so its output widths
	// are already known and carry no forward-reference risk.
	for _, p := range m.Parts {
		desc := reg.Lookup(p.ModuleName)
		if desc == nil {
			return nil, ir.CompileErr(p.Line, "unknown module %q", p.ModuleName)
		}
		if len(p.Args) != len(desc.InputWidths) {
			return nil, ir.CompileErr(p.Line, "%q expects %d arguments, got %d", p.ModuleName, len(desc.InputWidths), len(p.Args))
		}
		if len(p.Results) != len(desc.OutputWidths) {
			return nil, ir.CompileErr(p.Line, "%q expects %d results, got %d", p.ModuleName, len(desc.OutputWidths), len(p.Results))
		}

		partIndex := len(parts)
		parts = append(parts, ir.Part{Desc: desc, Label: p.Label})
		partArgs = append(partArgs, p.Args)
		partLines = append(partLines, p.Line)

		cum := 0
		for k, res := range p.Results {
			width := desc.OutputWidths[k]
			if res.Kind != ast.Ident {
				return nil, ir.CompileErr(res.Line, "a part result must be a plain identifier, not a concatenation")
			}
			sources := make([]ir.Source, width)
			for i := range sources {
				sources[i] = ir.Source{Kind: ir.Internal, PartIndex: partIndex, PartBit: cum + i}
			}
			if err := bindResult(symtab, res, sources); err != nil {
				return nil, err
			}
			cum += width
		}
	}

	// Phase 3+4 merged: a wire's output can only ever be resolved
	// once every leaf of its input expression is — including leaves
	// that are themselves other wires' outputs — so width inference
	// and connection lowering happen together, in fixed-point order.
	remaining := make([]int, len(m.Wires))
	for i := range remaining {
		remaining[i] = i
	}
	for len(remaining) > 0 {
		pending := make(map[string]bool, len(remaining))
		for _, idx := range remaining {
			w := m.Wires[idx]
			if !w.Output.Sliced {
				if _, exists := symtab[w.Output.Name]; !exists {
					pending[w.Output.Name] = true
				}
			}
		}

		var stillRemaining []int
		progressed := false
		for _, idx := range remaining {
			w := m.Wires[idx]
			ok, err := resolveWire(symtab, w, pending)
			if err != nil {
				return nil, err
			}
			if ok {
				progressed = true
			} else {
				stillRemaining = append(stillRemaining, idx)
			}
		}
		if !progressed {
			first := m.Wires[stillRemaining[0]]
			return nil, ir.CompileErr(first.Line, "cannot resolve wire into %q: unknown identifier or circular reference", first.Output.Name)
		}
		remaining = stillRemaining
	}

	// Phase 4, continued: every part's arguments resolve now that
	// every wire output (and hence every symbol a part could legally
	// reference) exists.
	connections := make([][]ir.Source, len(parts))
	for i, args := range partArgs {
		desc := parts[i].Desc
		conn := make([]ir.Source, 0, desc.InputCount)
		for k, arg := range args {
			sources, _, err := resolveExpr(symtab, arg, nil)
			if err != nil {
				return nil, err
			}
			if len(sources) != desc.InputWidths[k] {
				return nil, ir.CompileErr(partLines[i], "argument %d to %q has width %d, want %d", k, parts[i].Desc.Name, len(sources), desc.InputWidths[k])
			}
			conn = append(conn, sources...)
		}
		connections[i] = conn
	}

	outputs := make([]ir.Source, 0, outputCount)
	for _, p := range m.Outputs {
		sym := symtab[p.Name]
		for j := 0; j < sym.width; j++ {
			if !sym.producerSet[j] {
				return nil, ir.CompileErr(m.Line, "output %q bit %d is never wired", p.Name, j)
			}
			outputs = append(outputs, sym.producer[j])
		}
	}

	sinkCounts := make([]int, inputCount)
	for i, conn := range connections {
		desc := parts[i].Desc
		for bit, src := range conn {
			if src.Kind == ir.External {
				sinkCounts[src.ParamBit] += desc.SinkCounts[bit]
			}
		}
	}

	nodeCount, dffCount := 0, 0
	for _, p := range parts {
		nodeCount += p.Desc.NodeCount
		dffCount += p.Desc.DffCount
	}

	return &ir.Module{
		Name:         m.Name,
		InputWidths:  inputWidths,
		InputCount:   inputCount,
		OutputWidths: outputWidths,
		OutputCount:  outputCount,
		Parts:        parts,
		Connections:  connections,
		Outputs:      outputs,
		SinkCounts:   sinkCounts,
		NodeCount:    nodeCount,
		DffCount:     dffCount,
	}, nil
}

// declareParams registers a module's input or output parameter list
// into symtab and returns the per-parameter widths plus the total bit
// count.
func declareParams(symtab map[string]*symbol, params []ast.Param, kind symKind, line int) ([]int, int, error) {
	widths := make([]int, len(params))
	base := 0
	for i, p := range params {
		if _, dup := symtab[p.Name]; dup {
			return nil, 0, ir.CompileErr(p.Line, "redefinition of %q", p.Name)
		}
		widths[i] = p.Width
		sym := &symbol{kind: kind, name: p.Name, width: p.Width, paramBase: base}
		if kind == symModOutput {
			sym.producer = make([]ir.Source, p.Width)
			sym.producerSet = make([]bool, p.Width)
		}
		symtab[p.Name] = sym
		base += p.Width
	}
	return widths, base, nil
}

// bindResult connects a part's result expression to its backing
// symbol: a brand-new name becomes a symPartOut symbol, while a name
// that already names a module output is treated as a (possibly
// partial) write into that output's producer buffer — the mechanism
// spec.md §4.6 needs for a wide output assembled from several parts.
func bindResult(symtab map[string]*symbol, res *ast.Expr, sources []ir.Source) error {
	existing, ok := symtab[res.Name]
	if res.Sliced {
		if !ok {
			return ir.CompileErr(res.Line, "unknown identifier %q", res.Name)
		}
		if existing.kind != symModOutput {
			return ir.CompileErr(res.Line, "cannot partially assign %q, it is not a module output", res.Name)
		}
		if res.Hi >= existing.width {
			return ir.CompileErr(res.Line, "slice %s[%d..%d] out of range (width %d)", res.Name, res.Lo, res.Hi, existing.width)
		}
		if res.Hi-res.Lo+1 != len(sources) {
			return ir.CompileErr(res.Line, "width mismatch assigning to %s[%d..%d]", res.Name, res.Lo, res.Hi)
		}
		return assignProducer(existing, res.Lo, sources, res.Line)
	}
	if !ok {
		symtab[res.Name] = &symbol{kind: symPartOut, name: res.Name, width: len(sources), partIndex: sources[0].PartIndex, partBitBase: sources[0].PartBit}
		return nil
	}
	if existing.kind != symModOutput {
		return ir.CompileErr(res.Line, "redefinition of %q", res.Name)
	}
	if existing.width != len(sources) {
		return ir.CompileErr(res.Line, "width mismatch assigning to %q: got %d, want %d", res.Name, len(sources), existing.width)
	}
	return assignProducer(existing, 0, sources, res.Line)
}

// resolveWire attempts to fully resolve one wire statement: both its
// input's width and its source bits. It reports ok=false with a nil
// error when the wire cannot yet be resolved because it (transitively)
// depends on another wire in pending — the caller retries those on
// the next fixed-point round.
func resolveWire(symtab map[string]*symbol, w *ast.Wire, pending map[string]bool) (bool, error) {
	sources, isPending, err := resolveExpr(symtab, w.Input, pending)
	if err != nil {
		return false, err
	}
	if isPending {
		return false, nil
	}

	out := w.Output
	if out.Sliced {
		existing, ok := symtab[out.Name]
		if !ok {
			return false, ir.CompileErr(out.Line, "unknown identifier %q", out.Name)
		}
		if existing.kind != symModOutput {
			return false, ir.CompileErr(out.Line, "cannot partially assign %q, it is not a module output", out.Name)
		}
		if out.Hi >= existing.width {
			return false, ir.CompileErr(out.Line, "slice %s[%d..%d] out of range (width %d)", out.Name, out.Lo, out.Hi, existing.width)
		}
		if out.Hi-out.Lo+1 != len(sources) {
			return false, ir.CompileErr(out.Line, "width mismatch assigning to %s[%d..%d]", out.Name, out.Lo, out.Hi)
		}
		if err := assignProducer(existing, out.Lo, sources, out.Line); err != nil {
			return false, err
		}
		return true, nil
	}

	existing, ok := symtab[out.Name]
	if ok {
		if existing.kind != symModOutput {
			return false, ir.CompileErr(out.Line, "redefinition of %q", out.Name)
		}
		if existing.width != len(sources) {
			return false, ir.CompileErr(out.Line, "width mismatch assigning to %q: got %d, want %d", out.Name, len(sources), existing.width)
		}
		if err := assignProducer(existing, 0, sources, out.Line); err != nil {
			return false, err
		}
		return true, nil
	}
	symtab[out.Name] = &symbol{kind: symWireOut, name: out.Name, width: len(sources), resolved: sources}
	return true, nil
}

// resolveExpr flattens expr (an Ident, IntLit, or Concat) into its
// backing sources. pending, when non-nil, names wire outputs that
// have not resolved yet in the current fixed-point round; a bare or
// sliced reference to one of them defers the whole expression rather
// than failing outright. Pass pending as nil once every wire in the
// module has resolved (part-argument lowering), where an unresolved
// name is always a genuine error.
func resolveExpr(symtab map[string]*symbol, expr *ast.Expr, pending map[string]bool) ([]ir.Source, bool, error) {
	switch expr.Kind {
	case ast.IntLit:
		return []ir.Source{constSource(expr.IntVal)}, false, nil

	case ast.Concat:
		var all []ir.Source
		for _, part := range expr.Parts {
			sub, isPending, err := resolveExpr(symtab, part, pending)
			if err != nil {
				return nil, false, err
			}
			if isPending {
				return nil, true, nil
			}
			all = append(all, sub...)
		}
		return all, false, nil

	case ast.Ident:
		sym, ok := symtab[expr.Name]
		if !ok {
			if pending != nil && pending[expr.Name] {
				return nil, true, nil
			}
			return nil, false, ir.CompileErr(expr.Line, "unknown identifier %q", expr.Name)
		}
		if sym.kind == symModOutput {
			return nil, false, ir.CompileErr(expr.Line, "module output %q cannot feed a module input", expr.Name)
		}
		lo, hi := 0, sym.width-1
		if expr.Sliced {
			lo, hi = expr.Lo, expr.Hi
			if hi >= sym.width {
				return nil, false, ir.CompileErr(expr.Line, "slice %s[%d..%d] out of range (width %d)", expr.Name, lo, hi, sym.width)
			}
		}
		out := make([]ir.Source, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			out = append(out, sourceAt(sym, i))
		}
		return out, false, nil

	default:
		return nil, false, ir.InternalErr("unhandled expression kind %v", expr.Kind)
	}
}

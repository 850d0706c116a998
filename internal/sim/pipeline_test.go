package sim

import (
	"testing"

	"grci/internal/ir"
	"grci/internal/parse"
	"grci/internal/sema"
)

// compileAll parses src as zero or more module declarations and
// compiles them in textual order into a fresh registry — the same
// sequence (*grci.Compiler).CompileSource drives at the package
// boundary, exercised directly here so these tests cover the full
// tokenizer/parser/sema pipeline feeding the simulator, not just
// hand-built ir.Module literals.
func compileAll(t *testing.T, src string) *ir.Registry {
	t.Helper()
	p := parse.New([]byte(src), "test.hdl")
	file, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	reg := ir.NewRegistry()
	for _, m := range file.Modules {
		mod, err := sema.Compile(reg, m)
		if err != nil {
			t.Fatalf("compile error in module %q: %v", m.Name, err)
		}
		reg.Register(mod)
	}
	return reg
}

func lookup(t *testing.T, reg *ir.Registry, name string) *ir.Module {
	t.Helper()
	desc := reg.Lookup(name)
	if desc == nil {
		t.Fatalf("module %q did not register", name)
	}
	return desc
}

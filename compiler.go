// Package grci compiles and simulates the small gate-level hardware
// description language described by spec.md: three primitives (Nand,
// Dff, Ram64K) and user-defined modules composed from them, driven
// one half-cycle at a time.
package grci

import (
	"grci/internal/ast"
	"grci/internal/ir"
	"grci/internal/parse"
	"grci/internal/sema"
)

// Compiler holds the module-descriptor registry built up across one
// or more CompileSource calls, and the last diagnostic produced by
// any call on it.
//
// The original C implementation behind this spec keeps one
// process-wide null-terminated error buffer, read back through
// last_error(). That pattern doesn't fit Go: every exported method
// here already returns an explicit error, so a caller never actually
// needs LastError to learn whether something failed. It is kept
// anyway as a thin compatibility accessor over the same per-Compiler
// field, for a host porting code that expects to poll a string after
// the fact, rather than as the primary error-reporting mechanism.
type Compiler struct {
	reg       *ir.Registry
	lastError error
}

// NewCompiler returns a compiler seeded with the Nand, Dff, and
// Ram64K primitives.
func NewCompiler() *Compiler {
	return &Compiler{reg: ir.NewRegistry()}
}

// CompileSource parses every "module ... { ... }" declaration in src
// and compiles them in order — a later module may reference any
// earlier one, including ones from a previous CompileSource call on
// the same Compiler. If any module fails to compile, the registry is
// left exactly as it was before the call (spec.md §7's "no partial
// commit").
func (c *Compiler) CompileSource(src []byte) error {
	p := parse.New(src, "<source>")
	file, err := p.Parse()
	if err != nil {
		c.lastError = err
		return err
	}

	snapshot := c.reg.Snapshot()
	for _, m := range file.Modules {
		if c.reg.Lookup(m.Name) != nil {
			err := ir.CompileErr(m.Line, "redefinition of module %q", m.Name)
			c.reg.Rollback(snapshot)
			c.lastError = err
			return err
		}
		if c.reg.Count()+1 > ir.MaxModulesPerBuild {
			err := ir.CapacityErr(m.Line, "registry holds %d modules, limit is %d", c.reg.Count(), ir.MaxModulesPerBuild)
			c.reg.Rollback(snapshot)
			c.lastError = err
			return err
		}
		compiled, err := compileModule(c.reg, m)
		if err != nil {
			c.reg.Rollback(snapshot)
			c.lastError = err
			return err
		}
		c.reg.Register(compiled)
	}
	c.lastError = nil
	return nil
}

func compileModule(reg *ir.Registry, m *ast.Module) (*ir.Module, error) {
	if len(m.Parts) == 0 && len(m.Wires) == 0 {
		return nil, ir.CompileErr(m.Line, "module %q has an empty body", m.Name)
	}
	return sema.Compile(reg, m)
}

// NewModule instantiates the named, already-compiled module as the
// top of a new simulator (spec.md §6.2's init_module).
func (c *Compiler) NewModule(name string) (*Module, error) {
	desc := c.reg.Lookup(name)
	if desc == nil {
		err := ir.SimulateErr("unknown module %q", name)
		c.lastError = err
		return nil, err
	}
	c.lastError = nil
	return newModule(desc), nil
}

// LastError returns the diagnostic from the most recent failing call
// on c, or nil if the most recent call succeeded (or none was made
// yet). See the Compiler doc comment for why this exists alongside
// ordinary error returns.
func (c *Compiler) LastError() error {
	return c.lastError
}

// Close releases the compiler's registry. Descriptors it produced
// remain valid for any Module already instantiated from them; there
// is nothing left to free explicitly once the Compiler itself is
// unreferenced; Close exists for symmetry with the source API's
// explicit cleanup(handle) and to give callers an obvious place to
// stop using c.
func (c *Compiler) Close() {
	c.reg = nil
}

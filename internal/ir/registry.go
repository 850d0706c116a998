package ir

// Registry is the insertion-ordered module-descriptor table of
// spec.md §4.5: the three primitives followed by every successfully
// compiled module. Lookup reads a name-to-descriptor map kept beside
// the insertion order; names are unique, so it returns the same
// descriptor a scan of the order would, and a duplicate name is
// detected in O(1).
type Registry struct {
	order []*Module
	byName map[string]*Module
}

// NewRegistry returns a registry seeded with Nand, Dff, and Ram64K.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Module)}
	r.order = append(r.order, Nand, Dff, Ram64K)
	r.byName[Nand.Name] = Nand
	r.byName[Dff.Name] = Dff
	r.byName[Ram64K.Name] = Ram64K
	return r
}

// Lookup returns the descriptor for name, or nil if none is registered.
func (r *Registry) Lookup(name string) *Module {
	return r.byName[name]
}

// Count returns the number of user-compiled modules registered so
// far (excluding the three built-in primitives), for the §4.9
// "modules per compilation" limit.
func (r *Registry) Count() int {
	return len(r.order) - 3
}

// Register adds a newly compiled module descriptor. The caller must
// already have checked for a name collision via Lookup.
func (r *Registry) Register(m *Module) {
	r.order = append(r.order, m)
	r.byName[m.Name] = m
}

// Snapshot returns the current insertion order, for rollback on a
// failed compile_src call (spec.md §7: "no partial commit").
func (r *Registry) Snapshot() int {
	return len(r.order)
}

// Rollback discards every module registered since the given snapshot.
func (r *Registry) Rollback(snapshot int) {
	for _, m := range r.order[snapshot:] {
		delete(r.byName, m.Name)
	}
	r.order = r.order[:snapshot]
}

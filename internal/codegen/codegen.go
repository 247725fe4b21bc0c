// Package codegen defines the backend interface a module is handed to for
// final lowering, per spec.md §6: "a code-generator object exposes
// destroy(self) and run(self, module, output_path) -> bool". The core
// package never prescribes backend behavior beyond that contract.
package codegen

import "github.com/madmann91/fir/internal/ir"

// Backend lowers a module to some external artifact. Run may mutate the
// module it is given (legalization passes are a backend's prerogative);
// Destroy releases any resources the backend itself allocated, separately
// from the module's own lifetime.
type Backend interface {
	Run(mod *ir.Module, outputPath string) bool
	Destroy()
}

// Registry resolves a backend by the name given to the CLI's --codegen
// flag, grounded on the teacher's driver-registration pattern in
// internal/database (DSN scheme dispatch generalized to a name lookup).
type Registry struct {
	factories map[string]func() Backend
}

// NewRegistry returns a registry with no backends registered.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Backend)}
}

// Register adds a backend factory under name, overwriting any previous
// registration.
func (r *Registry) Register(name string, factory func() Backend) {
	r.factories[name] = factory
}

// New constructs the named backend, or reports false if name is unknown.
func (r *Registry) New(name string) (Backend, bool) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns every registered backend name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

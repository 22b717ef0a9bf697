package engines

import (
	"sort"
	"sync/atomic"
)

// Registry holds the engine set behind an atomically swapped snapshot, so
// lookups during a search never race with a reload.
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
}

type registrySnapshot struct {
	byName  map[string]Engine
	ordered []Engine
}

// NewRegistry builds a registry from the given engines. Registration order
// is preserved; it decides tie-breaks downstream.
func NewRegistry(list ...Engine) *Registry {
	r := &Registry{}
	r.Reload(list)
	return r
}

// Reload atomically replaces the whole engine set. Later registrations win
// on a name collision.
func (r *Registry) Reload(list []Engine) {
	snap := &registrySnapshot{
		byName:  make(map[string]Engine, len(list)),
		ordered: make([]Engine, 0, len(list)),
	}
	for _, engine := range list {
		name := engine.Descriptor().Name
		if _, dup := snap.byName[name]; !dup {
			snap.ordered = append(snap.ordered, engine)
		}
		snap.byName[name] = engine
	}
	r.snapshot.Store(snap)
}

// Lookup returns the engine registered under name.
func (r *Registry) Lookup(name string) (Engine, bool) {
	engine, ok := r.snapshot.Load().byName[name]
	return engine, ok
}

// List returns all engines in registration order.
func (r *Registry) List() []Engine {
	snap := r.snapshot.Load()
	out := make([]Engine, len(snap.ordered))
	copy(out, snap.ordered)
	return out
}

// Enabled returns the enabled engines in registration order.
func (r *Registry) Enabled() []Engine {
	var out []Engine
	for _, engine := range r.snapshot.Load().ordered {
		if engine.Descriptor().Enabled {
			out = append(out, engine)
		}
	}
	return out
}

// Names returns the known engine names as a set, for input validation.
func (r *Registry) Names() map[string]bool {
	snap := r.snapshot.Load()
	names := make(map[string]bool, len(snap.byName))
	for name := range snap.byName {
		names[name] = true
	}
	return names
}

// Resolve maps a requested engine selection to concrete engines. A nil or
// empty selection means every enabled engine. Unknown names are skipped;
// the caller validates the selection beforehand. Explicitly selected
// engines are returned even when disabled, so status reporting can mark
// them as such.
func (r *Registry) Resolve(selected []string) []Engine {
	if len(selected) == 0 {
		return r.Enabled()
	}
	snap := r.snapshot.Load()
	out := make([]Engine, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, name := range selected {
		if seen[name] {
			continue
		}
		seen[name] = true
		if engine, ok := snap.byName[name]; ok {
			out = append(out, engine)
		}
	}
	return out
}

// FeatureReport groups enabled engine names by advertised feature, names
// sorted. Disabled engines advertise nothing.
func (r *Registry) FeatureReport() map[string][]string {
	report := make(map[string][]string)
	for _, engine := range r.snapshot.Load().ordered {
		d := engine.Descriptor()
		if !d.Enabled {
			continue
		}
		for _, feature := range d.Features {
			report[feature] = append(report[feature], d.Name)
		}
	}
	for _, names := range report {
		sort.Strings(names)
	}
	return report
}

package dispatch

import (
	"sync"

	"github.com/fragworks/fragstats/internal/domain/event"
)

// Module declares which event types a named handler claims.
type Module struct {
	Name          string
	Handler       HandlerFunc
	HandledEvents []event.Type
}

// Registry is the declarative mapping of event types to module handlers.
// It is populated at wiring time; re-registration under the same name
// replaces the prior entry in place.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	modules map[string]Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register records a module. Registration order is preserved for bus
// wiring; registering an existing name keeps its original position.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name]; !exists {
		r.order = append(r.order, m.Name)
	}
	r.modules[m.Name] = m
}

// ModulesFor answers which modules handle the given event type, in
// registration order. Diagnostics surface.
func (r *Registry) ModulesFor(typ event.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		for _, t := range r.modules[name].HandledEvents {
			if t == typ {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// Modules returns a snapshot of the registered modules in registration
// order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}

// BindTo builds the bus's subscriber table from the registry, one
// subscription per module per handled event type.
func (r *Registry) BindTo(bus *Bus) {
	for _, m := range r.Modules() {
		for _, typ := range m.HandledEvents {
			bus.Subscribe(typ, m.Name, m.Handler)
		}
	}
}

package engine

import "github.com/qoredb/core/model"

// Registry maps a ConnectionConfig's driver tag to the Driver instance
// that serves it. It is populated once at startup (Register) and is
// immutable afterward, so Get is lock-free in practice.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry builds an empty registry; callers populate it with Register
// before taking any reads.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register installs d under its own DriverId. Call only during startup,
// before the registry is shared with readers.
func (r *Registry) Register(d Driver) {
	r.drivers[d.DriverId()] = d
}

// Get looks up the driver for tag. It never touches the network.
func (r *Registry) Get(tag string) (Driver, error) {
	d, ok := r.drivers[tag]
	if !ok {
		return nil, model.NewError(model.KindDriverNotFound, "no driver registered for tag: "+tag)
	}
	return d, nil
}

// Tags returns every registered driver tag, for diagnostics.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.drivers))
	for t := range r.drivers {
		tags = append(tags, t)
	}
	return tags
}

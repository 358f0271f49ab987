package datastore

import (
	"context"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/eventbus"
	"github.com/poolctld/poolctld/internal/registry"
)

// ServiceID is this module's registry id, matching DataStoreModule's
// moduleId().
const ServiceID = "datastore"

const eventbusServiceID = "eventbus"

// Module publishes a Store into the registry and wires it to the event
// bus, the Go analog of DataStoreModule being a ModulePassive whose only
// job is to own and register the DataStore instance.
type Module struct {
	store *Store
}

// NewModule constructs a Module around a fresh Store.
func NewModule() *Module { return &Module{store: New()} }

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string { return []string{eventbusServiceID} }

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if bus, ok := registry.MustGet[*eventbus.Bus](services, eventbusServiceID); ok {
		m.store.SetEventBus(bus)
	}
	return services.Add(ServiceID, m.store)
}

func (m *Module) HasTask() bool { return false }

func (m *Module) Loop(ctx context.Context) error { return nil }

// Store exposes the underlying store for wiring before the Manager runs.
func (m *Module) Store() *Store { return m.store }

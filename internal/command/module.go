package command

import (
	"context"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/registry"
)

// ServiceID is this module's registry id, matching CommandModule's
// moduleId().
const ServiceID = "cmd"

const loghubServiceID = "loghub"

// Module publishes a Registry into the service table, the Go analog of
// CommandModule being a ModulePassive whose only job is to own and
// register the command registry.
type Module struct {
	registry *Registry
}

// NewModule constructs a Module around a fresh Registry.
func NewModule() *Module { return &Module{registry: New()} }

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string { return []string{loghubServiceID} }

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	return services.Add(ServiceID, m.registry)
}

func (m *Module) HasTask() bool { return false }

func (m *Module) Loop(ctx context.Context) error { return nil }

// Registry exposes the underlying registry for wiring other commands
// (e.g. a CLI-facing transport) before the Manager runs.
func (m *Module) Registry() *Registry { return m.registry }

package eventbus

import (
	"context"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/registry"
)

// ServiceID is the registry id the bus is published under, matching
// EventBusModule's moduleId()/services.add("eventbus", ...).
const ServiceID = "eventbus"

const loghubServiceID = "loghub"

// dispatchBatch is how many queued events Loop drains per call, matching
// EventBusModule::loop's bus.dispatch(8).
const dispatchBatch = 8

// Module hosts a Bus inside the cooperative runtime: the Go analog of
// EventBusModule, which owns the bus instance and drives its dispatch
// loop as an active module.
type Module struct {
	bus *Bus
	log *corelog.Hub
}

// NewModule constructs a Module around a fresh Bus.
func NewModule(opts ...Option) *Module {
	return &Module{bus: New(opts...)}
}

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string { return []string{loghubServiceID} }

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if log, ok := registry.MustGet[*corelog.Hub](services, loghubServiceID); ok {
		m.log = log
	}
	if err := services.Add(ServiceID, m.bus); err != nil {
		return err
	}
	_ = m.bus.Post(SystemStarted, nil)
	if m.log != nil {
		m.log.Infof("EvtBusMd", "EventBusService registered")
	}
	return nil
}

// Bus exposes the underlying bus for tests and for wiring into other
// core components before the Manager starts modules.
func (m *Module) Bus() *Bus { return m.bus }

// Loop drains up to dispatchBatch queued events per call.
func (m *Module) Loop(ctx context.Context) error {
	m.bus.Dispatch(dispatchBatch)
	return nil
}

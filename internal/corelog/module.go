package corelog

import (
	"context"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/registry"
)

// HubServiceID is the registry id the Hub is published under, matching
// LogHubModule's moduleId().
const HubServiceID = "loghub"

// HubModule publishes a pre-built Hub into the registry. It is passive
// (Taskless): the Hub has no loop of its own, only sinks and a
// dispatcher do, the Go analog of LogHubModule being a ModulePassive.
type HubModule struct {
	hub *Hub
}

// NewHubModule wraps an already-constructed Hub for registration.
func NewHubModule(hub *Hub) *HubModule {
	return &HubModule{hub: hub}
}

func (m *HubModule) ID() string { return HubServiceID }

func (m *HubModule) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	return services.Add(HubServiceID, m.hub)
}

func (m *HubModule) HasTask() bool { return false }

func (m *HubModule) Loop(ctx context.Context) error { return nil }

// dispatcherBatch is how many queued entries DispatcherModule.Loop drains
// per call. The original LogDispatcherModule task blocks on a single
// FreeRTOS queue dequeue per wakeup; draining a small batch here gets the
// same effect under the cooperative Loop-then-sleep scheduling model.
const dispatcherBatch = 8

// DispatcherModuleID is the registry id matching LogDispatcherModule.
const DispatcherModuleID = "log.dispatcher"

// DispatcherModule fans queued log entries out to every registered sink,
// the Go analog of LogDispatcherModule's consumer task.
type DispatcherModule struct {
	hub *Hub
}

func NewDispatcherModule() *DispatcherModule { return &DispatcherModule{} }

func (m *DispatcherModule) ID() string { return DispatcherModuleID }

func (m *DispatcherModule) Dependencies() []string { return []string{HubServiceID} }

func (m *DispatcherModule) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if hub, ok := registry.MustGet[*Hub](services, HubServiceID); ok {
		m.hub = hub
	}
	return nil
}

func (m *DispatcherModule) Loop(ctx context.Context) error {
	for i := 0; i < dispatcherBatch; i++ {
		if !m.hub.DrainOnce() {
			break
		}
	}
	return nil
}

// SerialSinkModuleID is the registry id matching LogSerialSinkModule.
const SerialSinkModuleID = "log.sink.serial"

// SerialSinkModule registers a Sink with the Hub at Init and otherwise
// does nothing, the Go analog of LogSerialSinkModule being a
// ModulePassive that only wires a sink.
type SerialSinkModule struct {
	sink Sink
}

// NewSerialSinkModule wraps sink for registration with the Hub.
func NewSerialSinkModule(sink Sink) *SerialSinkModule {
	return &SerialSinkModule{sink: sink}
}

func (m *SerialSinkModule) ID() string { return SerialSinkModuleID }

func (m *SerialSinkModule) Dependencies() []string { return []string{HubServiceID} }

func (m *SerialSinkModule) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if hub, ok := registry.MustGet[*Hub](services, HubServiceID); ok {
		hub.AddSink(m.sink)
	}
	return nil
}

func (m *SerialSinkModule) HasTask() bool { return false }

func (m *SerialSinkModule) Loop(ctx context.Context) error { return nil }

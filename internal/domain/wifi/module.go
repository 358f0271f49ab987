// Package wifi is a minimal stand-in for the network connectivity layer,
// grounded on WifiModule.h's dependency-free passive shape. It carries no
// real radio driver: Connected()/SetConnected() exist so integration
// tests and other domain stubs have a concrete "network is up" signal to
// orchestrate against.
package wifi

import (
	"context"
	"sync"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
)

const (
	// ServiceID is this module's registry id, matching moduleId().
	ServiceID          = "wifi"
	loghubServiceID    = "loghub"
	datastoreServiceID = "datastore"
)

const (
	cfgEnabled = "enabled"
	cfgSSID    = "ssid"
	cfgPass    = "pass"
)

// Module publishes connectivity state into the data store. It has no
// task of its own: a real radio driver would drive state transitions
// from interrupt/event callbacks, not a polling loop.
type Module struct {
	mu        sync.Mutex
	data      *datastore.Store
	enabled   bool
	ssid      string
	pass      string
	connected bool
}

// NewModule constructs a disconnected Module.
func NewModule() *Module { return &Module{enabled: true} }

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string {
	return []string{loghubServiceID, datastoreServiceID}
}

// HasTask reports false: WifiModule.h's real counterpart drives the ESP
// WiFi event callbacks from the radio stack, not a cooperative loop.
func (m *Module) HasTask() bool { return false }

func (m *Module) Loop(ctx context.Context) error { return nil }

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if data, ok := registry.MustGet[*datastore.Store](services, datastoreServiceID); ok {
		m.data = data
	}
	_ = services.Add(ServiceID, m)

	for _, d := range []cfgstore.ConfigDescriptor{
		{Module: ServiceID, Name: cfgEnabled, Key: "wifi_en", Type: cfgstore.TypeBool, Persistence: cfgstore.Persistent, Default: true},
		{Module: ServiceID, Name: cfgSSID, Key: "wifi_ssid", Type: cfgstore.TypeString, Persistence: cfgstore.Persistent, Size: 32, Default: ""},
		{Module: ServiceID, Name: cfgPass, Key: "wifi_pass", Type: cfgstore.TypeString, Persistence: cfgstore.Persistent, Size: 64, Default: ""},
	} {
		if err := cfg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) OnConfigLoaded(cfg *cfgstore.Store, services *registry.Registry) error {
	if v, ok := cfg.Get(ServiceID, cfgEnabled); ok {
		m.enabled, _ = v.(bool)
	}
	if v, ok := cfg.Get(ServiceID, cfgSSID); ok {
		m.ssid, _ = v.(string)
	}
	if v, ok := cfg.Get(ServiceID, cfgPass); ok {
		m.pass, _ = v.(string)
	}
	cfg.AddHandler(ServiceID, cfgEnabled, func(value any) {
		if en, ok := value.(bool); ok {
			m.SetEnabled(en)
		}
	})
	return nil
}

// SetEnabled toggles whether the stub reports connectivity at all; a
// disabled radio can never be Connected.
func (m *Module) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
	if !enabled {
		m.SetConnected(false)
	}
}

// SetConnected is the simulated radio-event entry point: tests (and a
// future real driver) call this instead of running a loop.
func (m *Module) SetConnected(connected bool) {
	m.mu.Lock()
	if !m.enabled {
		connected = false
	}
	m.connected = connected
	m.mu.Unlock()

	if m.data != nil {
		m.data.SetWifiReady(connected)
	}
}

// Connected reports the current simulated link state.
func (m *Module) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SSID returns the configured network name.
func (m *Module) SSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ssid
}

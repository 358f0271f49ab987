// Package actuators is a minimal stand-in for the named digital-output
// driver layer, grounded on ActuatorsModule.cpp's slot table and
// PoolDeviceModule.cpp's dependenciesSatisfied_ interlock check: an
// actuator with a non-empty DependsOn set can only be switched on once
// every actuator it depends on is already on (the "pump must run before
// heater" rule).
package actuators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/poolctld/poolctld/internal/board"
	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
)

const (
	ServiceID          = "actuators"
	loghubServiceID    = "loghub"
	datastoreServiceID = "datastore"
	commandServiceID   = "cmd"
	boardServiceID     = "board"
)

// ErrUnknownActuator is returned by Set/Get for a name not configured.
var ErrUnknownActuator = errors.New("actuators: unknown name")

// ErrInterlocked is returned by Set(name, true) when a required
// dependency actuator is not currently on.
var ErrInterlocked = errors.New("actuators: interlock blocked")

// Slot declares one named actuator, the Go analog of one ActuatorConfig
// plus PoolDeviceSlot.Def.dependsOnMask entry.
type Slot struct {
	Index     uint8
	Name      string
	DependsOn []string // names of actuators that must be on first
}

type runtimeSlot struct {
	def Slot
	on  bool
}

// Module drives a fixed table of named digital outputs through the data
// store, enforcing interlocks before turning one on.
type Module struct {
	mu     sync.Mutex
	log    *corelog.Hub
	data   *datastore.Store
	board  *board.Profile
	slots  []runtimeSlot
	byName map[string]int
}

// NewModule constructs a Module over the given slot declarations.
func NewModule(slots []Slot) *Module {
	m := &Module{byName: make(map[string]int, len(slots))}
	for i, s := range slots {
		m.slots = append(m.slots, runtimeSlot{def: s})
		m.byName[s.Name] = i
	}
	return m
}

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string {
	return []string{loghubServiceID, datastoreServiceID, commandServiceID}
}

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if log, ok := registry.MustGet[*corelog.Hub](services, loghubServiceID); ok {
		m.log = log
	}
	if data, ok := registry.MustGet[*datastore.Store](services, datastoreServiceID); ok {
		m.data = data
	}
	if bp, ok := registry.MustGet[*board.Profile](services, boardServiceID); ok {
		m.board = bp
	}
	if cmds, ok := registry.MustGet[*command.Registry](services, commandServiceID); ok {
		_ = cmds.Register("pool.actuator.set", m.handleSet)
	}
	_ = services.Add(ServiceID, m)
	return nil
}

// HasTask reports false: actuator state only changes in response to
// Set calls, never a polling loop.
func (m *Module) HasTask() bool { return false }

func (m *Module) Loop(ctx context.Context) error { return nil }

// Set requests actuator name go on/off. Turning one on is rejected with
// ErrInterlocked unless every actuator it depends on is already on.
func (m *Module) Set(name string, on bool) error {
	m.mu.Lock()
	idx, ok := m.byName[name]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownActuator
	}
	if on {
		for _, dep := range m.slots[idx].def.DependsOn {
			depIdx, ok := m.byName[dep]
			if !ok || !m.slots[depIdx].on {
				m.mu.Unlock()
				return fmt.Errorf("%w: %q requires %q", ErrInterlocked, name, dep)
			}
		}
	}
	m.slots[idx].on = on
	ioIndex := m.slots[idx].def.Index
	m.mu.Unlock()

	if m.data != nil {
		value := 0.0
		if on {
			value = 1.0
		}
		m.data.SetIOValue(ioIndex, datastore.IOKindActuator, value)
	}
	if m.log != nil {
		m.log.Infof("actuators", "%s -> %v", name, on)
	}
	return nil
}

// Get reports whether name is currently on.
func (m *Module) Get(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byName[name]
	if !ok {
		return false, ErrUnknownActuator
	}
	return m.slots[idx].on, nil
}

func (m *Module) handleSet(ctx context.Context, req command.Request) ([]byte, error) {
	var r struct {
		Name string `json:"name"`
		On   bool   `json:"on"`
	}
	if err := json.Unmarshal([]byte(req.JSON), &r); err != nil {
		return nil, command.NewError(command.BadCmdJSON, "pool.actuator.set")
	}
	if err := m.Set(r.Name, r.On); err != nil {
		if errors.Is(err, ErrUnknownActuator) {
			return nil, command.NewError(command.UnknownSlot, "pool.actuator.set")
		}
		if errors.Is(err, ErrInterlocked) {
			return nil, command.NewError(command.InterlockBlocked, "pool.actuator.set")
		}
		return nil, command.NewError(command.Failed, "pool.actuator.set")
	}
	doc, _ := json.Marshal(struct {
		OK bool `json:"ok"`
	}{OK: true})
	return doc, nil
}

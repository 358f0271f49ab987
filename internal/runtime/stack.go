// Package runtime builds the shared core+domain module stack used by
// both cmd/poolctld (the long-running daemon) and cmd/poolctl (the CLI
// simulation harness), so the two binaries wire the exact same
// components in the exact same order instead of duplicating main.cpp's
// setup() twice.
package runtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/poolctld/poolctld/internal/alarm"
	"github.com/poolctld/poolctld/internal/board"
	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/config"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/domain/actuators"
	"github.com/poolctld/poolctld/internal/domain/sensors"
	"github.com/poolctld/poolctld/internal/domain/wifi"
	"github.com/poolctld/poolctld/internal/eventbus"
	"github.com/poolctld/poolctld/internal/lifecycle"
	"github.com/poolctld/poolctld/internal/registry"
	"github.com/poolctld/poolctld/internal/system"
	"github.com/poolctld/poolctld/internal/timesvc"
)

// Stack holds every core component Boot constructs, the Go analog of
// main.cpp's static module instances plus its ServiceRegistry.
type Stack struct {
	Hub      *corelog.Hub
	Config   *cfgstore.Store
	Services *registry.Registry
	Manager  *lifecycle.Manager
	Board    *board.Profile
}

// Boot constructs and registers every module in main.cpp's setup()
// order, stopping short of running the cooperative scheduler: the
// caller chooses between Manager.Run (poolctld, runs forever) and
// Manager.InitOnly (poolctl, wires services for one command then exits).
func Boot(boot *config.Bootstrap) (*Stack, error) {
	hub := corelog.NewHub(corelog.DefaultQueueLength)

	if err := os.MkdirAll(boot.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir %s: %w", boot.StateDir, err)
	}
	backend, err := cfgstore.NewFileBackend(boot.StateDir, "runtime-config.json")
	if err != nil {
		return nil, fmt.Errorf("config backend: %w", err)
	}

	cfg := cfgstore.New()
	cfg.SetBackend(backend)
	cfg.SetLog(hub)

	services := registry.New()

	boardProfile := board.DefaultProfile()
	if boot.BoardProfile != "" {
		p, err := board.LoadProfile(boot.BoardProfile)
		if err != nil {
			hub.Warnf("runtime", "board profile %s: %v, falling back to default", boot.BoardProfile, err)
		} else {
			boardProfile = p
		}
	}
	if err := services.Add("board", boardProfile); err != nil {
		return nil, fmt.Errorf("register board profile: %w", err)
	}

	manager := lifecycle.New()
	manager.SetLog(hub)

	sensorChans := DefaultSensorChannels()
	actuatorSlots := SlotsFromBoard(boardProfile, uint8(len(sensorChans)))

	modules := []lifecycle.Module{
		corelog.NewHubModule(hub),
		corelog.NewDispatcherModule(),
		corelog.NewSerialSinkModule(corelog.NewStdSink(os.Stdout)),
		eventbus.NewModule(),
		datastore.NewModule(),
		command.NewModule(),
		wifi.NewModule(),
		timesvc.NewModule(SystemClockSyncer),
		sensors.NewModule(sensorChans),
		actuators.NewModule(actuatorSlots),
		alarm.NewModule(),
		system.NewModule(func(reason string) {
			hub.Warnf("system", "%s requested, exiting for supervisor restart", reason)
			os.Exit(0)
		}),
	}
	for _, mod := range modules {
		if err := manager.Add(mod); err != nil {
			return nil, fmt.Errorf("register module %s: %w", mod.ID(), err)
		}
	}

	return &Stack{Hub: hub, Config: cfg, Services: services, Manager: manager, Board: boardProfile}, nil
}

// SystemClockSyncer stands in for NTPModule's real time-fetch: it hands
// back the local system clock instead of performing a network round
// trip, consistent with the domain stub modules' no-real-driver contract.
func SystemClockSyncer(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}

// DefaultSensorChannels declares the built-in channel table used when no
// richer configuration is supplied. Readings are simulated: real
// ADS1115/DS18B20 acquisition is out of scope for the sensors stub.
func DefaultSensorChannels() []sensors.Channel {
	return []sensors.Channel{
		{Index: 0, Name: "water_temp", C0: 1, C1: 0, Read: func() float64 { return 25.0 }},
		{Index: 1, Name: "ph", C0: 1, C1: 0, Read: func() float64 { return 7.2 }},
	}
}

// SlotsFromBoard builds one actuator Slot per board digital output,
// assigning IO indices starting at offset so they never collide with
// the sensor channels sharing the same fixed-size IO array. The
// pump-before-heater interlock is the one dependency wired by default,
// matching PoolDeviceModule.cpp's reference configuration.
func SlotsFromBoard(bp *board.Profile, offset uint8) []actuators.Slot {
	slots := make([]actuators.Slot, 0, len(bp.DigitalOuts))
	for i, out := range bp.DigitalOuts {
		slot := actuators.Slot{Index: offset + uint8(i), Name: out.Name}
		if out.Name == "water_heater" {
			slot.DependsOn = []string{"filtration"}
		}
		slots = append(slots, slot)
	}
	return slots
}

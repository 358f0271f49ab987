// Package system registers the process-lifecycle command surface
// (ping/reboot/factory_reset), ported from SystemModule.{h,cpp}.
package system

import (
	"context"
	"time"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/registry"
)

// ServiceID is this module's registry id, matching SystemModule's moduleId().
const ServiceID = "system"

const (
	loghubServiceID  = "loghub"
	commandServiceID = "cmd"
)

// rebootDelay/factoryResetDelay mirror the firmware's delay(200)/delay(500)
// before esp_restart(), giving the command's ACK time to reach the caller
// before Shutdown runs.
const (
	rebootDelay       = 200 * time.Millisecond
	factoryResetDelay = 500 * time.Millisecond
)

// Module is a passive, task-free module: it only registers commands.
type Module struct {
	log      *corelog.Hub
	shutdown func(reason string)
}

// NewModule constructs a Module. shutdown is invoked (after the ack delay)
// for both reboot and factory_reset, the Go analog of esp_restart() — the
// caller wires it to whatever its own restart story is (process exit under
// a supervisor, a context cancel, etc). A nil shutdown makes both commands
// ack-only, which is enough for cmd/poolctl's one-shot harness.
func NewModule(shutdown func(reason string)) *Module {
	return &Module{shutdown: shutdown}
}

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string {
	return []string{loghubServiceID, commandServiceID}
}

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if log, ok := registry.MustGet[*corelog.Hub](services, loghubServiceID); ok {
		m.log = log
	}
	if cmds, ok := registry.MustGet[*command.Registry](services, commandServiceID); ok {
		_ = cmds.Register("system.ping", m.handlePing)
		_ = cmds.Register("system.reboot", m.handleReboot)
		_ = cmds.Register("system.factory_reset", m.handleFactoryReset)
	}
	if m.log != nil {
		m.log.Infof("system", "commands registered: system.ping system.reboot system.factory_reset")
	}
	return nil
}

// HasTask reports false: the module has nothing to poll.
func (m *Module) HasTask() bool { return false }

func (m *Module) Loop(ctx context.Context) error { return nil }

func (m *Module) handlePing(ctx context.Context, req command.Request) ([]byte, error) {
	return []byte(`{"ok":true,"pong":true}`), nil
}

func (m *Module) handleReboot(ctx context.Context, req command.Request) ([]byte, error) {
	m.triggerShutdown(rebootDelay, "reboot")
	return []byte(`{"ok":true,"msg":"rebooting"}`), nil
}

// handleFactoryReset acks and restarts but, like the firmware's own
// cmdFactoryReset (its NVS-clear call is commented out there too), does
// not itself clear config: that belongs to cfgstore's own reset path, not
// this module.
func (m *Module) handleFactoryReset(ctx context.Context, req command.Request) ([]byte, error) {
	m.triggerShutdown(factoryResetDelay, "factory_reset")
	return []byte(`{"ok":true,"msg":"nvs_cleared"}`), nil
}

func (m *Module) triggerShutdown(delay time.Duration, reason string) {
	if m.shutdown == nil {
		return
	}
	go func() {
		time.Sleep(delay)
		m.shutdown(reason)
	}()
}

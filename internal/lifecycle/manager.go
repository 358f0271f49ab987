package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/eventbus"
	"github.com/poolctld/poolctld/internal/registry"
)

// MaxModules is the compile-time capacity of a Manager, matching
// ModuleManager's MAX_MODULES.
const MaxModules = 15

// MinLoopInterval is the minimum cooperative sleep a module task takes
// between Loop calls, matching ModuleManager's vTaskDelay(pdMS_TO_TICKS(10)).
const MinLoopInterval = 10 * time.Millisecond

// EventBusServiceID is the registry id wireCoreServices looks up to wire
// the bus into the config store, matching wireCoreServices's "eventbus"
// service lookup.
const EventBusServiceID = "eventbus"

var (
	// ErrFull is returned by Add once MaxModules entries are registered.
	ErrFull = errors.New("lifecycle: capacity exceeded")
	// ErrMissingDependency is returned by Run when a module declares a
	// dependency id that was never Added.
	ErrMissingDependency = errors.New("lifecycle: missing dependency")
	// ErrCyclicDependency is returned by Run when no valid init order
	// exists (a true cycle, or a stalled pass that never completes).
	ErrCyclicDependency = errors.New("lifecycle: cyclic or unresolved dependencies")
)

// Manager resolves module dependency order, runs Init/OnConfigLoaded, and
// drives each module's Loop on its own goroutine under an errgroup.
type Manager struct {
	modules []Module
	log     *corelog.Hub
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{}
}

// SetLog wires the log pipeline used for startup/ordering diagnostics.
func (m *Manager) SetLog(h *corelog.Hub) { m.log = h }

// Add registers a module. Fails once MaxModules is reached.
func (m *Manager) Add(mod Module) error {
	if len(m.modules) >= MaxModules {
		return ErrFull
	}
	m.modules = append(m.modules, mod)
	return nil
}

func (m *Manager) findByID(id string) (Module, bool) {
	for _, mod := range m.modules {
		if mod.ID() == id {
			return mod, true
		}
	}
	return nil, false
}

// buildInitOrder runs a Kahn topological sort over the registered
// modules' declared dependencies, ported pass-for-pass from
// ModuleManager::buildInitOrder.
//
// REDESIGN FLAGS §9 Open Question (c): the original falls out of its pass
// loop after `count` passes and unconditionally returns success, even if
// a pass kept making progress without ever finishing (which can only
// happen if the same module is re-placed or the dependency graph is
// malformed in a way the per-pass check doesn't catch). This port treats
// that fallthrough as the cyclic failure it actually represents, rather
// than reproducing the original's false "success".
func (m *Manager) buildInitOrder() ([]Module, error) {
	if m.log != nil {
		m.log.Debugf("ModManag", "buildInitOrder: count=%d", len(m.modules))
	}

	count := len(m.modules)
	placed := make([]bool, count)
	ordered := make([]Module, 0, count)

	for pass := 0; pass < count; pass++ {
		progress := false

		for i, mod := range m.modules {
			if placed[i] {
				continue
			}

			depsOK := true
			for _, depID := range dependenciesOf(mod) {
				if depID == "" {
					continue
				}
				depIdx := -1
				for j, other := range m.modules {
					if other.ID() == depID {
						depIdx = j
						break
					}
				}
				if depIdx == -1 {
					if m.log != nil {
						m.log.Errorf("ModManag", "missing dependency: module=%s requires=%s", mod.ID(), depID)
					}
					return nil, fmt.Errorf("%w: module=%s requires=%s", ErrMissingDependency, mod.ID(), depID)
				}
				if !placed[depIdx] {
					depsOK = false
					break
				}
			}

			if depsOK {
				ordered = append(ordered, mod)
				placed[i] = true
				progress = true
			}
		}

		if len(ordered) == count {
			if m.log != nil {
				m.log.Debugf("ModManag", "buildInitOrder: success (ordered=%d)", len(ordered))
			}
			return ordered, nil
		}

		if !progress {
			if m.log != nil {
				m.log.Errorf("ModManag", "cyclic or unresolved deps detected")
			}
			return nil, ErrCyclicDependency
		}
	}

	// Every pass made progress, but the table is still incomplete once
	// passes are exhausted: the original treats this as success. We treat
	// it as the cyclic failure it is.
	return nil, ErrCyclicDependency
}

// InitOnly resolves dependency order and runs every step Run does short
// of spawning Loop goroutines: Init in order, LoadPersistent, then
// OnConfigLoaded hooks, then wireCoreServices. It returns the resolved
// order so a caller can drive modules itself — e.g. a CLI harness that
// wants the fully wired registry/config store for a single command
// without running the cooperative scheduler.
func (m *Manager) InitOnly(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) ([]Module, error) {
	order, err := m.buildInitOrder()
	if err != nil {
		return nil, err
	}

	for _, mod := range order {
		if m.log != nil {
			m.log.Debugf("ModManag", "init: %s", mod.ID())
		}
		if err := mod.Init(ctx, cfg, services); err != nil {
			return nil, fmt.Errorf("lifecycle: init %s: %w", mod.ID(), err)
		}
	}

	if err := cfg.LoadPersistent(ctx); err != nil {
		return nil, fmt.Errorf("lifecycle: load persistent config: %w", err)
	}

	for _, mod := range order {
		hook, ok := mod.(ConfigLoadedHook)
		if !ok {
			continue
		}
		if err := hook.OnConfigLoaded(cfg, services); err != nil {
			return nil, fmt.Errorf("lifecycle: OnConfigLoaded %s: %w", mod.ID(), err)
		}
	}

	m.wireCoreServices(services, cfg)
	return order, nil
}

// Run resolves dependency order, initializes every module, loads
// persistent config, runs OnConfigLoaded hooks, wires core services, and
// finally spawns one goroutine per task-bearing module under an
// errgroup.Group. It blocks until ctx is cancelled or a module's Loop
// returns a non-nil error, then returns the first such error.
func (m *Manager) Run(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	order, err := m.InitOnly(ctx, cfg, services)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	tasks := 0
	for _, mod := range order {
		if !hasTask(mod) {
			continue
		}
		tasks++
		mod := mod
		g.Go(func() error {
			return runTask(ctx, mod)
		})
	}

	if m.log != nil {
		m.log.Debugf("ModManag", "run: done initializing, %d tasks started", tasks)
	}
	return g.Wait()
}

func runTask(ctx context.Context, mod Module) error {
	ticker := time.NewTicker(MinLoopInterval)
	defer ticker.Stop()
	for {
		if err := mod.Loop(ctx); err != nil {
			return fmt.Errorf("lifecycle: loop %s: %w", mod.ID(), err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// wireCoreServices looks up the event bus registered under
// EventBusServiceID and, if present, injects it into cfg — the Go analog
// of wireCoreServices's EventBusService lookup.
func (m *Manager) wireCoreServices(services *registry.Registry, cfg *cfgstore.Store) {
	bus, ok := registry.MustGet[*eventbus.Bus](services, EventBusServiceID)
	if !ok {
		return
	}
	cfg.SetEventBus(bus)
	if m.log != nil {
		m.log.Debugf("ModManag", "wireCoreServices: eventbus wired")
	}
}

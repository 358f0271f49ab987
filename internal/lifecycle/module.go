// Package lifecycle implements dependency-ordered module startup and the
// cooperative run loop, the Go analog of Module/ModuleManager: goroutines
// and an errgroup.Group stand in for FreeRTOS tasks pinned to a core.
package lifecycle

import (
	"context"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/registry"
)

// Module is the minimal contract every runtime module satisfies, the Go
// analog of Module.h's pure-virtual init()/loop() pair.
type Module interface {
	// ID is the unique identifier used for dependency wiring.
	ID() string
	// Init registers config variables and services. Called in dependency
	// order, before any module's Loop runs.
	Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error
	// Loop is one cooperative iteration of the module's main loop. The
	// Manager calls it repeatedly, sleeping at least MinLoopInterval
	// between calls, until ctx is done.
	Loop(ctx context.Context) error
}

// DependencyAware is implemented by modules that must start after others.
// Modules that don't implement it are assumed to have no dependencies.
type DependencyAware interface {
	Dependencies() []string
}

// ConfigLoadedHook is implemented by modules that need to react once
// every module's persistent config has been loaded — e.g. a module
// that caches a config value read at Init time before LoadPersistent ran.
type ConfigLoadedHook interface {
	OnConfigLoaded(cfg *cfgstore.Store, services *registry.Registry) error
}

// Taskless is implemented by modules with no independent Loop — e.g. a
// module that only reacts to events posted by others and has nothing to
// poll. Modules that don't implement it are assumed to have a task.
type Taskless interface {
	HasTask() bool
}

func dependenciesOf(m Module) []string {
	if d, ok := m.(DependencyAware); ok {
		return d.Dependencies()
	}
	return nil
}

func hasTask(m Module) bool {
	if t, ok := m.(Taskless); ok {
		return t.HasTask()
	}
	return true
}

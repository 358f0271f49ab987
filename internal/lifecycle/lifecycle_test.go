package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/eventbus"
	"github.com/poolctld/poolctld/internal/registry"
)

type stubModule struct {
	id       string
	deps     []string
	initFn   func() error
	loopOnce bool
	looped   chan struct{}
	noTask   bool
}

func (s *stubModule) ID() string             { return s.id }
func (s *stubModule) Dependencies() []string  { return s.deps }
func (s *stubModule) HasTask() bool           { return !s.noTask }
func (s *stubModule) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if s.initFn != nil {
		return s.initFn()
	}
	return nil
}
func (s *stubModule) Loop(ctx context.Context) error {
	if s.looped != nil {
		select {
		case s.looped <- struct{}{}:
		default:
		}
	}
	return nil
}

// TestModuleStartupOrder is the spec's module startup order scenario: a
// module initializes only after every module it depends on has.
func TestModuleStartupOrder(t *testing.T) {
	var order []string
	record := func(id string) func() error {
		return func() error { order = append(order, id); return nil }
	}

	m := New()
	c := &stubModule{id: "c", deps: []string{"b"}, initFn: record("c"), noTask: true}
	b := &stubModule{id: "b", deps: []string{"a"}, initFn: record("b"), noTask: true}
	a := &stubModule{id: "a", initFn: record("a"), noTask: true}

	require.NoError(t, m.Add(c))
	require.NoError(t, m.Add(b))
	require.NoError(t, m.Add(a))

	cfg := cfgstore.New()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx, cfg, registry.New())

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRunFailsOnMissingDependency(t *testing.T) {
	m := New()
	require.NoError(t, m.Add(&stubModule{id: "only", deps: []string{"ghost"}, noTask: true}))

	err := m.Run(context.Background(), cfgstore.New(), registry.New())
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestRunFailsOnCycle(t *testing.T) {
	m := New()
	require.NoError(t, m.Add(&stubModule{id: "x", deps: []string{"y"}, noTask: true}))
	require.NoError(t, m.Add(&stubModule{id: "y", deps: []string{"x"}, noTask: true}))

	err := m.Run(context.Background(), cfgstore.New(), registry.New())
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestAddRejectsOverflow(t *testing.T) {
	m := New()
	for i := 0; i < MaxModules; i++ {
		require.NoError(t, m.Add(&stubModule{id: string(rune('a' + i)), noTask: true}))
	}
	err := m.Add(&stubModule{id: "one-too-many", noTask: true})
	assert.ErrorIs(t, err, ErrFull)
}

func TestRunLoadsPersistentConfig(t *testing.T) {
	cfg := cfgstore.New()
	be := cfgstore.NewMemBackend()
	cfg.SetBackend(be)
	require.NoError(t, be.Save("k", "42"))
	require.NoError(t, cfg.Register(cfgstore.ConfigDescriptor{
		Module: "m", Name: "v", Key: "k", Type: cfgstore.TypeInt32,
		Persistence: cfgstore.Persistent, Default: int32(0),
	}))

	var loaded int32
	mod := &stubModule{id: "m", noTask: true}
	m := New()
	require.NoError(t, m.Add(mod))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx, cfg, registry.New()))

	v, _ := cfg.Get("m", "v")
	loaded = v.(int32)
	assert.Equal(t, int32(42), loaded)
}

func TestWireCoreServicesInjectsEventBus(t *testing.T) {
	cfg := cfgstore.New()
	services := registry.New()
	bus := eventbus.New()
	require.NoError(t, services.Add(EventBusServiceID, bus))

	m := New()
	require.NoError(t, m.Add(&stubModule{id: "only", noTask: true}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx, cfg, services))

	require.NoError(t, cfg.Register(cfgstore.ConfigDescriptor{Module: "t", Name: "v", Type: cfgstore.TypeBool}))

	var posted []eventbus.Event
	require.NoError(t, bus.Subscribe(eventbus.ConfigChanged, func(e eventbus.Event, _ any) {
		posted = append(posted, e)
	}, nil))

	_, err := cfg.Set("t", "v", true)
	require.NoError(t, err)
	bus.Dispatch(4)
	assert.Len(t, posted, 1, "cfg must have been wired to the same bus registered under EventBusServiceID")
}

func TestLoopRunsUntilContextCancelled(t *testing.T) {
	looped := make(chan struct{}, 8)
	mod := &stubModule{id: "looper", looped: looped}

	m := New()
	require.NoError(t, m.Add(mod))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, cfgstore.New(), registry.New()) }()

	select {
	case <-looped:
	case <-time.After(time.Second):
		t.Fatal("Loop was never called")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

package timesvc

import (
	"context"
	"time"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/eventbus"
	"github.com/poolctld/poolctld/internal/registry"
)

// Service registry ids this module depends on, matching
// TimeModule::dependencyCount/dependency.
const (
	ServiceID          = "time"
	loghubServiceID    = "loghub"
	datastoreServiceID = "datastore"
	commandServiceID   = "cmd"
	eventbusServiceID  = "eventbus"
)

// evaluatePeriod is how often Loop drives Service.Tick and
// Scheduler.Evaluate while Synced, matching TimeModule's 250ms cadence.
const evaluatePeriod = 250 * time.Millisecond

// Config variable names, matching TimeConfig's NVS_KEYs.
const (
	cfgServer1      = "server1"
	cfgServer2      = "server2"
	cfgTZ           = "tz"
	cfgEnabled      = "enabled"
	cfgWeekStartMon = "week_start_mon"
	cfgSlotsBlob    = "slots_blob"
)

// Event ids for the three reserved system schedule slots.
const (
	EventDayStart   uint16 = 1
	EventWeekStart  uint16 = 2
	EventMonthStart uint16 = 3
)

// Module wires Service and Scheduler into the cooperative module
// runtime, satisfying lifecycle.Module plus the optional
// DependencyAware/ConfigLoadedHook interfaces.
type Module struct {
	svc      *Service
	sched    *Scheduler
	log      *corelog.Hub
	data     *datastore.Store
	bus      *eventbus.Bus
	cfg      *cfgstore.Store
	tz       string
	lastTick time.Time
}

// NewModule constructs a Module around a caller-supplied Syncer (the
// actual NTP/HTTP time-fetch implementation).
func NewModule(sync Syncer) *Module {
	return &Module{svc: NewService(sync)}
}

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string {
	return []string{loghubServiceID, datastoreServiceID, commandServiceID, eventbusServiceID}
}

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	m.cfg = cfg
	if log, ok := registry.MustGet[*corelog.Hub](services, loghubServiceID); ok {
		m.log = log
	}
	if data, ok := registry.MustGet[*datastore.Store](services, datastoreServiceID); ok {
		m.data = data
	}
	if bus, ok := registry.MustGet[*eventbus.Bus](services, eventbusServiceID); ok {
		m.bus = bus
	}
	if cmds, ok := registry.MustGet[*command.Registry](services, commandServiceID); ok {
		registerCommands(cmds, m)
	}
	if m.bus != nil && m.data != nil {
		_ = m.bus.Subscribe(eventbus.DataChanged, func(e eventbus.Event, _ any) {
			if datastore.Key(eventbus.DecodeDataChangedPayload(e.Payload).Key) == datastore.WifiReady {
				m.SetNetworkReady(m.data.View().WiFi.Ready)
			}
		}, nil)
	}

	m.svc.OnStateChange(func(s SyncState) {
		if m.data != nil {
			m.data.SetTimeReady(s == Synced)
		}
		if m.log != nil {
			m.log.Infof("time", "sync state -> %s", s)
		}
	})

	for _, d := range []cfgstore.ConfigDescriptor{
		{Module: ServiceID, Name: cfgServer1, Key: "time_srv1", Type: cfgstore.TypeString, Persistence: cfgstore.Persistent, Size: 64, Default: "pool.ntp.org"},
		{Module: ServiceID, Name: cfgServer2, Key: "time_srv2", Type: cfgstore.TypeString, Persistence: cfgstore.Persistent, Size: 64, Default: ""},
		{Module: ServiceID, Name: cfgTZ, Key: "time_tz", Type: cfgstore.TypeString, Persistence: cfgstore.Persistent, Size: 48, Default: "UTC"},
		{Module: ServiceID, Name: cfgEnabled, Key: "time_en", Type: cfgstore.TypeBool, Persistence: cfgstore.Persistent, Default: true},
		{Module: ServiceID, Name: cfgWeekStartMon, Key: "time_wsm", Type: cfgstore.TypeBool, Persistence: cfgstore.Persistent, Default: true},
		{Module: ServiceID, Name: cfgSlotsBlob, Key: "tm_sched", Type: cfgstore.TypeString, Persistence: cfgstore.Persistent, Size: 4096, Default: ""},
	} {
		if err := cfg.Register(d); err != nil {
			return err
		}
	}

	return nil
}

// OnConfigLoaded builds the Scheduler (whose system-slot weekday depends
// on week_start_mon) and replays the persisted slot blob, after
// LoadPersistent has populated every config variable.
func (m *Module) OnConfigLoaded(cfg *cfgstore.Store, services *registry.Registry) error {
	weekStartMon := true
	if v, ok := cfg.Get(ServiceID, cfgWeekStartMon); ok {
		weekStartMon, _ = v.(bool)
	}
	m.sched = NewScheduler(weekStartMon, EventDayStart, EventWeekStart, EventMonthStart)

	if v, ok := cfg.Get(ServiceID, cfgSlotsBlob); ok {
		if blob, _ := v.(string); blob != "" {
			m.sched.Deserialize(blob)
		}
	}

	if v, ok := cfg.Get(ServiceID, cfgEnabled); ok {
		en, _ := v.(bool)
		m.svc.SetEnabled(time.Now(), en)
	}
	if v, ok := cfg.Get(ServiceID, cfgTZ); ok {
		m.tz, _ = v.(string)
	}

	cfg.AddHandler(ServiceID, cfgEnabled, func(value any) {
		if en, ok := value.(bool); ok {
			m.svc.SetEnabled(time.Now(), en)
		}
	})

	return nil
}

// HasTask reports true: the module owns an independent evaluation loop.
func (m *Module) HasTask() bool { return true }

// Loop drives one evaluation cycle: advance the sync state machine, and
// while Synced, evaluate the scheduler and publish each fired edge.
func (m *Module) Loop(ctx context.Context) error {
	now := time.Now()
	if !m.lastTick.IsZero() && now.Sub(m.lastTick) < evaluatePeriod {
		return nil
	}
	m.lastTick = now

	m.svc.Tick(ctx, now)

	if m.svc.State() != Synced || m.sched == nil {
		return nil
	}

	for _, ev := range m.sched.Evaluate(now) {
		m.publish(ev)
	}
	return nil
}

func (m *Module) publish(ev PendingEvent) {
	if m.bus == nil {
		return
	}
	payload := eventbus.SchedulerEventPayload{
		Slot: ev.Slot, Edge: ev.Edge, Replayed: ev.Replayed,
		EventID: ev.EventID, ActiveMask: m.sched.ActiveMask(), EpochSeconds: ev.EpochSec,
	}
	_ = m.bus.Post(eventbus.SchedulerEventTriggered, payload.Encode())
}

// SetNetworkReady reports wifi connectivity to the sync state machine;
// Init subscribes it to DataChanged events for the WifiReady key.
func (m *Module) SetNetworkReady(ready bool) {
	m.svc.SetNetworkReady(time.Now(), ready)
}

// Scheduler exposes the underlying scheduler for command handlers and tests.
func (m *Module) Scheduler() *Scheduler { return m.sched }

// Sync exposes the underlying sync service for command handlers and tests.
func (m *Module) Sync() *Service { return m.svc }

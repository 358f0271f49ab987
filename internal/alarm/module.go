package alarm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/eventbus"
	"github.com/poolctld/poolctld/internal/registry"
)

// Service registry ids this module depends on, matching
// AlarmModule::dependencyCount/dependency.
const (
	ServiceID         = "alarms"
	loghubServiceID   = "loghub"
	eventbusServiceID = "eventbus"
	commandServiceID  = "cmd"
)

const (
	cfgEnabled      = "enabled"
	cfgEvalPeriodMs = "eval_period_ms"
)

// Module wires Engine into the cooperative module runtime.
type Module struct {
	engine       *Engine
	log          *corelog.Hub
	enabled      bool
	evalPeriodMs int32
}

// NewModule constructs a Module around a fresh Engine.
func NewModule() *Module {
	return &Module{engine: New(), enabled: true, evalPeriodMs: DefaultEvalPeriod}
}

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string {
	return []string{loghubServiceID, eventbusServiceID, commandServiceID}
}

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if log, ok := registry.MustGet[*corelog.Hub](services, loghubServiceID); ok {
		m.log = log
		m.engine.SetLog(log)
	}
	if bus, ok := registry.MustGet[*eventbus.Bus](services, eventbusServiceID); ok {
		m.engine.SetEventBus(bus)
	}
	if cmds, ok := registry.MustGet[*command.Registry](services, commandServiceID); ok {
		_ = cmds.Register("alarms.list", m.handleList)
		_ = cmds.Register("alarms.ack", m.handleAck)
		_ = cmds.Register("alarms.ack_all", m.handleAckAll)
	}

	_ = services.Add(ServiceID, m.engine)

	for _, d := range []cfgstore.ConfigDescriptor{
		{Module: ServiceID, Name: cfgEnabled, Key: "alarm_en", Type: cfgstore.TypeBool, Persistence: cfgstore.Persistent, Default: true},
		{Module: ServiceID, Name: cfgEvalPeriodMs, Key: "alarm_evms", Type: cfgstore.TypeInt32, Persistence: cfgstore.Persistent, Default: int32(DefaultEvalPeriod)},
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
	if v, ok := cfg.Get(ServiceID, cfgEvalPeriodMs); ok {
		m.evalPeriodMs, _ = v.(int32)
	}
	cfg.AddHandler(ServiceID, cfgEnabled, func(value any) {
		if en, ok := value.(bool); ok {
			m.enabled = en
		}
	})
	cfg.AddHandler(ServiceID, cfgEvalPeriodMs, func(value any) {
		if ms, ok := value.(int32); ok {
			m.evalPeriodMs = ms
		}
	})
	return nil
}

// Engine exposes the underlying engine for registration by other modules
// and for tests.
func (m *Module) Engine() *Engine { return m.engine }

// Loop runs one evaluation pass at the clamped cadence.
func (m *Module) Loop(ctx context.Context) error {
	if !m.enabled {
		time.Sleep(500 * time.Millisecond)
		return nil
	}
	m.engine.EvaluateOnce(time.Now().UnixMilli())
	time.Sleep(time.Duration(ClampEvalPeriodMs(m.evalPeriodMs)) * time.Millisecond)
	return nil
}

func (m *Module) handleList(ctx context.Context, req command.Request) ([]byte, error) {
	snap := m.engine.Snapshot()
	type alarmJSON struct {
		ID            uint16 `json:"id"`
		Code          string `json:"code"`
		Title         string `json:"title"`
		Severity      string `json:"severity"`
		Latched       bool   `json:"latched"`
		Active        bool   `json:"active"`
		Acked         bool   `json:"acked"`
		Cond          string `json:"cond"`
		ActiveSinceMs int64  `json:"active_since_ms"`
		LastChangeMs  int64  `json:"last_change_ms"`
	}
	out := make([]alarmJSON, 0, len(snap))
	for _, s := range snap {
		out = append(out, alarmJSON{
			ID: uint16(s.ID), Code: s.Code, Title: s.Title, Severity: s.Severity.String(),
			Latched: s.Latched, Active: s.Active, Acked: s.Acked, Cond: s.LastCond.String(),
			ActiveSinceMs: s.ActiveSinceMs, LastChangeMs: s.LastChangeMs,
		})
	}
	doc, err := json.Marshal(struct {
		OK              bool        `json:"ok"`
		ActiveCount     uint8       `json:"active_count"`
		HighestSeverity string      `json:"highest_severity"`
		Alarms          []alarmJSON `json:"alarms"`
	}{OK: true, ActiveCount: m.engine.ActiveCount(), HighestSeverity: m.engine.HighestSeverity().String(), Alarms: out})
	if err != nil {
		return nil, command.NewError(command.InternalAckOverflow, "alarms.list")
	}
	return doc, nil
}

func (m *Module) handleAck(ctx context.Context, req command.Request) ([]byte, error) {
	var r struct {
		ID uint16 `json:"id"`
	}
	if err := json.Unmarshal([]byte(req.JSON), &r); err != nil {
		return nil, command.NewError(command.BadCmdJSON, "alarms.ack")
	}
	acked := m.engine.Ack(ID(r.ID), time.Now().UnixMilli())
	doc, _ := json.Marshal(struct {
		OK    bool `json:"ok"`
		Acked bool `json:"acked"`
	}{OK: true, Acked: acked})
	return doc, nil
}

func (m *Module) handleAckAll(ctx context.Context, req command.Request) ([]byte, error) {
	n := m.engine.AckAll(time.Now().UnixMilli())
	doc, _ := json.Marshal(struct {
		OK    bool  `json:"ok"`
		Acked uint8 `json:"acked"`
	}{OK: true, Acked: n})
	return doc, nil
}

package timesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/poolctld/poolctld/internal/command"
)

// setSlotRequest is the JSON body for "time.scheduler.set". Either Every
// or When selects the NLP sugar path; if both are empty the numeric
// fields (WeekdayMask/StartHour/... ) are used directly.
type setSlotRequest struct {
	Slot        uint8  `json:"slot"`
	Label       string `json:"label"`
	Enabled     bool   `json:"enabled"`
	EventID     uint16 `json:"event_id"`
	Every       string `json:"every"`
	When        string `json:"when"`
	WeekdayMask uint8  `json:"weekday_mask"`
	StartHour   uint8  `json:"start_hour"`
	StartMinute uint8  `json:"start_minute"`
	EndHour     uint8  `json:"end_hour"`
	HasEnd      bool   `json:"has_end"`
	EndMinute   uint8  `json:"end_minute"`
}

func registerCommands(reg *command.Registry, m *Module) {
	_ = reg.Register("time.scheduler.info", m.handleSchedulerInfo)
	_ = reg.Register("time.scheduler.get", m.handleSchedulerGet)
	_ = reg.Register("time.scheduler.set", m.handleSchedulerSet)
	_ = reg.Register("time.scheduler.clear", m.handleSchedulerClear)
	_ = reg.Register("time.scheduler.clear_all", m.handleSchedulerClearAll)
	_ = reg.Register("scheduler.dump", m.handleSchedulerDump)
	_ = reg.Register("time.resync", m.handleResync)
	_ = reg.Register("time.status", m.handleStatus)
}

// persistSlots serializes the slot table and writes it back to the
// config store, matching the firmware's "mutate then persist" pattern
// around setSlot_/clearSlot_/clearAll_. A write failure is logged but
// never undoes the in-memory mutation: the table stays usable until the
// next reboot even if persistence is degraded.
func (m *Module) persistSlots() {
	if m.cfg == nil || m.sched == nil {
		return
	}
	if _, err := m.cfg.Set(ServiceID, cfgSlotsBlob, m.sched.Serialize()); err != nil && m.log != nil {
		m.log.Errorf("time", "persist scheduler slots: %v", err)
	}
}

func (m *Module) handleSchedulerInfo(ctx context.Context, req command.Request) ([]byte, error) {
	mask := m.sched.ActiveMask()
	weekStart := "sunday"
	if m.sched.weekStartMonday {
		weekStart = "monday"
	}
	loc := time.UTC
	if m.tz != "" {
		if l, err := time.LoadLocation(m.tz); err == nil {
			loc = l
		}
	}
	doc, err := json.Marshal(struct {
		OK            bool   `json:"ok"`
		State         string `json:"state"`
		Synced        bool   `json:"synced"`
		Used          uint8  `json:"used"`
		ActiveMask    uint16 `json:"active_mask"`
		ActiveMaskHex string `json:"active_mask_hex"`
		WeekStart     string `json:"week_start"`
		Now           string `json:"now"`
	}{
		OK: true, State: m.svc.State().String(), Synced: m.svc.State() == Synced,
		Used: m.sched.UsedCount(), ActiveMask: mask, ActiveMaskHex: hexMask(mask),
		WeekStart: weekStart, Now: time.Now().In(loc).Format(time.RFC3339),
	})
	if err != nil {
		return nil, command.NewError(command.InternalAckOverflow, "time.scheduler.info")
	}
	return doc, nil
}

func hexMask(mask uint16) string {
	const hexDigits = "0123456789ABCDEF"
	buf := [4]byte{}
	for i := 3; i >= 0; i-- {
		buf[i] = hexDigits[mask&0xF]
		mask >>= 4
	}
	return "0x" + string(buf[:])
}

func (m *Module) handleSchedulerGet(ctx context.Context, req command.Request) ([]byte, error) {
	var r struct {
		Slot uint8 `json:"slot"`
	}
	if err := json.Unmarshal([]byte(req.JSON), &r); err != nil {
		return nil, command.NewError(command.MissingArgs, "time.scheduler.get")
	}
	def, err := m.sched.GetSlot(r.Slot)
	if err != nil {
		return nil, command.NewError(command.UnusedSlot, "time.scheduler.get")
	}

	mode := "recurring_clock"
	if def.Mode == OneShotEpoch {
		mode = "one_shot_epoch"
	}
	doc, err := json.Marshal(struct {
		OK                bool   `json:"ok"`
		Slot              uint8  `json:"slot"`
		EventID           uint16 `json:"event_id"`
		Label             string `json:"label"`
		Enabled           bool   `json:"enabled"`
		Mode              string `json:"mode"`
		HasEnd            bool   `json:"has_end"`
		ReplayStartOnBoot bool   `json:"replay_start_on_boot"`
		WeekdayMask       uint8  `json:"weekday_mask"`
		Start             struct {
			Hour   uint8  `json:"hour"`
			Minute uint8  `json:"minute"`
			Epoch  uint64 `json:"epoch"`
		} `json:"start"`
		End struct {
			Hour   uint8  `json:"hour"`
			Minute uint8  `json:"minute"`
			Epoch  uint64 `json:"epoch"`
		} `json:"end"`
	}{
		OK: true, Slot: def.Slot, EventID: def.EventID, Label: def.Label,
		Enabled: def.Enabled, Mode: mode, HasEnd: def.HasEnd,
		ReplayStartOnBoot: def.ReplayStartOnBoot, WeekdayMask: def.WeekdayMask,
		Start: struct {
			Hour   uint8  `json:"hour"`
			Minute uint8  `json:"minute"`
			Epoch  uint64 `json:"epoch"`
		}{Hour: def.StartHour, Minute: def.StartMinute, Epoch: def.StartEpochSec},
		End: struct {
			Hour   uint8  `json:"hour"`
			Minute uint8  `json:"minute"`
			Epoch  uint64 `json:"epoch"`
		}{Hour: def.EndHour, Minute: def.EndMinute, Epoch: def.EndEpochSec},
	})
	if err != nil {
		return nil, command.NewError(command.InternalAckOverflow, "time.scheduler.get")
	}
	return doc, nil
}

func (m *Module) handleSchedulerSet(ctx context.Context, req command.Request) ([]byte, error) {
	var r setSlotRequest
	if err := json.Unmarshal([]byte(req.JSON), &r); err != nil {
		return nil, command.NewError(command.BadCmdJSON, "time.scheduler.set")
	}
	if r.Slot < FirstUserSlot || r.Slot >= MaxSlots {
		return nil, command.NewError(command.MissingSlot, "time.scheduler.set")
	}

	var def Slot
	var err error
	switch {
	case r.Every != "":
		def, err = ParseRecurringPhrase(r.Every)
	case r.When != "":
		def, err = ParseWhenPhrase(r.When, time.Now())
	default:
		def = Slot{
			Mode: RecurringClock, WeekdayMask: r.WeekdayMask,
			StartHour: r.StartHour, StartMinute: r.StartMinute,
			HasEnd: r.HasEnd, EndHour: r.EndHour, EndMinute: r.EndMinute,
		}
	}
	if err != nil {
		return nil, command.NewError(command.BadCmdJSON, "time.scheduler.set")
	}

	def.Slot = r.Slot
	def.Label = r.Label
	def.Enabled = r.Enabled
	def.EventID = r.EventID

	if setErr := m.sched.SetSlot(def); setErr != nil {
		return nil, command.NewError(command.MissingSlot, "time.scheduler.set")
	}
	m.persistSlots()

	return []byte(`{"ok":true}`), nil
}

func (m *Module) handleSchedulerClear(ctx context.Context, req command.Request) ([]byte, error) {
	var r struct {
		Slot uint8 `json:"slot"`
	}
	if err := json.Unmarshal([]byte(req.JSON), &r); err != nil {
		return nil, command.NewError(command.BadCmdJSON, "time.scheduler.clear")
	}
	if err := m.sched.ClearSlot(r.Slot); err != nil {
		return nil, command.NewError(command.MissingSlot, "time.scheduler.clear")
	}
	m.persistSlots()
	return []byte(`{"ok":true}`), nil
}

func (m *Module) handleSchedulerClearAll(ctx context.Context, req command.Request) ([]byte, error) {
	m.sched.ClearAll()
	m.persistSlots()
	return []byte(`{"ok":true}`), nil
}

func (m *Module) handleSchedulerDump(ctx context.Context, req command.Request) ([]byte, error) {
	y, err := m.sched.DumpYAML()
	if err != nil {
		return nil, command.NewError(command.InternalAckOverflow, "scheduler.dump")
	}
	doc, err := json.Marshal(struct {
		OK   bool   `json:"ok"`
		YAML string `json:"yaml"`
	}{OK: true, YAML: string(y)})
	if err != nil {
		return nil, command.NewError(command.InternalAckOverflow, "scheduler.dump")
	}
	return doc, nil
}

func (m *Module) handleResync(ctx context.Context, req command.Request) ([]byte, error) {
	m.svc.ForceResync()
	return []byte(`{"ok":true}`), nil
}

func (m *Module) handleStatus(ctx context.Context, req command.Request) ([]byte, error) {
	epoch, synced := m.svc.Epoch()
	doc, err := json.Marshal(struct {
		OK     bool   `json:"ok"`
		State  string `json:"state"`
		Synced bool   `json:"synced"`
		Epoch  int64  `json:"epoch"`
	}{OK: true, State: m.svc.State().String(), Synced: synced, Epoch: epoch.Unix()})
	if err != nil {
		return nil, command.NewError(command.InternalAckOverflow, "time.status")
	}
	return doc, nil
}

package alarm

import (
	"sync"

	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/eventbus"
)

// Engine holds the fixed alarm slot table and evaluates it on each tick,
// the Go analog of AlarmModule's slots_ array plus slotsMux_.
type Engine struct {
	mu    sync.Mutex
	slots [MaxAlarms]slot

	bus *eventbus.Bus
	log *corelog.Hub
}

// New returns an empty Engine. SetEventBus/SetLog are optional: without a
// bus, EvaluateOnce still applies hysteresis/latch transitions but emits
// no events.
func New() *Engine { return &Engine{} }

func (e *Engine) SetEventBus(b *eventbus.Bus) { e.bus = b }
func (e *Engine) SetLog(h *corelog.Hub)       { e.log = h }

func (e *Engine) findByID(id ID) int {
	for i := range e.slots {
		if e.slots[i].used && e.slots[i].id == id {
			return i
		}
	}
	return -1
}

func (e *Engine) findFree() int {
	for i := range e.slots {
		if !e.slots[i].used {
			return i
		}
	}
	return -1
}

// RegisterAlarm installs def/eval into the first free slot. Duplicate ids
// are rejected (first-write-wins), matching registerAlarm_.
func (e *Engine) RegisterAlarm(def Descriptor, eval ConditionFunc) error {
	if eval == nil {
		return ErrNilCondition
	}
	if def.ID == None || def.Code == "" || def.Title == "" {
		return ErrInvalidDescriptor
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.findByID(def.ID) >= 0 {
		return ErrDuplicateID
	}
	idx := e.findFree()
	if idx < 0 {
		return ErrFull
	}
	e.slots[idx] = slot{used: true, id: def.ID, def: def, eval: eval}
	if e.log != nil {
		e.log.Infof("alarm", "registered id=%d code=%s", def.ID, def.Code)
	}
	return nil
}

func delayReached(sinceMs, delayMs, nowMs int64) bool {
	if delayMs == 0 {
		return true
	}
	if sinceMs == 0 {
		return false
	}
	return nowMs-sinceMs >= delayMs
}

// EvaluateOnce runs one pass over every registered alarm, applying
// on/off-delay hysteresis and latch/ack semantics, and emits
// ConditionChanged/AlarmRaised/AlarmCleared events for any transition —
// ported function-for-function from AlarmModule.cpp's evaluateOnce_.
func (e *Engine) EvaluateOnce(nowMs int64) {
	for i := range e.slots {
		e.mu.Lock()
		if !e.slots[i].used {
			e.mu.Unlock()
			continue
		}
		id := e.slots[i].id
		evalFn := e.slots[i].eval
		e.mu.Unlock()

		if evalFn == nil {
			continue
		}
		cond := evalFn(nowMs)

		var postRaised, postCleared, postCondTrue, postCondFalse bool

		e.mu.Lock()
		idx := e.findByID(id)
		if idx >= 0 {
			s := &e.slots[idx]
			prevCond := s.lastCond
			if prevCond != cond {
				if cond == True {
					postCondTrue = true
				} else if cond == False {
					postCondFalse = true
				}
			}
			s.lastCond = cond

			switch cond {
			case True:
				s.offSinceMs = 0
				if !s.active {
					if s.onSinceMs == 0 {
						s.onSinceMs = nowMs
					}
					if delayReached(s.onSinceMs, int64(s.def.OnDelayMs), nowMs) {
						s.active = true
						s.acked = false
						s.activeSinceMs = nowMs
						s.lastChangeMs = nowMs
						s.onSinceMs = 0
						postRaised = true
					}
				} else {
					s.onSinceMs = 0
				}
			case False:
				s.onSinceMs = 0
				if s.active {
					canClear := !s.def.Latched || s.acked
					if canClear {
						if s.offSinceMs == 0 {
							s.offSinceMs = nowMs
						}
						if delayReached(s.offSinceMs, int64(s.def.OffDelayMs), nowMs) {
							s.active = false
							s.acked = false
							s.offSinceMs = 0
							s.lastChangeMs = nowMs
							postCleared = true
						}
					} else {
						s.offSinceMs = 0
					}
				} else {
					s.offSinceMs = 0
				}
			default: // Unknown
				s.onSinceMs = 0
				s.offSinceMs = 0
			}
		}
		e.mu.Unlock()

		if postCondTrue || postCondFalse {
			e.emit(eventbus.AlarmConditionChanged, id)
		}
		if postRaised {
			if e.log != nil {
				e.log.Warnf("alarm", "raised id=%d", id)
			}
			e.emit(eventbus.AlarmRaised, id)
		}
		if postCleared {
			if e.log != nil {
				e.log.Infof("alarm", "cleared id=%d", id)
			}
			e.emit(eventbus.AlarmCleared, id)
		}
	}
}

func (e *Engine) emit(evID eventbus.ID, id ID) {
	if e.bus == nil {
		return
	}
	payload := eventbus.AlarmPayload{AlarmID: uint16(id)}
	_ = e.bus.Post(evID, payload.Encode())
}

// Ack acknowledges a latched, active, un-acked alarm. If the condition has
// already returned to False and OffDelayMs==0, the alarm clears
// immediately as part of the same call, matching ack_'s ack-then-clear
// fast path. Returns true if either transition happened.
func (e *Engine) Ack(id ID, nowMs int64) bool {
	var postAck, postClear bool

	e.mu.Lock()
	idx := e.findByID(id)
	if idx >= 0 {
		s := &e.slots[idx]
		if s.active && s.def.Latched && !s.acked {
			s.acked = true
			s.lastChangeMs = nowMs
			postAck = true
			if s.lastCond == False && s.def.OffDelayMs == 0 {
				s.active = false
				s.acked = false
				s.offSinceMs = 0
				s.lastChangeMs = nowMs
				postClear = true
			}
		}
	}
	e.mu.Unlock()

	if postAck {
		if e.log != nil {
			e.log.Infof("alarm", "acked id=%d", id)
		}
		e.emit(eventbus.AlarmAcked, id)
	}
	if postClear {
		if e.log != nil {
			e.log.Infof("alarm", "cleared id=%d (ack path)", id)
		}
		e.emit(eventbus.AlarmCleared, id)
	}
	return postAck || postClear
}

// AckAll acknowledges every latched, active, un-acked alarm, matching
// ackAll_'s two-pass snapshot-then-act structure (so Ack's own locking
// is never taken recursively while the slot-table lock is held).
func (e *Engine) AckAll(nowMs int64) uint8 {
	var pending []ID
	e.mu.Lock()
	for i := range e.slots {
		s := &e.slots[i]
		if !s.used || !s.active || !s.def.Latched || s.acked {
			continue
		}
		pending = append(pending, s.id)
	}
	e.mu.Unlock()

	var acked uint8
	for _, id := range pending {
		if e.Ack(id, nowMs) {
			acked++
		}
	}
	return acked
}

// IsActive reports whether id is currently active.
func (e *Engine) IsActive(id ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.findByID(id)
	return idx >= 0 && e.slots[idx].active
}

// IsAcked reports whether id's current activation has been acked.
func (e *Engine) IsAcked(id ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.findByID(id)
	return idx >= 0 && e.slots[idx].acked
}

// ActiveCount returns the number of currently-active alarms.
func (e *Engine) ActiveCount() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n uint8
	for i := range e.slots {
		if e.slots[i].used && e.slots[i].active {
			n++
		}
	}
	return n
}

// HighestSeverity returns the highest severity among active alarms, or
// Info if none are active.
func (e *Engine) HighestSeverity() Severity {
	e.mu.Lock()
	defer e.mu.Unlock()
	highest := Info
	for i := range e.slots {
		s := &e.slots[i]
		if !s.used || !s.active {
			continue
		}
		if s.def.Severity > highest {
			highest = s.def.Severity
		}
	}
	return highest
}

// ListIDs returns every registered alarm id, in slot order.
func (e *Engine) ListIDs() []ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []ID
	for i := range e.slots {
		if e.slots[i].used {
			out = append(out, e.slots[i].id)
		}
	}
	return out
}

// State returns a snapshot of one alarm's runtime state.
func (e *Engine) State(id ID) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.findByID(id)
	if idx < 0 {
		return State{}, ErrNotFound
	}
	s := &e.slots[idx]
	return State{
		ID: s.id, Code: s.def.Code, Title: s.def.Title, Severity: s.def.Severity,
		Latched: s.def.Latched, Active: s.active, Acked: s.acked, LastCond: s.lastCond,
		ActiveSinceMs: s.activeSinceMs, LastChangeMs: s.lastChangeMs,
	}, nil
}

// Snapshot returns every registered alarm's state, in slot order.
func (e *Engine) Snapshot() []State {
	ids := e.ListIDs()
	out := make([]State, 0, len(ids))
	for _, id := range ids {
		if st, err := e.State(id); err == nil {
			out = append(out, st)
		}
	}
	return out
}

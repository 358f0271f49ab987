package timesvc

import (
	"errors"
	"sync"
	"time"

	"github.com/poolctld/poolctld/internal/eventbus"
)

// MaxSlots is the compile-time scheduler capacity, matching TIME_SCHED_MAX_SLOTS.
const MaxSlots = 16

// Reserved system slot indices, matching TIME_SLOT_SYS_*.
const (
	SlotDayStart   uint8 = 0
	SlotWeekStart  uint8 = 1
	SlotMonthStart uint8 = 2
	FirstUserSlot  uint8 = 3
)

// WeekdayAll enables every day, matching TIME_WEEKDAY_ALL (the "mask==0
// means all days" default from isWeekdayEnabled_).
const WeekdayAll uint8 = 0x7F

// Mode selects between a recurring clock-of-day rule and a one-shot
// absolute-epoch rule.
type Mode uint8

const (
	RecurringClock Mode = iota
	OneShotEpoch
)

var (
	// ErrInvalidSlot is returned for a slot index >= MaxSlots.
	ErrInvalidSlot = errors.New("timesvc: invalid slot index")
	// ErrReservedSlot is returned when a caller tries to set/clear a
	// system-reserved slot (0, 1, 2).
	ErrReservedSlot = errors.New("timesvc: slot is reserved")
	// ErrUnusedSlot is returned by GetSlot for a slot with nothing
	// registered; ClearSlot on an unused slot succeeds.
	ErrUnusedSlot = errors.New("timesvc: slot is unused")
)

// Slot is one scheduler rule, ported from TimeSchedulerSlot.
type Slot struct {
	Slot              uint8
	Enabled           bool
	Mode              Mode
	EventID           uint16
	WeekdayMask       uint8 // bit0=Monday .. bit6=Sunday, matching weekBitFromTm_
	StartHour         uint8
	StartMinute       uint8
	EndHour           uint8
	EndMinute         uint8
	HasEnd            bool
	StartEpochSec     uint64
	EndEpochSec       uint64
	ReplayStartOnBoot bool
	Label             string
}

// retiring/lastTriggerMinuteKey are both only ever touched while mu is
// held (inside Evaluate), so a plain bool is enough — no separate atomic
// needed on top of the Scheduler-wide mutex.
type slotRuntime struct {
	used                 bool
	def                  Slot
	active               bool
	lastTriggerMinuteKey uint32
	retiring             bool
}

// PendingEvent is one edge produced by a single Evaluate call.
type PendingEvent struct {
	Slot     uint8
	Edge     eventbus.SchedulerEdge
	Replayed bool
	EventID  uint16
	EpochSec uint64
}

// Scheduler holds the fixed slot table and evaluates it on each tick.
type Scheduler struct {
	mu              sync.Mutex
	slots           [MaxSlots]slotRuntime
	initialized     bool
	activeMask      uint16
	weekStartMonday bool
}

// NewScheduler wires the three reserved system slots: day start (every
// day at 00:00), week start (at 00:00 on the configured first weekday),
// and month start (at 00:00, filtered to the 1st of the month at
// evaluation time since there is no monthly recurrence primitive).
func NewScheduler(weekStartMonday bool, dayStartID, weekStartID, monthStartID uint16) *Scheduler {
	s := &Scheduler{weekStartMonday: weekStartMonday}

	weekStartBit := uint8(6) // Sunday
	if weekStartMonday {
		weekStartBit = 0
	}

	s.slots[SlotDayStart] = slotRuntime{used: true, def: Slot{
		Slot: SlotDayStart, Enabled: true, Mode: RecurringClock,
		EventID: dayStartID, WeekdayMask: WeekdayAll,
	}}
	s.slots[SlotWeekStart] = slotRuntime{used: true, def: Slot{
		Slot: SlotWeekStart, Enabled: true, Mode: RecurringClock,
		EventID: weekStartID, WeekdayMask: 1 << weekStartBit,
	}}
	s.slots[SlotMonthStart] = slotRuntime{used: true, def: Slot{
		Slot: SlotMonthStart, Enabled: true, Mode: RecurringClock,
		EventID: monthStartID, WeekdayMask: WeekdayAll,
	}}
	return s
}

func isSystemSlot(i uint8) bool { return i < FirstUserSlot }

// SetSlot installs def into its declared slot index. System slots 0-2
// cannot be overwritten by callers.
func (s *Scheduler) SetSlot(def Slot) error {
	if def.Slot >= MaxSlots {
		return ErrInvalidSlot
	}
	if isSystemSlot(def.Slot) {
		return ErrReservedSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[def.Slot] = slotRuntime{used: true, def: def}
	return nil
}

// GetSlot returns a copy of the slot's definition.
func (s *Scheduler) GetSlot(i uint8) (Slot, error) {
	if i >= MaxSlots {
		return Slot{}, ErrInvalidSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sr := s.slots[i]
	if !sr.used {
		return Slot{}, ErrUnusedSlot
	}
	return sr.def, nil
}

// ClearSlot removes a user slot.
func (s *Scheduler) ClearSlot(i uint8) error {
	if i >= MaxSlots {
		return ErrInvalidSlot
	}
	if isSystemSlot(i) {
		return ErrReservedSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[i] = slotRuntime{}
	return nil
}

// ClearAll removes every user slot, leaving the three system slots intact.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := FirstUserSlot; i < MaxSlots; i++ {
		s.slots[i] = slotRuntime{}
	}
}

// UsedCount reports how many slots (system + user) are populated.
func (s *Scheduler) UsedCount() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint8
	for i := range s.slots {
		if s.slots[i].used {
			n++
		}
	}
	return n
}

// ActiveMask returns the bitmask of currently-active windowed slots, as
// of the most recent Evaluate call.
func (s *Scheduler) ActiveMask() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeMask
}

// IsActive reports whether slot i was active as of the most recent
// Evaluate call.
func (s *Scheduler) IsActive(i uint8) bool {
	if i >= MaxSlots {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[i].active
}

// weekBitFromTm maps Go's Sunday=0 weekday numbering onto the firmware's
// Monday=0 numbering, matching weekBitFromTm_.
func weekBitFromTm(t time.Time) uint8 {
	wd := t.Weekday()
	if wd == time.Sunday {
		return 6
	}
	return uint8(wd - time.Monday)
}

func minuteOfDay(t time.Time) uint32 {
	return uint32(t.Hour())*60 + uint32(t.Minute())
}

func isWeekdayEnabled(mask, weekBit uint8) bool {
	if mask == 0 {
		mask = WeekdayAll
	}
	return mask&(1<<weekBit) != 0
}

func isRecurringTriggerNow(def Slot, weekBit uint8, dayMinute uint32) bool {
	if def.Mode != RecurringClock {
		return false
	}
	if !isWeekdayEnabled(def.WeekdayMask, weekBit) {
		return false
	}
	startMin := uint32(def.StartHour)*60 + uint32(def.StartMinute)
	return dayMinute == startMin
}

func isRecurringActiveNow(def Slot, weekBit, prevWeekBit uint8, dayMinute uint32) bool {
	if def.Mode != RecurringClock || !def.HasEnd {
		return false
	}
	startMin := uint32(def.StartHour)*60 + uint32(def.StartMinute)
	endMin := uint32(def.EndHour)*60 + uint32(def.EndMinute)
	if startMin == endMin {
		return false
	}
	if startMin < endMin {
		if !isWeekdayEnabled(def.WeekdayMask, weekBit) {
			return false
		}
		return dayMinute >= startMin && dayMinute < endMin
	}
	// Window wraps midnight: the evening portion (dayMinute >= startMin)
	// belongs to today's weekday; the early-morning portion
	// (dayMinute < endMin) belongs to the previous day's weekday. Minutes
	// in between (endMin <= dayMinute < startMin) are outside the window
	// on either day.
	if dayMinute >= startMin {
		return isWeekdayEnabled(def.WeekdayMask, weekBit)
	}
	if dayMinute < endMin {
		return isWeekdayEnabled(def.WeekdayMask, prevWeekBit)
	}
	return false
}

// schedMinValidEpoch mirrors SCHED_MIN_VALID_EPOCH: evaluation is a no-op
// before the clock has ever plausibly synced, matching the firmware's
// guard against scheduling against an un-synced RTC default.
var schedMinValidEpoch = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// Evaluate runs one scheduler tick against now, returning the edges that
// fired. It must be called only while the time source is Synced.
//
// REDESIGN FLAGS §9 Open Question (b): a retired one-shot slot is not
// cleared in place — the evaluator marks it "retiring" and a janitor
// pass at the start of the *next* Evaluate call actually frees it, so a
// concurrent GetSlot/ActiveMask reader never observes a half-cleared
// slot mid-tick.
func (s *Scheduler) Evaluate(now time.Time) []PendingEvent {
	if now.Before(schedMinValidEpoch) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		if s.slots[i].retiring {
			s.slots[i] = slotRuntime{}
		}
	}

	minuteKey := uint32(now.Unix() / 60)
	weekBit := weekBitFromTm(now)
	prevWeekBit := uint8(6)
	if weekBit != 0 {
		prevWeekBit = weekBit - 1
	}
	dayMinute := minuteOfDay(now)

	var pending []PendingEvent
	var newMask uint16

	for i := range s.slots {
		sr := &s.slots[i]
		if !sr.used {
			continue
		}

		if !sr.def.Enabled {
			if sr.active {
				sr.active = false
				pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStop, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
			}
			continue
		}

		if sr.def.Mode == OneShotEpoch {
			if !sr.def.HasEnd {
				if uint64(now.Unix()) >= sr.def.StartEpochSec {
					if sr.lastTriggerMinuteKey != minuteKey {
						replayed := !s.initialized
						pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeTrigger, Replayed: replayed, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
						sr.lastTriggerMinuteKey = minuteKey
					}
					sr.active = false
					sr.retiring = true
				}
				continue
			}

			activeNow := uint64(now.Unix()) >= sr.def.StartEpochSec && uint64(now.Unix()) < sr.def.EndEpochSec
			if !s.initialized {
				sr.active = activeNow
				if activeNow && sr.def.ReplayStartOnBoot {
					pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStart, Replayed: true, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
				}
			} else {
				if !sr.active && activeNow {
					pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStart, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
				} else if sr.active && !activeNow {
					pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStop, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
				}
				sr.active = activeNow
			}

			if !sr.active && uint64(now.Unix()) >= sr.def.EndEpochSec {
				sr.retiring = true
			} else if sr.active {
				newMask |= 1 << uint(i)
			}
			continue
		}

		// Recurring clock mode.
		if !sr.def.HasEnd {
			shouldTrigger := isRecurringTriggerNow(sr.def, weekBit, dayMinute)
			if shouldTrigger {
				if sr.def.Slot == SlotMonthStart && now.Day() != 1 {
					sr.active = false
					continue
				}
				if sr.lastTriggerMinuteKey != minuteKey {
					replayed := !s.initialized
					pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeTrigger, Replayed: replayed, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
					sr.lastTriggerMinuteKey = minuteKey
				}
			}
			sr.active = false
			continue
		}

		activeNow := isRecurringActiveNow(sr.def, weekBit, prevWeekBit, dayMinute)
		if !s.initialized {
			sr.active = activeNow
			if activeNow && sr.def.ReplayStartOnBoot {
				pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStart, Replayed: true, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
			}
		} else {
			if !sr.active && activeNow {
				pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStart, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
			} else if sr.active && !activeNow {
				pending = append(pending, PendingEvent{Slot: uint8(i), Edge: eventbus.EdgeStop, EventID: sr.def.EventID, EpochSec: uint64(now.Unix())})
			}
			sr.active = activeNow
		}
		if sr.active {
			newMask |= 1 << uint(i)
		}
	}

	s.activeMask = newMask
	s.initialized = true
	return pending
}

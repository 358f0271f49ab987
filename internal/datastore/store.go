package datastore

import (
	"sync"
	"sync/atomic"

	"github.com/poolctld/poolctld/internal/eventbus"
)

// Store guards Root with a mutex and layers dirty-mask change
// notification on top of it. If no *eventbus.Bus is injected, the store
// degrades to a pure value holder: mutations still apply, but no events
// fire — matching "the event bus dependency is injected; if absent, the
// store is a pure value holder."
type Store struct {
	mu   sync.Mutex
	root Root

	dirty atomic.Uint32
	bus   *eventbus.Bus

	snapshotMu     sync.Mutex
	snapshotPosted bool
}

// New constructs a Store with a zero-valued Root.
func New() *Store {
	return &Store{}
}

// SetEventBus wires the bus used for DataChanged/DataSnapshotAvailable.
func (s *Store) SetEventBus(b *eventbus.Bus) { s.bus = b }

// View returns a copy of the current Root, safe to read without holding
// the store's lock.
func (s *Store) View() Root {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *Store) markDirty(group uint32, key Key) {
	s.dirty.Or(group)
	if s.bus == nil {
		return
	}
	p := eventbus.DataChangedPayload{Key: uint16(key)}
	_ = s.bus.Post(eventbus.DataChanged, p.Encode())
}

// ConsumeDirty atomically reads and clears the accumulated dirty mask.
func (s *Store) ConsumeDirty() uint32 {
	return s.dirty.Swap(0)
}

// BeginTick resets the per-tick "snapshot already posted" flag. The
// lifecycle manager does not call BeginTick or Flush; a caller that wants
// one DataSnapshotAvailable per tick calls BeginTick, then Flush.
func (s *Store) BeginTick() {
	s.snapshotMu.Lock()
	s.snapshotPosted = false
	s.snapshotMu.Unlock()
}

// Flush posts one DataSnapshotAvailable for the tick if any key changed
// and a snapshot hasn't already been posted this tick — deduplicating the
// teacher's per-mutation posting down to one event per tick, matching
// DataStore.cpp's tick-driven (not mutation-driven) snapshot cadence.
func (s *Store) Flush() {
	if s.bus == nil {
		return
	}
	mask := s.dirty.Load()
	if mask == 0 {
		return
	}
	s.snapshotMu.Lock()
	if s.snapshotPosted {
		s.snapshotMu.Unlock()
		return
	}
	s.snapshotPosted = true
	s.snapshotMu.Unlock()

	p := eventbus.DataSnapshotPayload{Mask: mask}
	_ = s.bus.Post(eventbus.DataSnapshotAvailable, p.Encode())
}

// --- WiFi ---

func (s *Store) SetWifiReady(ready bool) bool {
	s.mu.Lock()
	changed := s.root.WiFi.Ready != ready
	s.root.WiFi.Ready = ready
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyNetwork, WifiReady)
	}
	return changed
}

func (s *Store) SetWifiIP(ip string) bool {
	s.mu.Lock()
	changed := s.root.WiFi.IP != ip
	s.root.WiFi.IP = ip
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyNetwork, WifiIP)
	}
	return changed
}

// --- Time ---

func (s *Store) SetTimeReady(ready bool) bool {
	s.mu.Lock()
	changed := s.root.Time.Ready != ready
	s.root.Time.Ready = ready
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyTime, TimeReady)
	}
	return changed
}

// --- MQTT ---

func (s *Store) SetMqttReady(ready bool) bool {
	s.mu.Lock()
	changed := s.root.MQTT.Ready != ready
	s.root.MQTT.Ready = ready
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyMQTT, MqttReady)
	}
	return changed
}

func (s *Store) IncMqttRxDrop()       { s.incMqttCounter(&s.root.MQTT.RxDrop, MqttRxDrop) }
func (s *Store) IncMqttParseFail()    { s.incMqttCounter(&s.root.MQTT.ParseFail, MqttParseFail) }
func (s *Store) IncMqttHandlerFail()  { s.incMqttCounter(&s.root.MQTT.HandlerFail, MqttHandlerFail) }
func (s *Store) IncMqttOversizeDrop() { s.incMqttCounter(&s.root.MQTT.OversizeDrop, MqttOversizeDrop) }

func (s *Store) incMqttCounter(counter *uint32, key Key) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
	s.markDirty(eventbus.DirtyMQTT, key)
}

// --- Home Assistant ---

func (s *Store) SetHaPublished(published bool) bool {
	s.mu.Lock()
	changed := s.root.HA.Published != published
	s.root.HA.Published = published
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyNetwork, HaPublished)
	}
	return changed
}

// --- IO endpoints ---

// SetIOValue writes endpoint i's reading/state. Sensors dirty the
// DirtySensors group; actuators dirty DirtyActuators, since both share
// the IO key range but are reported through different coarse groups.
func (s *Store) SetIOValue(i uint8, kind IOKind, value float64) bool {
	if i >= IOReservedCount {
		return false
	}
	s.mu.Lock()
	ep := &s.root.IO[i]
	changed := valueDiffers(ep.Value, value) || ep.Kind != kind
	ep.Kind = kind
	ep.Value = value
	s.mu.Unlock()
	if changed {
		group := eventbus.DirtySensors
		if kind == IOKindActuator {
			group = eventbus.DirtyActuators
		}
		s.markDirty(group, IOKey(i))
	}
	return changed
}

func (s *Store) SetIOFault(i uint8, fault bool) bool {
	if i >= IOReservedCount {
		return false
	}
	s.mu.Lock()
	ep := &s.root.IO[i]
	changed := ep.Fault != fault
	ep.Fault = fault
	s.mu.Unlock()
	if changed {
		group := eventbus.DirtySensors
		if ep.Kind == IOKindActuator {
			group = eventbus.DirtyActuators
		}
		s.markDirty(group, IOKey(i))
	}
	return changed
}

// --- Pool devices ---

func (s *Store) SetPoolActive(i uint8, active bool) bool {
	if i >= PoolDeviceReservedCount {
		return false
	}
	s.mu.Lock()
	pd := &s.root.Pool[i]
	changed := pd.Active != active
	pd.Active = active
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyPoolDevices, PoolDeviceKey(i))
	}
	return changed
}

func (s *Store) SetPoolMode(i uint8, mode uint8) bool {
	if i >= PoolDeviceReservedCount {
		return false
	}
	s.mu.Lock()
	pd := &s.root.Pool[i]
	changed := pd.Mode != mode
	pd.Mode = mode
	s.mu.Unlock()
	if changed {
		s.markDirty(eventbus.DirtyPoolDevices, PoolDeviceKey(i))
	}
	return changed
}

// valueDiffers applies the NaN-always-"different" rule (REDESIGN FLAGS
// §9 Open Question (a)) to float comparisons in the data store, same as
// cfgstore's valuesDiffer.
func valueDiffers(old, new float64) bool {
	if old != old || new != new { // NaN check without importing math for a single use
		return true
	}
	return old != new
}

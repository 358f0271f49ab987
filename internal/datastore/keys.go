// Package datastore owns the runtime data root: the live values every
// domain module reads and writes, partitioned into a fixed key space and
// backed by dirty-mask change notification through the event bus.
package datastore

// Key identifies one addressable value in the runtime data root, mirroring
// DataKeys.h's DataKey typedef and reserved ranges.
type Key uint16

// Fixed low-range singleton keys, grounded verbatim on DataKeys.h.
const (
	WifiReady Key = 1
	WifiIP    Key = 2
	TimeReady Key = 3

	MqttReady        Key = 4
	MqttRxDrop       Key = 5
	MqttParseFail    Key = 6
	MqttHandlerFail  Key = 7
	MqttOversizeDrop Key = 8

	HaPublished Key = 10
	HaVendor    Key = 11
	HaDeviceID  Key = 12
)

// IO endpoint runtime keys: reserved range [IOBase, IOEndExclusive).
const (
	IOBase          Key   = 40
	IOReservedCount uint8 = 24
	IOEndExclusive  Key   = IOBase + Key(IOReservedCount)
)

// Pool device runtime keys: reserved range [PoolDeviceBase, PoolDeviceEndExclusive).
const (
	PoolDeviceBase          Key   = 80
	PoolDeviceReservedCount uint8 = 8
	PoolDeviceEndExclusive  Key   = PoolDeviceBase + Key(PoolDeviceReservedCount)
)

// ReservedMax is the upper bound for currently reserved keys.
const ReservedMax Key = 127

// IOKey returns the runtime key for IO endpoint index i (0-based).
func IOKey(i uint8) Key { return IOBase + Key(i) }

// PoolDeviceKey returns the runtime key for pool device slot i (0-based).
func PoolDeviceKey(i uint8) Key { return PoolDeviceBase + Key(i) }

// init runs the Go analog of DataKeys.h's static_asserts: range checks
// with no compile-time equivalent in Go become panics at package load,
// catching a reordered or miscomputed constant immediately rather than
// silently corrupting the key space.
func init() {
	mustLess := func(a, b Key, msg string) {
		if !(a < b) {
			panic("datastore: " + msg)
		}
	}
	mustLess(WifiReady, TimeReady, "DataKey ordering invariant broken")
	mustLess(TimeReady, MqttReady, "DataKey ordering invariant broken")
	mustLess(MqttOversizeDrop, HaPublished, "DataKey ranges overlap")
	mustLess(HaDeviceID, IOBase, "HA fixed keys overlap IO key range")
	if !(IOEndExclusive <= PoolDeviceBase) {
		panic("datastore: IO and pool-device key ranges overlap")
	}
	if !(PoolDeviceEndExclusive <= ReservedMax) {
		panic("datastore: pool-device key range exceeds reserved max")
	}
}

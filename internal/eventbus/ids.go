// Package eventbus implements the bounded, ISR-safe event queue that glues
// every core component together. Payloads are copied into fixed-size queue
// slots; subscribers observe a borrowed view valid only for the duration of
// their callback.
package eventbus

// ID identifies an event from the runtime's closed enumeration. New event
// kinds must be added here — the dispatcher never invents ids on the fly.
type ID uint16

// Known event identifiers. Values are part of the wire contract (used in
// logs, the scheduler edge payload, and command replies) and must not be
// renumbered.
const (
	None ID = 0

	// System lifecycle.
	SystemStarted ID = 1

	// Data store (runtime model changes).
	DataChanged           ID = 50
	DataSnapshotAvailable ID = 51

	// Configuration.
	ConfigChanged ID = 100

	// Sensors / runtime data.
	SensorsUpdated ID = 200

	// Actuators.
	RelayChanged ID = 300

	// Domain events.
	PoolModeChanged         ID = 400
	AlarmRaised             ID = 410
	AlarmCleared            ID = 411
	AlarmAcked              ID = 412
	AlarmSilenceChanged     ID = 413
	AlarmConditionChanged   ID = 414
	SchedulerEventTriggered ID = 420
)

// String returns a short human-readable name, used in log lines.
func (id ID) String() string {
	switch id {
	case None:
		return "None"
	case SystemStarted:
		return "SystemStarted"
	case DataChanged:
		return "DataChanged"
	case DataSnapshotAvailable:
		return "DataSnapshotAvailable"
	case ConfigChanged:
		return "ConfigChanged"
	case SensorsUpdated:
		return "SensorsUpdated"
	case RelayChanged:
		return "RelayChanged"
	case PoolModeChanged:
		return "PoolModeChanged"
	case AlarmRaised:
		return "AlarmRaised"
	case AlarmCleared:
		return "AlarmCleared"
	case AlarmAcked:
		return "AlarmAcked"
	case AlarmSilenceChanged:
		return "AlarmSilenceChanged"
	case AlarmConditionChanged:
		return "AlarmConditionChanged"
	case SchedulerEventTriggered:
		return "SchedulerEventTriggered"
	default:
		return "Unknown"
	}
}

package timesvc

import "gopkg.in/yaml.v3"

// dumpSlot is the YAML-friendly projection of a Slot, used only by the
// `poolctl scheduler dump` diagnostic view — never by persistence, which
// uses the compact Serialize/Deserialize blob format instead.
type dumpSlot struct {
	Slot        uint8  `yaml:"slot"`
	Label       string `yaml:"label,omitempty"`
	Enabled     bool   `yaml:"enabled"`
	Mode        string `yaml:"mode"`
	EventID     uint16 `yaml:"event_id"`
	WeekdayMask uint8  `yaml:"weekday_mask"`
	Start       string `yaml:"start,omitempty"`
	End         string `yaml:"end,omitempty"`
	StartEpoch  uint64 `yaml:"start_epoch,omitempty"`
	EndEpoch    uint64 `yaml:"end_epoch,omitempty"`
	Active      bool   `yaml:"active"`
}

func (m Mode) String() string {
	if m == OneShotEpoch {
		return "one_shot"
	}
	return "recurring"
}

// DumpYAML renders the full slot table (system + user) as YAML for
// operator inspection.
func (s *Scheduler) DumpYAML() ([]byte, error) {
	s.mu.Lock()
	dumps := make([]dumpSlot, 0, MaxSlots)
	for i := range s.slots {
		sr := s.slots[i]
		if !sr.used {
			continue
		}
		d := sr.def
		ds := dumpSlot{
			Slot: d.Slot, Label: d.Label, Enabled: d.Enabled,
			Mode: d.Mode.String(), EventID: d.EventID, WeekdayMask: d.WeekdayMask,
			Active: sr.active,
		}
		if d.Mode == RecurringClock {
			ds.Start = hhmm(d.StartHour, d.StartMinute)
			if d.HasEnd {
				ds.End = hhmm(d.EndHour, d.EndMinute)
			}
		} else {
			ds.StartEpoch = d.StartEpochSec
			if d.HasEnd {
				ds.EndEpoch = d.EndEpochSec
			}
		}
		dumps = append(dumps, ds)
	}
	s.mu.Unlock()

	return yaml.Marshal(struct {
		Slots []dumpSlot `yaml:"slots"`
	}{Slots: dumps})
}

func hhmm(h, m uint8) string {
	const digits = "0123456789"
	buf := [5]byte{digits[h/10], digits[h%10], ':', digits[m/10], digits[m%10]}
	return string(buf[:])
}

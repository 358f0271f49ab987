package board

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// LoadProfile reads and validates a board profile from a TOML file.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("board: decode %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultProfile returns the built-in BOARD_REV 1 layout, used when no
// profile file is configured.
func DefaultProfile() *Profile {
	p := &Profile{
		Revision: 1,
		DigitalOuts: []DigitalOut{
			{Name: "filtration", Pin: 32},
			{Name: "ph_pump", Pin: 25},
			{Name: "chlorine_pump", Pin: 26},
			{Name: "chlorine_generator", Pin: 13, Momentary: true, PulseMs: MomentaryPulseMs},
			{Name: "robot", Pin: 33},
			{Name: "lights", Pin: 27},
			{Name: "fill_pump", Pin: 23},
			{Name: "water_heater", Pin: 12},
		},
		DigitalIns: []DigitalIn{
			{Name: "flow", Pin: 34},
		},
		OneWire: []OneWireBus{
			{Name: "a", Pin: 19},
			{Name: "b", Pin: 18},
		},
		I2C: []I2CBus{
			{Name: "primary", SDA: 21, SCL: 22},
		},
	}
	// Panics only on a programmer error in the table above, never on
	// user-supplied data.
	if err := p.Validate(); err != nil {
		panic("board: built-in default profile is invalid: " + err.Error())
	}
	return p
}

// Validate checks that every name is unique across all signal classes
// and that no pin is claimed twice anywhere on the board.
func (p *Profile) Validate() error {
	names := make(map[string]bool)
	pins := make(map[uint8]bool)

	claimName := func(n string) error {
		if names[n] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, n)
		}
		names[n] = true
		return nil
	}
	claimPin := func(pin uint8) error {
		if pins[pin] {
			return fmt.Errorf("%w: %d", ErrDuplicatePin, pin)
		}
		pins[pin] = true
		return nil
	}

	for _, o := range p.DigitalOuts {
		if err := claimName(o.Name); err != nil {
			return err
		}
		if err := claimPin(o.Pin); err != nil {
			return err
		}
	}
	for _, in := range p.DigitalIns {
		if err := claimName(in.Name); err != nil {
			return err
		}
		if err := claimPin(in.Pin); err != nil {
			return err
		}
	}
	for _, w := range p.OneWire {
		if err := claimName(w.Name); err != nil {
			return err
		}
		if err := claimPin(w.Pin); err != nil {
			return err
		}
	}
	for _, b := range p.I2C {
		if err := claimName(b.Name); err != nil {
			return err
		}
		if err := claimPin(b.SDA); err != nil {
			return err
		}
		if err := claimPin(b.SCL); err != nil {
			return err
		}
	}
	return nil
}

// Out returns the digital output definition named n.
func (p *Profile) Out(name string) (DigitalOut, error) {
	for _, o := range p.DigitalOuts {
		if o.Name == name {
			return o, nil
		}
	}
	return DigitalOut{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

// In returns the digital input definition named n.
func (p *Profile) In(name string) (DigitalIn, error) {
	for _, in := range p.DigitalIns {
		if in.Name == name {
			return in, nil
		}
	}
	return DigitalIn{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

// OneWireBusByName returns the 1-Wire bus pin definition named n.
func (p *Profile) OneWireBusByName(name string) (OneWireBus, error) {
	for _, w := range p.OneWire {
		if w.Name == name {
			return w, nil
		}
	}
	return OneWireBus{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

// I2CBusByName returns the I2C bus pin pair named n.
func (p *Profile) I2CBusByName(name string) (I2CBus, error) {
	for _, b := range p.I2C {
		if b.Name == name {
			return b, nil
		}
	}
	return I2CBus{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfileIsValid(t *testing.T) {
	p := DefaultProfile()
	require.NoError(t, p.Validate())

	out, err := p.Out("filtration")
	require.NoError(t, err)
	assert.Equal(t, uint8(32), out.Pin)

	in, err := p.In("flow")
	require.NoError(t, err)
	assert.Equal(t, uint8(34), in.Pin)

	bus, err := p.I2CBusByName("primary")
	require.NoError(t, err)
	assert.Equal(t, uint8(21), bus.SDA)
	assert.Equal(t, uint8(22), bus.SCL)
}

func TestOutRejectsUnknownName(t *testing.T) {
	p := DefaultProfile()
	_, err := p.Out("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownSignal)
}

func TestValidateRejectsDuplicatePin(t *testing.T) {
	p := &Profile{
		DigitalOuts: []DigitalOut{
			{Name: "a", Pin: 5},
			{Name: "b", Pin: 5},
		},
	}
	assert.ErrorIs(t, p.Validate(), ErrDuplicatePin)
}

func TestValidateRejectsDuplicateNameAcrossClasses(t *testing.T) {
	p := &Profile{
		DigitalOuts: []DigitalOut{{Name: "flow", Pin: 5}},
		DigitalIns:  []DigitalIn{{Name: "flow", Pin: 6}},
	}
	assert.ErrorIs(t, p.Validate(), ErrDuplicateName)
}

func TestLoadProfileRoundTripsTOML(t *testing.T) {
	doc := `
revision = 2

[[digital_out]]
name = "pump"
pin = 4

[[digital_out]]
name = "heater"
pin = 5
momentary = true
pulse_ms = 750

[[digital_in]]
name = "flow"
pin = 34

[[one_wire]]
name = "a"
pin = 19

[[i2c]]
name = "primary"
sda = 21
scl = 22
`
	path := filepath.Join(t.TempDir(), "board.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Revision)

	heater, err := p.Out("heater")
	require.NoError(t, err)
	assert.True(t, heater.Momentary)
	assert.Equal(t, uint16(750), heater.PulseMs)
}

func TestLoadProfileRejectsInvalidLayout(t *testing.T) {
	doc := `
[[digital_out]]
name = "a"
pin = 5

[[digital_out]]
name = "b"
pin = 5
`
	path := filepath.Join(t.TempDir(), "board.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadProfile(path)
	assert.ErrorIs(t, err, ErrDuplicatePin)
}

// Package sensors is a minimal stand-in for the ADC/1-Wire sensor
// pipeline, grounded on SensorsModule.cpp's poll-calibrate-publish
// pattern. Calibration is linear (c0*raw+c1) and readings come from an
// injectable ReadFunc rather than a real ADS1115/DS18B20 driver — the
// median/range filtering chain and driver plumbing are an explicit
// Non-goal, but the polling cadence and datastore publication are real.
package sensors

import (
	"context"
	"time"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/corelog"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
)

const (
	ServiceID          = "sensors"
	loghubServiceID    = "loghub"
	datastoreServiceID = "datastore"
)

const (
	cfgEnabled = "enabled"
	cfgPollMs  = "poll_ms"
	cfgPhC0    = "ph_c0"
	cfgPhC1    = "ph_c1"
)

const defaultPollMs = 1000

// Channel indexes one IO endpoint this module owns, with its linear
// calibration and a reading source, the Go analog of one CachedSensor +
// SensorPipeline pair.
type Channel struct {
	Index uint8
	Name  string
	C0    float64
	C1    float64
	Read  func() float64
}

// Module polls each registered Channel on a timer and publishes the
// calibrated value through datastore.SetIOValue.
type Module struct {
	log      *corelog.Hub
	data     *datastore.Store
	channels []Channel
	enabled  bool
	pollMs   int32
}

// NewModule constructs a Module over the given channels.
func NewModule(channels []Channel) *Module {
	return &Module{channels: channels, enabled: true, pollMs: defaultPollMs}
}

func (m *Module) ID() string { return ServiceID }

func (m *Module) Dependencies() []string {
	return []string{loghubServiceID, datastoreServiceID}
}

func (m *Module) Init(ctx context.Context, cfg *cfgstore.Store, services *registry.Registry) error {
	if log, ok := registry.MustGet[*corelog.Hub](services, loghubServiceID); ok {
		m.log = log
	}
	if data, ok := registry.MustGet[*datastore.Store](services, datastoreServiceID); ok {
		m.data = data
	}
	_ = services.Add(ServiceID, m)

	for _, d := range []cfgstore.ConfigDescriptor{
		{Module: ServiceID, Name: cfgEnabled, Key: "sens_en", Type: cfgstore.TypeBool, Persistence: cfgstore.Persistent, Default: true},
		{Module: ServiceID, Name: cfgPollMs, Key: "sens_poll", Type: cfgstore.TypeInt32, Persistence: cfgstore.Persistent, Default: int32(defaultPollMs)},
		{Module: ServiceID, Name: cfgPhC0, Key: "sens_ph0", Type: cfgstore.TypeFloat, Persistence: cfgstore.Persistent, Default: float32(1.0)},
		{Module: ServiceID, Name: cfgPhC1, Key: "sens_ph1", Type: cfgstore.TypeFloat, Persistence: cfgstore.Persistent, Default: float32(0.0)},
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
	if v, ok := cfg.Get(ServiceID, cfgPollMs); ok {
		m.pollMs, _ = v.(int32)
	}
	cfg.AddHandler(ServiceID, cfgEnabled, func(value any) {
		if en, ok := value.(bool); ok {
			m.enabled = en
		}
	})

	if v, ok := cfg.Get(ServiceID, cfgPhC0); ok {
		m.setCalibration("ph", v, nil)
	}
	if v, ok := cfg.Get(ServiceID, cfgPhC1); ok {
		m.setCalibration("ph", nil, v)
	}
	cfg.AddHandler(ServiceID, cfgPhC0, func(value any) { m.setCalibration("ph", value, nil) })
	cfg.AddHandler(ServiceID, cfgPhC1, func(value any) { m.setCalibration("ph", nil, value) })
	return nil
}

// setCalibration updates the named channel's linear coefficients in
// place. Either c0 or c1 may be nil to leave that coefficient untouched.
func (m *Module) setCalibration(name string, c0, c1 any) {
	for i := range m.channels {
		if m.channels[i].Name != name {
			continue
		}
		if v, ok := c0.(float32); ok {
			m.channels[i].C0 = float64(v)
		}
		if v, ok := c1.(float32); ok {
			m.channels[i].C1 = float64(v)
		}
		return
	}
}

// PollOnce reads and publishes every channel once, independent of the
// Loop cadence — exposed directly so tests don't need to race a timer.
func (m *Module) PollOnce() {
	if m.data == nil {
		return
	}
	for _, c := range m.channels {
		if c.Read == nil {
			continue
		}
		raw := c.Read()
		value := c.C0*raw + c.C1
		m.data.SetIOValue(c.Index, datastore.IOKindSensor, value)
	}
}

func (m *Module) Loop(ctx context.Context) error {
	if !m.enabled {
		time.Sleep(500 * time.Millisecond)
		return nil
	}
	m.PollOnce()
	period := m.pollMs
	if period <= 0 {
		period = defaultPollMs
	}
	time.Sleep(time.Duration(period) * time.Millisecond)
	return nil
}

package datastore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolctld/poolctld/internal/eventbus"
)

func TestSetWifiReadyOnlyDirtiesOnChange(t *testing.T) {
	s := New()
	assert.True(t, s.SetWifiReady(true))
	assert.False(t, s.SetWifiReady(true))
	assert.Equal(t, eventbus.DirtyNetwork, s.ConsumeDirty())
	assert.Equal(t, uint32(0), s.ConsumeDirty(), "ConsumeDirty must clear the mask")
}

func TestDegradesToValueHolderWithoutBus(t *testing.T) {
	s := New()
	assert.True(t, s.SetMqttReady(true))
	assert.True(t, s.View().MQTT.Ready)
}

func TestPostsDataChangedPerMutation(t *testing.T) {
	bus := eventbus.New()
	s := New()
	s.SetEventBus(bus)

	var got []uint16
	require.NoError(t, bus.Subscribe(eventbus.DataChanged, func(e eventbus.Event, _ any) {
		got = append(got, eventbus.DecodeDataChangedPayload(e.Payload).Key)
	}, nil))

	s.SetWifiReady(true)
	s.SetTimeReady(true)
	bus.Dispatch(8)

	assert.Equal(t, []uint16{uint16(WifiReady), uint16(TimeReady)}, got)
}

func TestFlushDeduplicatesSnapshotPerTick(t *testing.T) {
	bus := eventbus.New()
	s := New()
	s.SetEventBus(bus)

	var snapshots int
	require.NoError(t, bus.Subscribe(eventbus.DataSnapshotAvailable, func(eventbus.Event, any) {
		snapshots++
	}, nil))

	s.BeginTick()
	s.SetWifiReady(true)
	s.SetTimeReady(true)
	s.Flush()
	s.Flush() // second Flush in the same tick must be a no-op
	bus.Dispatch(8)
	assert.Equal(t, 1, snapshots)

	s.BeginTick()
	s.SetMqttReady(true)
	s.Flush()
	bus.Dispatch(8)
	assert.Equal(t, 2, snapshots, "a new tick must allow a new snapshot")
}

func TestIOValueNaNAlwaysDiffers(t *testing.T) {
	s := New()
	assert.True(t, s.SetIOValue(0, IOKindSensor, math.NaN()))
	assert.True(t, s.SetIOValue(0, IOKindSensor, math.NaN()), "repeated NaN writes must still be treated as changes")
}

func TestIOAndPoolRejectOutOfRangeIndex(t *testing.T) {
	s := New()
	assert.False(t, s.SetIOValue(IOReservedCount, IOKindSensor, 1))
	assert.False(t, s.SetPoolActive(PoolDeviceReservedCount, true))
}

func TestSensorVsActuatorDirtyGroups(t *testing.T) {
	s := New()
	s.SetIOValue(0, IOKindSensor, 7.5)
	assert.Equal(t, eventbus.DirtySensors, s.ConsumeDirty())

	s.SetIOValue(1, IOKindActuator, 1)
	assert.Equal(t, eventbus.DirtyActuators, s.ConsumeDirty())
}

func TestKeyRangesDoNotOverlap(t *testing.T) {
	assert.Less(t, int(HaDeviceID), int(IOBase))
	assert.LessOrEqual(t, int(IOEndExclusive), int(PoolDeviceBase))
	assert.LessOrEqual(t, int(PoolDeviceEndExclusive), int(ReservedMax))
}

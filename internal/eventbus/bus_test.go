package eventbus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeRejectsNilCallback(t *testing.T) {
	b := New()
	err := b.Subscribe(SensorsUpdated, nil, nil)
	assert.ErrorIs(t, err, ErrNilCallback)
}

func TestSubscribeRejectsOverflow(t *testing.T) {
	b := New()
	for i := 0; i < MaxSubscribers; i++ {
		require.NoError(t, b.Subscribe(SensorsUpdated, func(Event, any) {}, nil))
	}
	err := b.Subscribe(SensorsUpdated, func(Event, any) {}, nil)
	assert.ErrorIs(t, err, ErrSubscribersFull)
}

func TestPostRejectsOversizePayload(t *testing.T) {
	b := New()
	err := b.Post(SensorsUpdated, make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

// TestOverflowFIFO is scenario 4 from the spec: queue capacity 4, post 5
// events without dispatching — the fifth Post fails, and dispatch(16)
// delivers exactly the first 4, in FIFO order.
func TestOverflowFIFO(t *testing.T) {
	b := New(WithQueueLength(4))

	var got []byte
	require.NoError(t, b.Subscribe(SensorsUpdated, func(e Event, _ any) {
		got = append(got, e.Payload[0])
	}, nil))

	for i := byte(0); i < 4; i++ {
		require.NoError(t, b.Post(SensorsUpdated, []byte{i}))
	}
	err := b.Post(SensorsUpdated, []byte{4})
	assert.ErrorIs(t, err, ErrQueueFull)

	n := b.Dispatch(16)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 1, 2, 3}, got)
}

func TestDispatchOnlyMatchingSubscriber(t *testing.T) {
	b := New()
	var wrongFired, rightFired int32

	require.NoError(t, b.Subscribe(RelayChanged, func(Event, any) {
		atomic.AddInt32(&wrongFired, 1)
	}, nil))
	require.NoError(t, b.Subscribe(SensorsUpdated, func(Event, any) {
		atomic.AddInt32(&rightFired, 1)
	}, nil))

	require.NoError(t, b.Post(SensorsUpdated, nil))
	b.Dispatch(8)

	assert.Equal(t, int32(0), atomic.LoadInt32(&wrongFired))
	assert.Equal(t, int32(1), atomic.LoadInt32(&rightFired))
}

func TestDispatchSkipsNilCallback(t *testing.T) {
	b := New()
	// Subscribe directly via the internal slice to simulate a corrupted
	// entry; the dispatcher must treat it as fatal-safe and skip it rather
	// than panic.
	b.subs = append(b.subs, subscriber{id: SensorsUpdated, cb: nil})
	require.NoError(t, b.Post(SensorsUpdated, nil))
	assert.NotPanics(t, func() { b.Dispatch(1) })
}

func TestPostFIFOPerProducer(t *testing.T) {
	b := New(WithQueueLength(8))
	var order []byte
	require.NoError(t, b.Subscribe(SensorsUpdated, func(e Event, _ any) {
		order = append(order, e.Payload[0])
	}, nil))
	for i := byte(0); i < 3; i++ {
		require.NoError(t, b.Post(SensorsUpdated, []byte{i}))
	}
	b.Dispatch(3)
	assert.Equal(t, []byte{0, 1, 2}, order)
}

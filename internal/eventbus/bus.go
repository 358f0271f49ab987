package eventbus

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Limits mirror the original firmware's compile-time constants. They are
// package-level constants, not config, because the queue and subscriber
// tables are fixed-size by design (Non-goal: dynamic allocation in steady
// state).
const (
	MaxPayloadSize     = 48
	MaxSubscribers     = 24
	DefaultQueueLength = 32
)

var (
	// ErrNilCallback is returned by Subscribe when cb is nil.
	ErrNilCallback = errors.New("eventbus: nil callback")
	// ErrSubscribersFull is returned by Subscribe once MaxSubscribers is reached.
	ErrSubscribersFull = errors.New("eventbus: subscriber table full")
	// ErrPayloadTooLarge is returned by Post/PostFromISR when len(payload) > MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("eventbus: payload exceeds MaxPayloadSize")
	// ErrQueueFull is returned by Post/PostFromISR when the queue has no free slot.
	ErrQueueFull = errors.New("eventbus: queue full")
)

// Callback is invoked by Dispatch for every subscriber matching a posted
// event id. The Event's Payload slice is only valid for the duration of
// the call — callbacks must copy out anything they need to keep.
type Callback func(e Event, user any)

// Event is delivered to subscribers during Dispatch.
type Event struct {
	ID      ID
	Payload []byte
}

type subscriber struct {
	id   ID
	cb   Callback
	user any
}

type queuedEvent struct {
	id  ID
	len uint8
	buf [MaxPayloadSize]byte
}

// Metrics receives counters from the bus. Implementations must not block.
// The default nopMetrics discards everything; NewOtelMetrics (metrics.go)
// builds one backed by an OpenTelemetry meter.
type Metrics interface {
	IncPosted(id ID)
	IncDropped(id ID)
	ObserveDispatchSlow(n int, dur time.Duration)
	ObserveHandlerSlow(id ID, dur time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) IncPosted(ID)                          {}
func (nopMetrics) IncDropped(ID)                         {}
func (nopMetrics) ObserveDispatchSlow(int, time.Duration) {}
func (nopMetrics) ObserveHandlerSlow(ID, time.Duration)   {}

// Bus is a single bounded queue of fixed-size slots with subscriber fan-out.
// Subscribe is init-only and not safe to call once Dispatch has started
// draining the queue from another goroutine; Post/PostFromISR/Dispatch are
// safe to call concurrently with each other.
type Bus struct {
	subsMu sync.Mutex // guards subs during the init-only Subscribe phase
	subs   []subscriber

	queue chan queuedEvent

	handlerWarn  time.Duration
	dispatchWarn time.Duration
	warnEvery    time.Duration
	lastWarnNano int64 // atomic

	metrics Metrics
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithQueueLength overrides the default queue capacity (32).
func WithQueueLength(n int) Option {
	return func(b *Bus) { b.queue = make(chan queuedEvent, n) }
}

// WithMetrics attaches a Metrics sink (see metrics.go for an OTel-backed one).
func WithMetrics(m Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithHandlerWarnThreshold sets the wall-time threshold past which a slow
// subscriber callback is reported through Metrics.ObserveHandlerSlow.
func WithHandlerWarnThreshold(d time.Duration) Option {
	return func(b *Bus) { b.handlerWarn = d }
}

// New constructs a Bus with the default capacity (32 slots, 48-byte payload
// cap, 24 subscribers) unless overridden by opts.
func New(opts ...Option) *Bus {
	b := &Bus{
		queue:        make(chan queuedEvent, DefaultQueueLength),
		handlerWarn:  5 * time.Millisecond,
		dispatchWarn: 20 * time.Millisecond,
		warnEvery:    2 * time.Second,
		metrics:      nopMetrics{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers cb for event id. Subscriptions may only be added
// during each module's init phase; removal is not supported.
func (b *Bus) Subscribe(id ID, cb Callback, user any) error {
	if cb == nil {
		return ErrNilCallback
	}
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if len(b.subs) >= MaxSubscribers {
		return ErrSubscribersFull
	}
	b.subs = append(b.subs, subscriber{id: id, cb: cb, user: user})
	return nil
}

// Post enqueues an event from task/goroutine context. It never blocks: if
// the queue is full the event is dropped and ErrQueueFull is returned.
func (b *Bus) Post(id ID, payload []byte) error {
	qe, err := b.encode(id, payload)
	if err != nil {
		return err
	}
	select {
	case b.queue <- qe:
		b.metrics.IncPosted(id)
		return nil
	default:
		b.metrics.IncDropped(id)
		return ErrQueueFull
	}
}

// PostFromISR has the same contract as Post but is the entry point for
// interrupt-context producers (a signal handler, a hardware-callback
// simulation). It never logs on failure — ISR failure paths are silent by
// design (callers observe the failure through the return value only) — and
// it yields the processor after a successful send, standing in for
// FreeRTOS's portYIELD_FROM_ISR() "wake a higher priority task" request.
func (b *Bus) PostFromISR(id ID, payload []byte) error {
	qe, err := b.encode(id, payload)
	if err != nil {
		return err
	}
	select {
	case b.queue <- qe:
		runtime.Gosched()
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *Bus) encode(id ID, payload []byte) (queuedEvent, error) {
	if len(payload) > MaxPayloadSize {
		return queuedEvent{}, ErrPayloadTooLarge
	}
	var qe queuedEvent
	qe.id = id
	qe.len = uint8(len(payload))
	copy(qe.buf[:], payload)
	return qe, nil
}

// Dispatch drains up to maxEvents queued events and invokes every matching
// subscriber, in subscriber registration order. It returns the number of
// events actually dispatched.
func (b *Bus) Dispatch(maxEvents int) int {
	t0 := time.Now()
	n := 0
loop:
	for ; n < maxEvents; n++ {
		var qe queuedEvent
		select {
		case qe = <-b.queue:
		default:
			break loop
		}
		b.dispatchOne(qe)
	}
	if n > 0 {
		if dt := time.Since(t0); dt > b.dispatchWarn && b.canWarn() {
			b.metrics.ObserveDispatchSlow(n, dt)
		}
	}
	return n
}

func (b *Bus) dispatchOne(qe queuedEvent) {
	e := Event{ID: qe.id, Payload: qe.buf[:qe.len]}

	b.subsMu.Lock()
	// Subscriptions never change after init, so this snapshot could be a
	// plain read, but locking keeps the contract honest even if a caller
	// subscribes late.
	subs := b.subs
	b.subsMu.Unlock()

	for _, s := range subs {
		if s.id != qe.id || s.cb == nil {
			continue
		}
		t0 := time.Now()
		s.cb(e, s.user)
		if dt := time.Since(t0); dt > b.handlerWarn && b.canWarn() {
			b.metrics.ObserveHandlerSlow(qe.id, dt)
		}
	}
}

func (b *Bus) canWarn() bool {
	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&b.lastWarnNano)
	if time.Duration(now-last) < b.warnEvery {
		return false
	}
	return atomic.CompareAndSwapInt64(&b.lastWarnNano, last, now)
}

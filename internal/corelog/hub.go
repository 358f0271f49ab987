package corelog

import (
	"runtime"
	"sync"
	"time"
)

// Sink receives log entries by value and must not block on shared
// resources held by producers — it runs on the single dispatcher
// goroutine, so a blocking sink stalls every other sink.
type Sink interface {
	Write(Entry)
}

// MaxSinks is the compile-time sink capacity.
const MaxSinks = 4

// DefaultQueueLength is the compile-time log queue capacity.
const DefaultQueueLength = 64

// Hub is the global log fan-in point: producers call Writef (non-blocking,
// drop-on-overflow), and a single dispatcher (DispatcherModule draining
// with DrainOnce, or a blocking Run) invokes every registered sink in order.
type Hub struct {
	start   time.Time
	queue   chan Entry
	dropped chan struct{} // signalled (best-effort) whenever an entry is dropped

	sinksMu sync.Mutex
	sinks   []Sink

	onTruncate func(tag, msg string, file string, line int)
	onDrop     func()
}

// HubOption configures a Hub at construction time.
type HubOption func(*Hub)

// WithDropCounter wires a counter that is incremented (best-effort, never
// blocking) whenever Writef drops an entry because the queue is full.
func WithDropCounter(c *DroppedCounter) HubOption {
	return func(h *Hub) { h.onDrop = c.Inc }
}

// NewHub constructs a Hub with the default queue capacity unless
// overridden.
func NewHub(queueLen int, opts ...HubOption) *Hub {
	if queueLen <= 0 {
		queueLen = DefaultQueueLength
	}
	h := &Hub{
		start:   time.Now(),
		queue:   make(chan Entry, queueLen),
		dropped: make(chan struct{}, 1),
	}
	h.onTruncate = h.warnTruncated
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddSink registers a sink. Fails once MaxSinks is reached.
func (h *Hub) AddSink(s Sink) bool {
	h.sinksMu.Lock()
	defer h.sinksMu.Unlock()
	if len(h.sinks) >= MaxSinks {
		return false
	}
	h.sinks = append(h.sinks, s)
	return true
}

// Writef formats and enqueues a log entry. It never blocks: on a full
// queue the entry is dropped silently from the producer's point of view
// (no error is surfaced — matching the firmware's fire-and-forget log
// macros), though a DroppedCounter wired with WithDropCounter still
// observes the drop.
func (h *Hub) Writef(lvl Level, tag, format string, args ...any) {
	h.writef(lvl, tag, format, args...)
}

// writef is called only directly from Writef or a level helper, so
// runtime.Caller(2) is the producer's call site.
func (h *Hub) writef(lvl Level, tag, format string, args ...any) {
	e, tagTrunc, msgTrunc := newEntry(h.elapsedMs(), lvl, tag, format, args...)
	select {
	case h.queue <- e:
	default:
		select {
		case h.dropped <- struct{}{}:
		default:
		}
		if h.onDrop != nil {
			h.onDrop()
		}
	}
	if tagTrunc || msgTrunc {
		_, file, line, _ := runtime.Caller(2)
		h.onTruncate(tag, format, file, line)
	}
}

func (h *Hub) Debugf(tag, format string, args ...any) { h.writef(Debug, tag, format, args...) }
func (h *Hub) Infof(tag, format string, args ...any)  { h.writef(Info, tag, format, args...) }
func (h *Hub) Warnf(tag, format string, args ...any)  { h.writef(Warn, tag, format, args...) }
func (h *Hub) Errorf(tag, format string, args ...any) { h.writef(Error, tag, format, args...) }

func (h *Hub) elapsedMs() int64 {
	return time.Since(h.start).Milliseconds()
}

func (h *Hub) warnTruncated(tag, msg, file string, line int) {
	e, _, _ := newEntry(h.elapsedMs(), Warn, "FmtChk", "truncated write at %s:%d (tag=%q)", file, line, tag)
	select {
	case h.queue <- e:
	default:
	}
}

// Run blocks, dequeuing entries and fanning them out to every sink in
// order, until stop is closed. DispatcherModule does not call Run; its
// Loop drains the queue with DrainOnce.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case e := <-h.queue:
			h.dispatch(e)
		}
	}
}

// DrainOnce dequeues and dispatches a single pending entry, if any,
// without blocking. Returns true if an entry was dispatched.
func (h *Hub) DrainOnce() bool {
	select {
	case e := <-h.queue:
		h.dispatch(e)
		return true
	default:
		return false
	}
}

func (h *Hub) dispatch(e Entry) {
	h.sinksMu.Lock()
	sinks := h.sinks
	h.sinksMu.Unlock()
	for _, s := range sinks {
		if s == nil {
			continue
		}
		s.Write(e)
	}
}

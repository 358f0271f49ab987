package corelog

import (
	"fmt"
	"io"
	"log"
)

// StdSink adapts a standard library *log.Logger into a Sink, the Go
// equivalent of the firmware's plain Serial.printf log sink.
type StdSink struct {
	logger *log.Logger
}

// NewStdSink wraps w with a log.Logger using a bare (no timestamp) prefix —
// Entry already carries its own ElapsedMs.
func NewStdSink(w io.Writer) *StdSink {
	return &StdSink{logger: log.New(w, "", 0)}
}

func (s *StdSink) Write(e Entry) {
	s.logger.Printf("[%8dms] %-5s %-10s %s", e.ElapsedMs, e.Level, e.Tag, e.Message)
}

// RingSink retains the last N entries in memory, the Go equivalent of the
// firmware's on-device log ring used to back a status page. It is intended
// for tests and local diagnostics, not production use.
type RingSink struct {
	cap     int
	entries []Entry
}

// NewRingSink builds a RingSink holding at most capacity entries.
func NewRingSink(capacity int) *RingSink {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingSink{cap: capacity}
}

func (s *RingSink) Write(e Entry) {
	s.entries = append(s.entries, e)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
}

// Snapshot returns a copy of the currently retained entries, oldest first.
func (s *RingSink) Snapshot() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// String renders the ring for debug output, one entry per line.
func (s *RingSink) String() string {
	var buf []byte
	for _, e := range s.entries {
		buf = append(buf, fmt.Sprintf("[%8dms] %-5s %-10s %s\n", e.ElapsedMs, e.Level, e.Tag, e.Message)...)
	}
	return string(buf)
}

package corelog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampTruncatesAndReportsIt(t *testing.T) {
	out, trunc := clamp("abcdefghijklmnop", TagMax)
	assert.True(t, trunc)
	assert.Len(t, out, TagMax-1)

	out, trunc = clamp("short", TagMax)
	assert.False(t, trunc)
	assert.Equal(t, "short", out)
}

func TestNewEntryFormatsAndClamps(t *testing.T) {
	e, tagTrunc, msgTrunc := newEntry(42, Info, "wifi", "connected to %s", "ssid")
	assert.False(t, tagTrunc)
	assert.False(t, msgTrunc)
	assert.Equal(t, int64(42), e.ElapsedMs)
	assert.Equal(t, Info, e.Level)
	assert.Equal(t, "wifi", e.Tag)
	assert.Equal(t, "connected to ssid", e.Message)

	e, tagTrunc, msgTrunc = newEntry(0, Warn, "this-tag-is-way-too-long", "ok")
	assert.True(t, tagTrunc)
	assert.False(t, msgTrunc)
	assert.Len(t, e.Tag, TagMax-1)
}

func TestHubAddSinkRespectsCapacity(t *testing.T) {
	h := NewHub(8)
	for i := 0; i < MaxSinks; i++ {
		require.True(t, h.AddSink(NewRingSink(4)))
	}
	assert.False(t, h.AddSink(NewRingSink(4)))
}

func TestHubDispatchesToAllSinks(t *testing.T) {
	h := NewHub(8)
	ring := NewRingSink(8)
	require.True(t, h.AddSink(ring))

	h.Infof("wifi", "hello %d", 1)
	require.True(t, h.DrainOnce())

	got := ring.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "wifi", got[0].Tag)
	assert.Equal(t, "hello 1", got[0].Message)
}

func TestHubDropsOnFullQueueWithoutBlocking(t *testing.T) {
	h := NewHub(1)
	h.Infof("tag", "first")
	// Queue capacity 1 is now occupied; a second Writef must not block and
	// must not panic, even though nothing has drained the first entry yet.
	assert.NotPanics(t, func() { h.Infof("tag", "second") })
}

func TestHubWarnsOnTruncation(t *testing.T) {
	h := NewHub(8)
	ring := NewRingSink(8)
	require.True(t, h.AddSink(ring))

	h.Infof("this-tag-is-way-too-long", "fine")
	require.True(t, h.DrainOnce()) // the entry itself
	require.True(t, h.DrainOnce()) // the truncation warning

	got := ring.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, Warn, got[1].Level)
	assert.True(t, strings.Contains(got[1].Message, "truncated"))
}

func TestStdSinkFormatsEntry(t *testing.T) {
	var buf strings.Builder
	s := NewStdSink(&buf)
	s.Write(Entry{ElapsedMs: 100, Level: Error, Tag: "alarm", Message: "high temp"})
	assert.Contains(t, buf.String(), "ERROR")
	assert.Contains(t, buf.String(), "alarm")
	assert.Contains(t, buf.String(), "high temp")
}

func TestRingSinkEvictsOldest(t *testing.T) {
	ring := NewRingSink(2)
	ring.Write(Entry{Message: "a"})
	ring.Write(Entry{Message: "b"})
	ring.Write(Entry{Message: "c"})

	got := ring.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Message)
	assert.Equal(t, "c", got[1].Message)
}

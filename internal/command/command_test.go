package command

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsNilDuplicateAndOverflow(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register("ping", nil), ErrNilHandler)

	require.NoError(t, r.Register("ping", func(context.Context, Request) ([]byte, error) { return []byte("pong"), nil }))
	assert.ErrorIs(t, r.Register("ping", func(context.Context, Request) ([]byte, error) { return nil, nil }), ErrDuplicate)

	r2 := New()
	for i := 0; i < MaxCommands; i++ {
		require.NoError(t, r2.Register(string(rune('a'+i)), func(context.Context, Request) ([]byte, error) { return nil, nil }))
	}
	assert.ErrorIs(t, r2.Register("one-too-many", func(context.Context, Request) ([]byte, error) { return nil, nil }), ErrFull)
}

func TestExecuteUnknownCommandReturnsStandardError(t *testing.T) {
	r := New()
	reply := r.Execute(context.Background(), Request{Cmd: "missing"})

	var doc struct {
		OK  bool `json:"ok"`
		Err struct {
			Code      string `json:"code"`
			Where     string `json:"where"`
			Retryable bool   `json:"retryable"`
		} `json:"err"`
	}
	require.NoError(t, json.Unmarshal(reply, &doc))
	assert.False(t, doc.OK)
	assert.Equal(t, "UnknownCmd", doc.Err.Code)
	assert.Equal(t, "missing", doc.Err.Where)
}

func TestExecuteWrapsHandlerError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("fail", func(context.Context, Request) ([]byte, error) {
		return nil, NewError(IoError, "pump:set")
	}))

	reply := r.Execute(context.Background(), Request{Cmd: "fail"})
	var doc struct {
		Err struct {
			Code      string `json:"code"`
			Where     string `json:"where"`
			Retryable bool   `json:"retryable"`
		} `json:"err"`
	}
	require.NoError(t, json.Unmarshal(reply, &doc))
	assert.Equal(t, "IoError", doc.Err.Code)
	assert.Equal(t, "pump:set", doc.Err.Where)
	assert.True(t, doc.Err.Retryable)
}

func TestExecuteWrapsUnknownErrorAsHandlerFailed(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("boom", func(context.Context, Request) ([]byte, error) {
		return nil, assert.AnError
	}))

	reply := r.Execute(context.Background(), Request{Cmd: "boom"})
	var doc struct {
		Err struct{ Code string } `json:"err"`
	}
	require.NoError(t, json.Unmarshal(reply, &doc))
	assert.Equal(t, "CmdHandlerFailed", doc.Err.Code)
}

func TestRetryableCodes(t *testing.T) {
	assert.True(t, NotReady.Retryable())
	assert.True(t, CfgTruncated.Retryable())
	assert.False(t, BadCmdJSON.Retryable())
}

func TestWriteErrorWithSlot(t *testing.T) {
	reply := WriteErrorWithSlot(MissingSlot, "sched:set", 7)
	var doc struct {
		Slot uint8 `json:"slot"`
		Err  struct{ Code string } `json:"err"`
	}
	require.NoError(t, json.Unmarshal(reply, &doc))
	assert.Equal(t, uint8(7), doc.Slot)
	assert.Equal(t, "MissingSlot", doc.Err.Code)
}

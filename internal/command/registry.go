// Package command implements the bounded command-handler table, request
// execution, and the closed error-code enumeration shared with the
// config/command JSON protocol — ported from CommandRegistry.{h,cpp} and
// ErrorCodes.h.
package command

import (
	"context"
	"errors"
	"fmt"
)

// MaxCommands is the compile-time capacity of the registry, matching
// MAX_COMMANDS.
const MaxCommands = 24

var (
	// ErrFull is returned by Register once MaxCommands entries exist.
	ErrFull = errors.New("command: capacity exceeded")
	// ErrDuplicate is returned by Register when cmd is already registered.
	ErrDuplicate = errors.New("command: duplicate command")
	// ErrNilHandler is returned by Register when fn is nil.
	ErrNilHandler = errors.New("command: nil handler")
)

// Request carries one command invocation, the Go analog of CommandRequest.
type Request struct {
	Cmd  string
	JSON string
	Args string
}

// Handler processes a Request and returns the raw reply bytes (typically
// JSON) to send back to the caller, the Go analog of CommandHandler.
type Handler func(ctx context.Context, req Request) ([]byte, error)

type entry struct {
	cmd string
	fn  Handler
}

// Registry is a bounded table of command handlers.
type Registry struct {
	entries []entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make([]entry, 0, MaxCommands)}
}

// Register adds fn under cmd. Fails if the table is full, fn is nil, or
// cmd is already registered.
func (r *Registry) Register(cmd string, fn Handler) error {
	if fn == nil {
		return ErrNilHandler
	}
	if len(r.entries) >= MaxCommands {
		return ErrFull
	}
	for _, e := range r.entries {
		if e.cmd == cmd {
			return ErrDuplicate
		}
	}
	r.entries = append(r.entries, entry{cmd: cmd, fn: fn})
	return nil
}

// Execute looks up cmd and invokes its handler. An unregistered command
// returns the standard UnknownCmd error document rather than a Go error,
// matching the protocol's "always reply with something" contract. A
// handler error that is an *Error is rendered with its own Code and
// Where; any other handler error is rendered as CmdHandlerFailed.
func (r *Registry) Execute(ctx context.Context, req Request) []byte {
	for _, e := range r.entries {
		if e.cmd != req.Cmd {
			continue
		}
		reply, err := e.fn(ctx, req)
		if err != nil {
			var ce *Error
			if errors.As(err, &ce) {
				return WriteError(ce.Code, ce.Where)
			}
			return WriteError(CmdHandlerFailed, fmt.Sprintf("command:%s", req.Cmd))
		}
		return reply
	}
	return WriteError(UnknownCmd, req.Cmd)
}

// Commands returns the registered command names, in registration order.
func (r *Registry) Commands() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.cmd
	}
	return out
}

// Package timesvc implements the time-sync state machine and the fixed
// scheduler driven off it, ported from TimeModule.{h,cpp}.
package timesvc

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SyncState enumerates the time-sync lifecycle, unchanged from the
// firmware's TimeSyncState.
type SyncState uint8

const (
	Disabled SyncState = iota
	WaitingNetwork
	Syncing
	Synced
	ErrorWait
)

func (s SyncState) String() string {
	switch s {
	case Disabled:
		return "Disabled"
	case WaitingNetwork:
		return "WaitingNetwork"
	case Syncing:
		return "Syncing"
	case Synced:
		return "Synced"
	case ErrorWait:
		return "ErrorWait"
	default:
		return "?"
	}
}

// NetworkWarmup is the short settle delay after wifi_ready before a sync
// attempt begins, matching TimeModule's _netReadyTs warmup gate.
const NetworkWarmup = 1500 * time.Millisecond

// RefreshPeriod is how often a Synced source re-syncs, matching
// TimeModule's periodic refresh while Synced.
const RefreshPeriod = 6 * time.Hour

// Syncer performs one time-sync attempt (e.g. an NTP round trip),
// returning the resolved wall time on success.
type Syncer func(ctx context.Context) (time.Time, error)

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 300 * time.Second
	b.Multiplier = 2.3
	b.RandomizationFactor = 0.15
	b.MaxElapsedTime = 0 // never stop retrying on its own
	return b
}

// Service drives the sync state machine. It is deliberately clock- and
// network-agnostic: callers report network readiness and drive Tick; the
// Syncer performs the actual time-fetch.
type Service struct {
	mu sync.Mutex

	enabled bool
	state   SyncState
	stateTs time.Time

	netReady   bool
	netReadyTs time.Time

	sync     Syncer
	backoff  *backoff.ExponentialBackOff
	nextTry  time.Time
	lastSync time.Time
	epoch    time.Time

	onStateChange func(SyncState)
}

// NewService constructs a Service in the Disabled state. Call SetEnabled
// to start the warmup/sync sequence.
func NewService(sync Syncer) *Service {
	return &Service{
		sync:    sync,
		state:   Disabled,
		backoff: newBackOff(),
	}
}

// OnStateChange registers a callback invoked (synchronously, on the
// calling goroutine) whenever the state transitions.
func (s *Service) OnStateChange(fn func(SyncState)) { s.onStateChange = fn }

func (s *Service) setState(now time.Time, next SyncState) {
	if s.state == next {
		return
	}
	s.state = next
	s.stateTs = now
	if s.onStateChange != nil {
		s.onStateChange(next)
	}
}

// SetEnabled toggles the module's enabled config flag.
func (s *Service) SetEnabled(now time.Time, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		s.setState(now, Disabled)
		return
	}
	if s.state == Disabled {
		s.setState(now, WaitingNetwork)
	}
}

// SetNetworkReady reports the current network connectivity state.
func (s *Service) SetNetworkReady(now time.Time, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ready && !s.netReady {
		s.netReadyTs = now
	}
	s.netReady = ready
	if !ready && s.state != Disabled {
		s.setState(now, WaitingNetwork)
	}
}

// ForceResync jumps straight to Syncing on the next Tick, bypassing
// backoff, matching TimeModule::forceResync.
func (s *Service) ForceResync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disabled {
		return
	}
	s.nextTry = time.Time{}
	s.backoff.Reset()
}

// State returns the current sync state.
func (s *Service) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch returns the last resolved wall time and whether a sync has ever
// succeeded.
func (s *Service) Epoch() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch, !s.epoch.IsZero()
}

// Tick advances the state machine by one evaluation, attempting a sync
// when the state calls for it.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	state := s.state
	netReady := s.netReady
	warmedUp := netReady && now.Sub(s.netReadyTs) >= NetworkWarmup
	due := s.nextTry.IsZero() || !now.Before(s.nextTry)
	s.mu.Unlock()

	switch state {
	case Disabled:
		return
	case WaitingNetwork:
		if warmedUp {
			s.mu.Lock()
			s.setState(now, Syncing)
			s.mu.Unlock()
		}
		return
	case Syncing:
		s.attempt(ctx, now)
	case ErrorWait:
		if due {
			s.mu.Lock()
			s.setState(now, Syncing)
			s.mu.Unlock()
			s.attempt(ctx, now)
		}
	case Synced:
		if now.Sub(s.lastSync) >= RefreshPeriod {
			s.mu.Lock()
			s.setState(now, Syncing)
			s.mu.Unlock()
			s.attempt(ctx, now)
		}
	}
}

func (s *Service) attempt(ctx context.Context, now time.Time) {
	t, err := s.sync(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.nextTry = now.Add(s.backoff.NextBackOff())
		s.setState(now, ErrorWait)
		return
	}
	s.epoch = t
	s.lastSync = now
	s.backoff.Reset()
	s.setState(now, Synced)
}

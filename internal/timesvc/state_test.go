package timesvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceWaitsOutNetworkWarmupBeforeSyncing(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	svc := NewService(func(ctx context.Context) (time.Time, error) {
		calls++
		return base, nil
	})

	svc.SetEnabled(base, true)
	assert.Equal(t, WaitingNetwork, svc.State())

	svc.SetNetworkReady(base, true)
	svc.Tick(context.Background(), base.Add(500*time.Millisecond))
	assert.Equal(t, WaitingNetwork, svc.State(), "should still be waiting out warmup")
	assert.Zero(t, calls)

	svc.Tick(context.Background(), base.Add(NetworkWarmup+time.Millisecond))
	assert.Equal(t, Syncing, svc.State())

	svc.Tick(context.Background(), base.Add(NetworkWarmup+2*time.Millisecond))
	assert.Equal(t, Synced, svc.State())
	assert.Equal(t, 1, calls)
}

func TestServiceBacksOffOnSyncFailureThenRecovers(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fail := true
	svc := NewService(func(ctx context.Context) (time.Time, error) {
		if fail {
			return time.Time{}, errors.New("ntp: timeout")
		}
		return base, nil
	})
	svc.SetEnabled(base, true)
	svc.SetNetworkReady(base, true)

	now := base.Add(NetworkWarmup + time.Millisecond)
	svc.Tick(context.Background(), now) // WaitingNetwork -> Syncing
	svc.Tick(context.Background(), now) // Syncing -> attempt -> ErrorWait
	require.Equal(t, ErrorWait, svc.State())

	// A retry attempted before the backoff interval elapses must not
	// re-invoke the syncer.
	svc.Tick(context.Background(), now.Add(time.Millisecond))
	assert.Equal(t, ErrorWait, svc.State())

	fail = false
	svc.Tick(context.Background(), now.Add(10*time.Second))
	assert.Equal(t, Synced, svc.State())

	epoch, ok := svc.Epoch()
	assert.True(t, ok)
	assert.True(t, epoch.Equal(base))
}

func TestServiceDisablingResetsToDisabledState(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(func(ctx context.Context) (time.Time, error) { return base, nil })
	svc.SetEnabled(base, true)
	svc.SetNetworkReady(base, true)
	svc.Tick(context.Background(), base.Add(NetworkWarmup+time.Millisecond))
	svc.Tick(context.Background(), base.Add(NetworkWarmup+2*time.Millisecond))
	require.Equal(t, Synced, svc.State())

	svc.SetEnabled(base, false)
	assert.Equal(t, Disabled, svc.State())
}

func TestOnStateChangeFiresOnTransitionsOnly(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(func(ctx context.Context) (time.Time, error) { return base, nil })
	var seen []SyncState
	svc.OnStateChange(func(s SyncState) { seen = append(seen, s) })

	svc.SetEnabled(base, true)
	svc.SetNetworkReady(base, true)
	svc.Tick(context.Background(), base.Add(NetworkWarmup+time.Millisecond))
	svc.Tick(context.Background(), base.Add(NetworkWarmup+2*time.Millisecond))

	require.Equal(t, []SyncState{WaitingNetwork, Syncing, Synced}, seen)
}

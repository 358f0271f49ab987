package wifi

import (
	"context"
	"testing"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Module, *datastore.Store) {
	t.Helper()
	services := registry.New()
	data := datastore.New()
	require.NoError(t, services.Add("datastore", data))

	cfg := cfgstore.New()
	m := NewModule()
	require.NoError(t, m.Init(context.Background(), cfg, services))
	require.NoError(t, m.OnConfigLoaded(cfg, services))
	return m, data
}

func TestHasTaskIsFalse(t *testing.T) {
	m, _ := setup(t)
	assert.False(t, m.HasTask())
}

func TestSetConnectedPublishesWifiReady(t *testing.T) {
	m, data := setup(t)

	m.SetConnected(true)
	assert.True(t, data.View().WiFi.Ready)

	m.SetConnected(false)
	assert.False(t, data.View().WiFi.Ready)
}

func TestDisablingForcesDisconnected(t *testing.T) {
	m, data := setup(t)

	m.SetConnected(true)
	require.True(t, data.View().WiFi.Ready)

	m.SetEnabled(false)
	assert.False(t, data.View().WiFi.Ready)

	// A connect attempt while disabled must not stick.
	m.SetConnected(true)
	assert.False(t, m.Connected())
	assert.False(t, data.View().WiFi.Ready)
}

package actuators

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/poolctld/poolctld/internal/cfgstore"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, slots []Slot) (*Module, *datastore.Store, *command.Registry) {
	t.Helper()
	services := registry.New()
	data := datastore.New()
	cmds := command.New()
	require.NoError(t, services.Add("datastore", data))
	require.NoError(t, services.Add("cmd", cmds))

	cfg := cfgstore.New()
	m := NewModule(slots)
	require.NoError(t, m.Init(context.Background(), cfg, services))
	return m, data, cmds
}

func TestSetTurnsOnIndependentActuator(t *testing.T) {
	m, data, _ := setup(t, []Slot{{Index: 0, Name: "filtration"}})

	require.NoError(t, m.Set("filtration", true))

	on, err := m.Get("filtration")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, 1.0, data.View().IO[0].Value)
}

func TestSetRejectsUnmetInterlock(t *testing.T) {
	m, _, _ := setup(t, []Slot{
		{Index: 0, Name: "filtration"},
		{Index: 1, Name: "heater", DependsOn: []string{"filtration"}},
	})

	err := m.Set("heater", true)
	assert.ErrorIs(t, err, ErrInterlocked)

	on, _ := m.Get("heater")
	assert.False(t, on)
}

func TestSetAllowsOnceDependencySatisfied(t *testing.T) {
	m, _, _ := setup(t, []Slot{
		{Index: 0, Name: "filtration"},
		{Index: 1, Name: "heater", DependsOn: []string{"filtration"}},
	})

	require.NoError(t, m.Set("filtration", true))
	require.NoError(t, m.Set("heater", true))

	on, _ := m.Get("heater")
	assert.True(t, on)
}

func TestTurningOffNeverInterlocks(t *testing.T) {
	m, _, _ := setup(t, []Slot{
		{Index: 0, Name: "filtration"},
		{Index: 1, Name: "heater", DependsOn: []string{"filtration"}},
	})
	require.NoError(t, m.Set("filtration", true))
	require.NoError(t, m.Set("heater", true))
	require.NoError(t, m.Set("filtration", false))

	on, _ := m.Get("filtration")
	assert.False(t, on, "turning a dependency off is never itself blocked")
}

func TestCommandHandlerRejectsUnknownSlot(t *testing.T) {
	_, _, cmds := setup(t, []Slot{{Index: 0, Name: "filtration"}})

	reply := cmds.Execute(context.Background(), command.Request{
		Cmd:  "pool.actuator.set",
		JSON: `{"name":"does-not-exist","on":true}`,
	})

	var doc struct {
		OK  bool `json:"ok"`
		Err struct {
			Code string `json:"code"`
		} `json:"err"`
	}
	require.NoError(t, json.Unmarshal(reply, &doc))
	assert.False(t, doc.OK)
	assert.Equal(t, "UnknownSlot", doc.Err.Code)
}

func TestCommandHandlerSetsActuator(t *testing.T) {
	_, data, cmds := setup(t, []Slot{{Index: 2, Name: "lights"}})

	reply := cmds.Execute(context.Background(), command.Request{
		Cmd:  "pool.actuator.set",
		JSON: `{"name":"lights","on":true}`,
	})

	var doc struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(reply, &doc))
	assert.True(t, doc.OK)
	assert.Equal(t, 1.0, data.View().IO[2].Value)
}

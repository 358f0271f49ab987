package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWifi struct{ Ready bool }

func TestAddAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Add("wifi", &fakeWifi{Ready: true}))

	v, ok := r.Get("wifi")
	require.True(t, ok)
	assert.True(t, v.(*fakeWifi).Ready)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	r := New()
	require.NoError(t, r.Add("wifi", &fakeWifi{}))
	err := r.Add("wifi", &fakeWifi{})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAddRejectsOverflow(t *testing.T) {
	r := New()
	for i := 0; i < MaxServices; i++ {
		require.NoError(t, r.Add(string(rune('a'+i)), i))
	}
	err := r.Add("one-too-many", 0)
	assert.ErrorIs(t, err, ErrFull)
}

func TestMustGetTypedLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Add("wifi", &fakeWifi{Ready: true}))

	got, ok := MustGet[*fakeWifi](r, "wifi")
	require.True(t, ok)
	assert.True(t, got.Ready)

	_, ok = MustGet[*int](r, "wifi")
	assert.False(t, ok, "wrong type assertion must fail rather than panic")

	_, ok = MustGet[*fakeWifi](r, "missing")
	assert.False(t, ok)
}

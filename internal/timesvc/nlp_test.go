package timesvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurringPhraseWindowed(t *testing.T) {
	def, err := ParseRecurringPhrase("every monday 23:00 to 01:00")
	require.NoError(t, err)
	assert.Equal(t, uint8(1<<0), def.WeekdayMask)
	assert.Equal(t, uint8(23), def.StartHour)
	assert.Equal(t, uint8(0), def.StartMinute)
	assert.True(t, def.HasEnd)
	assert.Equal(t, uint8(1), def.EndHour)
	assert.Equal(t, RecurringClock, def.Mode)
}

func TestParseRecurringPhraseEveryDay(t *testing.T) {
	def, err := ParseRecurringPhrase("every day 06:30")
	require.NoError(t, err)
	assert.Equal(t, WeekdayAll, def.WeekdayMask)
	assert.Equal(t, uint8(6), def.StartHour)
	assert.Equal(t, uint8(30), def.StartMinute)
	assert.False(t, def.HasEnd)
}

func TestParseRecurringPhraseMultipleWeekdays(t *testing.T) {
	def, err := ParseRecurringPhrase("every mon,wed,fri 08:00")
	require.NoError(t, err)
	assert.Equal(t, uint8(1<<0|1<<2|1<<4), def.WeekdayMask)
}

func TestParseRecurringPhraseRejectsGarbage(t *testing.T) {
	_, err := ParseRecurringPhrase("sometime later")
	assert.Error(t, err)

	_, err = ParseRecurringPhrase("every blorp 08:00")
	assert.Error(t, err)

	_, err = ParseRecurringPhrase("every monday 25:99")
	assert.Error(t, err)
}

func TestParseWhenPhraseResolvesCompactDuration(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	def, err := ParseWhenPhrase("+1d", now)
	require.NoError(t, err)
	assert.Equal(t, Mode(OneShotEpoch), def.Mode)
	assert.Equal(t, uint64(now.AddDate(0, 0, 1).Unix()), def.StartEpochSec)
	assert.False(t, def.HasEnd)
}

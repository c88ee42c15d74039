package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons")
	require.Error(t, err)
}

func TestCombine(t *testing.T) {
	c, err := New("Europe/Kyiv")
	require.NoError(t, err)

	// The date carries a foreign zone; only its calendar day matters.
	date := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	got, err := c.Combine(date, "08:00")
	require.NoError(t, err)

	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 2, got.Day())
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 0, got.Minute())
	assert.Equal(t, c.Location(), got.Location())
}

func TestCombineRejectsMalformedTime(t *testing.T) {
	c, err := New("Europe/Kyiv")
	require.NoError(t, err)

	for _, bad := range []string{"", "8:0", "25:00", "08.00", "ranok"} {
		_, err := c.Combine(time.Now(), bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestTodayIsLocalMidnight(t *testing.T) {
	c, err := New("Europe/Kyiv")
	require.NoError(t, err)

	today := c.Today()
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, 0, today.Minute())
	assert.Equal(t, 0, today.Second())
	assert.Equal(t, c.Location(), today.Location())
}

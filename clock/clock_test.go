package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStubClock(t *testing.T) {
	c := NewStubClock()
	start := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	c.Set(start)

	require.Equal(t, time.UTC, c.Now().Location())
	require.True(t, c.Now().Equal(start.Truncate(time.Millisecond)))

	later := c.Advance(10 * time.Minute)
	require.Equal(t, later, c.Now())
	require.Equal(t, 10*time.Minute, c.Now().Sub(start.Truncate(time.Millisecond)))
}

func TestRealClockIsUTC(t *testing.T) {
	require.Equal(t, time.UTC, NewRealClock().Now().Location())
}

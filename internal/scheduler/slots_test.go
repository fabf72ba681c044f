package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func halfHourPolicy() SlotPolicy {
	return SlotPolicy{Every: 30 * time.Minute, Window: 5 * time.Minute, Location: time.UTC}
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 1, hour, minute, 0, 0, time.UTC)
}

func TestSlotPolicyWindow(t *testing.T) {
	p := halfHourPolicy()

	// Minutes 0..4 share one label.
	first, ok := p.Current(at(14, 0))
	require.True(t, ok)
	for m := 1; m <= 4; m++ {
		label, ok := p.Current(at(14, m))
		require.True(t, ok, "minute %d should be inside the window", m)
		assert.Equal(t, first, label)
	}

	// Minute 5 is outside.
	_, ok = p.Current(at(14, 5))
	assert.False(t, ok)
	_, ok = p.Current(at(14, 29))
	assert.False(t, ok)

	// The bottom of the hour is a different slot.
	second, ok := p.Current(at(14, 30))
	require.True(t, ok)
	assert.NotEqual(t, first, second)
}

func TestSlotLabelsDifferAcrossDays(t *testing.T) {
	p := halfHourPolicy()

	a, ok := p.Current(time.Date(2025, 6, 1, 0, 2, 0, 0, time.UTC))
	require.True(t, ok)
	b, ok := p.Current(time.Date(2025, 6, 2, 0, 2, 0, 0, time.UTC))
	require.True(t, ok)
	assert.NotEqual(t, a, b)
}

func TestSlotPolicyHonorsLocation(t *testing.T) {
	taipei := time.FixedZone("Asia/Taipei", 8*3600)
	p := SlotPolicy{Every: 30 * time.Minute, Window: 5 * time.Minute, Location: taipei}

	// 06:02 UTC is 14:02 in Taipei: inside the 14:00 slot window.
	label, ok := p.Current(time.Date(2025, 6, 1, 6, 2, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "2025-06-01T14:00", label)
}

func TestSlotGateDedup(t *testing.T) {
	gate := NewSlotGate(halfHourPolicy(), zap.NewNop())

	// A 1-minute poll cadence walking minutes 0..34, confirming every serve: one
	// serve at the top of the hour, one at the bottom, nothing in between.
	var served []string
	for m := 0; m <= 34; m++ {
		if label, ok := gate.Peek(at(14, m)); ok {
			gate.Confirm(label)
			served = append(served, label)
		}
	}

	require.Len(t, served, 2)
	assert.Equal(t, "2025-06-01T14:00", served[0])
	assert.Equal(t, "2025-06-01T14:30", served[1])
}

func TestSlotGateTolsJitter(t *testing.T) {
	gate := NewSlotGate(halfHourPolicy(), zap.NewNop())

	// A tick that lands late (minute 3) still serves exactly once for that slot.
	label, ok := gate.Peek(at(9, 3))
	require.True(t, ok)
	gate.Confirm(label)
	_, ok = gate.Peek(at(9, 4))
	assert.False(t, ok)
}

func TestSlotGateRetriesUnconfirmedWindow(t *testing.T) {
	gate := NewSlotGate(halfHourPolicy(), zap.NewNop())

	// First tick sees the window but delivers nothing (every fetch failed), so it
	// never confirms. The next tick inside the same window must fire again.
	first, ok := gate.Peek(at(14, 0))
	require.True(t, ok)

	second, ok := gate.Peek(at(14, 2))
	require.True(t, ok)
	assert.Equal(t, first, second)

	gate.Confirm(second)
	_, ok = gate.Peek(at(14, 4))
	assert.False(t, ok)
}

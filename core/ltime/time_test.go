package ltime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogicalTimeIsMonotoneUnderIncrement(t *testing.T) {
	t0 := Zero
	t1 := t0.Incremented()
	t2 := t1.Incremented()
	require.Greater(t, t1.AsUint64(), t0.AsUint64())
	require.Greater(t, t2.AsUint64(), t1.AsUint64())
}

func TestAdvanceIsMonotoneForNonZeroDelta(t *testing.T) {
	base := FromRaw(10)
	require.Greater(t, base.Advance(1).AsUint64(), base.AsUint64())
	require.Equal(t, base.AsUint64(), base.Advance(0).AsUint64())
}

func TestIncrementedDoesNotMutateReceiver(t *testing.T) {
	base := FromRaw(5)
	_ = base.Incremented()
	require.Equal(t, uint64(5), base.AsUint64())
}

func TestDurationSinceSaturatesAtZero(t *testing.T) {
	earlier := NewTimestamp(10, 0)
	later := NewTimestamp(5, 0)
	d := later.DurationSince(earlier)
	require.Equal(t, ZeroDuration, d)
}

func TestDurationSinceBorrowsNanos(t *testing.T) {
	earlier := NewTimestamp(1, 500_000_000)
	later := NewTimestamp(2, 100_000_000)
	d := later.DurationSince(earlier)
	require.Equal(t, uint64(0), d.Seconds)
	require.Equal(t, uint32(600_000_000), d.Nanos)
}

func TestTimestampAddCarriesNanos(t *testing.T) {
	ts := NewTimestamp(1, 900_000_000)
	sum := ts.Add(DurationFromMillis(200))
	require.Equal(t, uint64(2), sum.Seconds)
	require.Equal(t, uint32(100_000_000), sum.Nanos)
}

func TestDurationFromMillisRoundTrip(t *testing.T) {
	d := DurationFromMillis(1500)
	require.Equal(t, uint64(1500), d.AsMillis())
	require.Equal(t, uint64(1), d.AsSecs())
}

func TestSaturatingAddOverflow(t *testing.T) {
	max := Duration{Seconds: ^uint64(0)}
	sum := max.SaturatingAdd(DurationFromSecs(1))
	require.Equal(t, ^uint64(0), sum.Seconds)
}

func TestStringForms(t *testing.T) {
	require.Equal(t, "T3", FromRaw(3).String())
	require.Equal(t, "0s", ZeroDuration.String())
	require.Equal(t, "2s", DurationFromSecs(2).String())
}

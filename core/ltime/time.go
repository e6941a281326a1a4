// Package ltime defines logical time, the only clock allowed to govern
// ordering inside a run. Wall-clock Timestamp is carried strictly as
// metadata and must never influence scheduling decisions (spec.md §3),
// grounded on cathedral_core::time.
package ltime

import "fmt"

// LogicalTime is a monotonically increasing tick counter.
type LogicalTime uint64

// Zero is the initial logical time of a run.
const Zero LogicalTime = 0

// FromRaw wraps a raw counter value.
func FromRaw(v uint64) LogicalTime { return LogicalTime(v) }

// AsUint64 returns the raw counter value.
func (t LogicalTime) AsUint64() uint64 { return uint64(t) }

// Incremented returns t+1 without mutating t.
func (t LogicalTime) Incremented() LogicalTime { return t + 1 }

// Advance returns t+n without mutating t.
func (t LogicalTime) Advance(n uint64) LogicalTime { return t + LogicalTime(n) }

// String renders "T<n>".
func (t LogicalTime) String() string {
	return fmt.Sprintf("T%d", uint64(t))
}

// NanosPerSec is the number of nanoseconds in a second.
const NanosPerSec = 1_000_000_000

// Timestamp is a wall-clock instant, carried as metadata only.
type Timestamp struct {
	Seconds uint64
	Nanos   uint32
}

// NewTimestamp constructs a Timestamp.
func NewTimestamp(seconds uint64, nanos uint32) Timestamp {
	return Timestamp{Seconds: seconds, Nanos: nanos}
}

// AsMillis converts to milliseconds since the timestamp's epoch.
func (t Timestamp) AsMillis() uint64 {
	return t.Seconds*1000 + uint64(t.Nanos)/1_000_000
}

// DurationSince returns the elapsed Duration between earlier and t,
// saturating at zero rather than going negative.
func (t Timestamp) DurationSince(earlier Timestamp) Duration {
	if t.Seconds < earlier.Seconds || (t.Seconds == earlier.Seconds && t.Nanos < earlier.Nanos) {
		return ZeroDuration
	}
	var seconds uint64
	if t.Seconds > earlier.Seconds {
		seconds = t.Seconds - earlier.Seconds
	}
	nanos := int64(t.Nanos) - int64(earlier.Nanos)
	if nanos < 0 {
		if seconds > 0 {
			seconds--
		}
		nanos += NanosPerSec
	}
	return Duration{Seconds: seconds, Nanos: uint32(nanos)}
}

// Add returns t advanced by d.
func (t Timestamp) Add(d Duration) Timestamp {
	seconds := t.Seconds + d.Seconds
	nanos := t.Nanos + d.Nanos
	if nanos >= NanosPerSec {
		seconds++
		nanos -= NanosPerSec
	}
	return Timestamp{Seconds: seconds, Nanos: nanos}
}

// String renders "<seconds>.<nanos, zero-padded to 9 digits>".
func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", t.Seconds, t.Nanos)
}

// Duration is an elapsed span between two Timestamps.
type Duration struct {
	Seconds uint64
	Nanos   uint32
}

// ZeroDuration is the zero-length Duration.
var ZeroDuration = Duration{}

// DurationFromSecs constructs a whole-second Duration.
func DurationFromSecs(seconds uint64) Duration {
	return Duration{Seconds: seconds}
}

// DurationFromMillis constructs a Duration from milliseconds.
func DurationFromMillis(millis uint64) Duration {
	return Duration{
		Seconds: millis / 1000,
		Nanos:   uint32((millis % 1000) * 1_000_000),
	}
}

// AsSecs returns the whole-second component.
func (d Duration) AsSecs() uint64 { return d.Seconds }

// AsMillis converts to milliseconds.
func (d Duration) AsMillis() uint64 {
	return d.Seconds*1000 + uint64(d.Nanos)/1_000_000
}

// AsMicros converts to microseconds.
func (d Duration) AsMicros() uint64 {
	return d.Seconds*1_000_000 + uint64(d.Nanos)/1_000
}

// AsNanos converts to nanoseconds.
func (d Duration) AsNanos() uint64 {
	return d.Seconds*1_000_000_000 + uint64(d.Nanos)
}

// SaturatingAdd adds two durations, saturating the second component at
// math.MaxUint64 rather than overflowing.
func (d Duration) SaturatingAdd(other Duration) Duration {
	seconds := d.Seconds + other.Seconds
	if seconds < d.Seconds {
		seconds = ^uint64(0)
	}
	nanos := d.Nanos + other.Nanos
	if nanos >= NanosPerSec {
		if seconds != ^uint64(0) {
			seconds++
		}
		nanos -= NanosPerSec
	}
	return Duration{Seconds: seconds, Nanos: nanos}
}

// String renders a human-readable duration: "0s", "<n>ns", "<n>s", or
// "<s>.<ns,9digits>s".
func (d Duration) String() string {
	switch {
	case d.Seconds == 0 && d.Nanos == 0:
		return "0s"
	case d.Seconds == 0:
		return fmt.Sprintf("%dns", d.Nanos)
	case d.Nanos == 0:
		return fmt.Sprintf("%ds", d.Seconds)
	default:
		return fmt.Sprintf("%d.%09ds", d.Seconds, d.Nanos)
	}
}

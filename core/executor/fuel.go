// Package executor implements the Executor + Fuel Meter (C6): a tool
// registry, a fuel-bounded sandbox, and byte-level output
// normalization, grounded on cathedral_wasm::fuel (ported
// near-verbatim) and cathedral_core's tool-as-tagged-variant shape.
package executor

import (
	"time"

	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// Meter tracks execution cost against a fixed budget. Exhaustion is a
// hard failure (spec.md §4.6): no retry, no partial credit.
type Meter struct {
	remaining uint64
	initial   uint64
	consumed  uint64
}

// NewMeter returns a Meter budgeted at budget fuel units.
func NewMeter(budget uint64) *Meter {
	return &Meter{remaining: budget, initial: budget}
}

// Consume deducts amount, failing OutOfFuel without partially
// deducting if the budget can't cover it.
func (m *Meter) Consume(amount uint64) error {
	if amount > m.remaining {
		return ferrors.New(ferrors.KindOutOfFuel, "executor.Meter.Consume")
	}
	m.remaining -= amount
	m.consumed += amount
	return nil
}

// CanAfford reports whether amount fuel remains available.
func (m *Meter) CanAfford(amount uint64) bool {
	return amount <= m.remaining
}

// Remaining reports the fuel left.
func (m *Meter) Remaining() uint64 { return m.remaining }

// Consumed reports the fuel spent so far.
func (m *Meter) Consumed() uint64 { return m.consumed }

// Initial reports the original budget.
func (m *Meter) Initial() uint64 { return m.initial }

// UsagePercent reports consumed/initial as a percentage, 0 if the
// budget was zero.
func (m *Meter) UsagePercent() float64 {
	if m.initial == 0 {
		return 0
	}
	return (float64(m.consumed) / float64(m.initial)) * 100
}

// IsEmpty reports whether no fuel remains.
func (m *Meter) IsEmpty() bool { return m.remaining == 0 }

// Reset restores the meter to its initial budget.
func (m *Meter) Reset() {
	m.remaining = m.initial
	m.consumed = 0
}

// AddFuel grants additional fuel, raising both remaining and initial.
func (m *Meter) AddFuel(amount uint64) {
	m.remaining += amount
	m.initial += amount
}

// Limiter converts raw execution costs (instructions, memory bytes,
// host calls) into fuel units.
type Limiter struct {
	MaxFuel               uint64
	InstructionMultiplier uint64
	MemoryMultiplier      uint64
	HostCallCost          uint64
}

// NewLimiter returns a Limiter with the default instruction/memory/
// host-call multipliers and the given budget ceiling.
func NewLimiter(maxFuel uint64) Limiter {
	return Limiter{MaxFuel: maxFuel, InstructionMultiplier: 1, MemoryMultiplier: 10, HostCallCost: 100}
}

// DefaultLimits returns the default-budgeted Limiter.
func DefaultLimits() Limiter {
	return NewLimiter(10_000_000)
}

// InstructionCost prices executing count instructions.
func (l Limiter) InstructionCost(count uint64) uint64 {
	return count * l.InstructionMultiplier
}

// MemoryCost prices touching bytesTouched bytes of linear memory.
func (l Limiter) MemoryCost(bytesTouched uint64) uint64 {
	return (bytesTouched/1024 + 1) * l.MemoryMultiplier
}

// HostCallFuelCost prices a single host call.
func (l Limiter) HostCallFuelCost() uint64 {
	return l.HostCallCost
}

// EstimateDuration gives a rough wall-clock estimate for a fuel
// budget, at an assumed 1 billion instructions/second — informative
// only, never load-bearing for scheduling (spec.md §5 forbids
// wall-clock-driven determinism).
func (l Limiter) EstimateDuration(fuel uint64) time.Duration {
	const instructionsPerSecond = 1_000_000_000
	nanos := (float64(fuel) / instructionsPerSecond) * 1_000_000_000
	return time.Duration(nanos)
}

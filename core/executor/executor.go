package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// EffectSource lets a Tool declare, at registration, the capabilities
// it may exercise. Side effects it performs outside this set are a
// hard failure (spec.md §4.6).
type EffectSource interface {
	DeclaredEffects() capability.CapabilitySet
}

// Executor runs a dispatched node's tool under fuel and memory bounds,
// grounded on cathedral_wasm::fuel and cathedral_tool::trait_::Tool.
type Executor struct {
	registry      *Registry
	limiter       Limiter
	memoryCeiling uint64
}

// New constructs an Executor over registry with the given Limiter and
// linear-memory ceiling in bytes.
func New(registry *Registry, limiter Limiter, memoryCeiling uint64) *Executor {
	return &Executor{registry: registry, limiter: limiter, memoryCeiling: memoryCeiling}
}

// Result is the outcome of dispatching one node: its output (if any),
// the meter it ran under, and an error carrying the failure kind
// (OutOfFuel, MemoryExceeded, UndeclaredEffect, CapabilityDenied, or
// whatever the tool itself returned).
type Result struct {
	Node   dag.Node
	Output Output
	Meter  *Meter
	Err    error
}

// Dispatch resolves node's tool, checks its declared effects are fully
// covered by node's granted capability set, runs it under a fresh
// Meter budgeted at fuelBudget, normalizes its output against schema,
// and verifies no undeclared side effect occurred.
func (e *Executor) Dispatch(node dag.Node, input []byte, schema Schema, fuelBudget uint64) Result {
	tool, err := e.registry.Lookup(node.Tool.Name, node.Tool.Version)
	if err != nil {
		return Result{Node: node, Err: err}
	}

	declared := capability.NewSet()
	if src, ok := tool.(EffectSource); ok {
		declared = src.DeclaredEffects()
	}
	for _, eff := range declared.Grants() {
		if !node.Capability.Contains(eff) {
			return Result{Node: node, Err: ferrors.New(ferrors.KindCapabilityDenied, "executor.Dispatch")}
		}
	}

	meter := NewMeter(fuelBudget)
	if err := meter.Consume(e.limiter.HostCallFuelCost()); err != nil {
		return Result{Node: node, Meter: meter, Err: err}
	}

	output, err := tool.Execute(input, node.Capability)
	if err != nil {
		return Result{Node: node, Meter: meter, Err: err}
	}

	memCost := e.limiter.MemoryCost(uint64(len(output.Data)))
	if e.memoryCeiling > 0 && uint64(len(output.Data)) > e.memoryCeiling {
		return Result{Node: node, Output: output, Meter: meter, Err: ferrors.New(ferrors.KindMemoryExceeded, "executor.Dispatch")}
	}
	if err := meter.Consume(memCost); err != nil {
		return Result{Node: node, Output: output, Meter: meter, Err: err}
	}

	for _, eff := range output.SideEffects {
		if !declared.Contains(eff) {
			return Result{Node: node, Output: output, Meter: meter, Err: ferrors.New(ferrors.KindUndeclaredEffect, "executor.Dispatch")}
		}
	}

	normalized, err := Normalize(schema, output.Data)
	if err != nil {
		return Result{Node: node, Output: output, Meter: meter, Err: err}
	}
	output.Data = normalized

	return Result{Node: node, Output: output, Meter: meter}
}

// Request bundles the arguments DispatchAll fans out per node.
type Request struct {
	Node       dag.Node
	Input      []byte
	Schema     Schema
	FuelBudget uint64
}

// DispatchAll runs requests concurrently, bounded by concurrency
// in-flight dispatches (spec.md §4.5's backpressure: the scheduler
// never dispatches past the concurrency ceiling). Results preserve the
// index of the corresponding request. Canceling ctx stops launching
// new dispatches but lets in-flight ones finish, per the scheduler's
// cancellation contract (spec.md §4.5).
func (e *Executor) DispatchAll(ctx context.Context, requests []Request, concurrency int) ([]Result, error) {
	results := make([]Result, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = Result{Node: req.Node, Err: ferrors.New(ferrors.KindCancelled, "executor.DispatchAll")}
				return nil
			default:
			}
			results[i] = e.Dispatch(req.Node, req.Input, req.Schema, req.FuelBudget)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

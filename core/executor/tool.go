package executor

import (
	"fmt"
	"sync"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// Output is what a tool invocation produced: raw data plus captured
// stdout/stderr/exit-code and the side effects it performed, grounded
// on cathedral_tool::trait_::ToolOutput.
type Output struct {
	Data        []byte
	ExitCode    int32
	Stdout      []byte
	Stderr      []byte
	SideEffects []capability.Capability
}

// Success builds a zero-exit-code Output carrying data.
func Success(data []byte) Output {
	return Output{Data: data}
}

// Failure builds a nonzero-exit-code Output carrying stderr.
func Failure(exitCode int32, stderr []byte) Output {
	return Output{ExitCode: exitCode, Stderr: stderr}
}

// IsSuccess reports whether the tool exited cleanly.
func (o Output) IsSuccess() bool { return o.ExitCode == 0 }

// Tool is the interface every registered tool implements. Tools are
// assumed potentially hostile: Execute must not touch anything the
// caller did not grant a capability for, and must be a pure function
// of input (spec.md §4.6: "same input, same fuel, same output,
// forever").
type Tool interface {
	Name() string
	Version() string
	Execute(input []byte, declared capability.CapabilitySet) (Output, error)
	// TimeoutTicks returns a logical-tick budget, 0 meaning unbounded.
	TimeoutTicks() uint64
}

// Key identifies a tool by (name, version), the registry's lookup key
// (spec.md §9).
type Key struct {
	Name    string
	Version string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.Name, k.Version)
}

// Registry is a thread-safe (name, version)-keyed tool catalog.
type Registry struct {
	mu    sync.RWMutex
	tools map[Key]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[Key]Tool)}
}

// Register adds a tool, failing AlreadyExists if (name, version) is
// already taken — the registry never silently shadows a tool.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Key{Name: t.Name(), Version: t.Version()}
	if _, exists := r.tools[key]; exists {
		return ferrors.New(ferrors.KindAlreadyExists, "executor.Registry.Register")
	}
	r.tools[key] = t
	return nil
}

// Lookup resolves a tool by name and version, failing NotFound if
// unregistered.
func (r *Registry) Lookup(name, version string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[Key{Name: name, Version: version}]
	if !ok {
		return nil, ferrors.New(ferrors.KindNotFound, "executor.Registry.Lookup")
	}
	return t, nil
}

// Keys returns every registered (name, version) key.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.tools))
	for k := range r.tools {
		keys = append(keys, k)
	}
	return keys
}

package node

import (
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ed25519"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/executor"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/policy"
)

// echoTool returns its input unchanged and performs no side effects.
type echoTool struct{}

func (echoTool) Name() string          { return "echo" }
func (echoTool) Version() string       { return "v1" }
func (echoTool) TimeoutTicks() uint64  { return 1000 }
func (echoTool) Execute(input []byte, _ capability.CapabilitySet) (executor.Output, error) {
	return executor.Success(input), nil
}

func buildSingleNodeDAG(t *testing.T, run ids.RunId) (*dag.DAG, ids.NodeId) {
	t.Helper()
	n1 := ids.NewNodeId(run, "n1")
	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{
		ID:   n1,
		Name: "n1",
		Kind: dag.NodeOutput,
		Tool: dag.ToolRef{Name: "echo", Version: "v1"},
	}))
	d.SetEntryNodes(n1)
	return d, n1
}

func TestCoordinator_RunSingleNodeProducesCertificate(t *testing.T) {
	run := ids.NewRunId("node-coordinator-single")
	graph, n1 := buildSingleNodeDAG(t, run)

	tools := executor.NewRegistry()
	require.NoError(t, tools.Register(echoTool{}))

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := Config{
		RunID:    run,
		StoreDir: filepath.Join(t.TempDir(), "store"),
		LogDir:   filepath.Join(t.TempDir(), "log"),
		Policy:   policy.Policy{Version: "v1"},
		Signer:   priv,
	}
	coord, err := New(cfg, tools)
	require.NoError(t, err)

	cert, err := coord.Run(graph, map[ids.NodeId]NodeInput{
		n1: {Data: []byte("hello"), Schema: executor.IdentitySchema(), FuelBudget: 1_000_000},
	})
	require.NoError(t, err)
	require.Equal(t, run, cert.Body.RunID)
	require.NotEmpty(t, cert.Signature)
}

func TestCoordinator_RunFailsWhenCapabilityNeverGranted(t *testing.T) {
	run := ids.NewRunId("node-coordinator-denied")
	n1 := ids.NewNodeId(run, "n1")
	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{
		ID:         n1,
		Name:       "n1",
		Kind:       dag.NodeOutput,
		Tool:       dag.ToolRef{Name: "echo", Version: "v1"},
		Capability: capability.NewSet(capability.New(capability.KindToolInvoke, "echo")),
	}))
	d.SetEntryNodes(n1)

	tools := executor.NewRegistry()
	require.NoError(t, tools.Register(echoTool{}))

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	// An empty policy has no rules, so Engine.Decide denies by default
	// (core/policy/engine.go): the scheduler's capability dry-run for
	// n1's declared tool.invoke grant never passes, n1 settles straight
	// to Failed without ever being dispatched, and the run surfaces
	// CapabilityDenied instead of completing.
	cfg := Config{
		RunID:    run,
		StoreDir: filepath.Join(t.TempDir(), "store"),
		LogDir:   filepath.Join(t.TempDir(), "log"),
		Policy:   policy.Policy{Version: "v1"},
		Signer:   priv,
	}
	coord, err := New(cfg, tools)
	require.NoError(t, err)

	_, err = coord.Run(d, map[ids.NodeId]NodeInput{
		n1: {Data: []byte("hello"), Schema: executor.IdentitySchema(), FuelBudget: 1_000_000},
	})
	require.Error(t, err)
	require.Equal(t, ferrors.KindCapabilityDenied, ferrors.KindOf(err))
}

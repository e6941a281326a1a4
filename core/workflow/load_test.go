package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/ids"
)

const sampleWorkflow = `{
  "entry": ["fetch"],
  "nodes": [
    {
      "name": "fetch",
      "kind": "input",
      "tool": {"name": "echo", "version": "v1"},
      "capabilities": [{"kind": "net.connect", "argument": "example.com:443"}]
    },
    {
      "name": "transform",
      "kind": "compute",
      "tool": {"name": "upper", "version": "v1"},
      "resources": {"memory": {"set": true, "min": 0, "max": 1024, "default": 256}}
    }
  ],
  "edges": [
    {"from": "fetch", "to": "transform"}
  ]
}`

func TestLoadDocumentAndCompile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorkflow), 0o600))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
	require.Equal(t, []string{"fetch"}, doc.Entry)

	run := ids.NewRunId(path)
	graph, err := Compile(doc, run)
	require.NoError(t, err)
	require.Equal(t, 2, graph.NodeCount())

	fetchID := ids.NewNodeId(run, "fetch")
	fetchNode, ok := graph.Node(fetchID)
	require.True(t, ok)
	require.Equal(t, dag.NodeInput, fetchNode.Kind)
	require.Equal(t, 1, fetchNode.Capability.Len())

	transformID := ids.NewNodeId(run, "transform")
	require.Equal(t, []ids.NodeId{fetchID}, graph.Dependencies(transformID))
	require.Equal(t, []ids.NodeId{fetchID}, graph.EntryNodes())
}

func TestCompileRecompilationIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorkflow), 0o600))

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	run := ids.NewRunId("fixed-seed")
	g1, err := Compile(doc, run)
	require.NoError(t, err)
	g2, err := Compile(doc, run)
	require.NoError(t, err)

	for _, n := range g1.Nodes() {
		other, ok := g2.Node(n.ID)
		require.True(t, ok)
		require.Equal(t, n.Name, other.Name)
	}
}

func TestCompileRejectsUndeclaredEdgeEndpoint(t *testing.T) {
	doc := Document{
		Nodes: []NodeDocument{{Name: "a", Kind: "compute"}},
		Edges: []EdgeDocument{{From: "a", To: "missing"}},
	}
	_, err := Compile(doc, ids.NewRunId("x"))
	require.Error(t, err)
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	doc := `{
  "version": "v1",
  "rules": [
    {"name": "allow-net", "effect": "allow", "mode": "any_of", "patterns": ["net.connect(\"example.com:443\")"]}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	pol, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Equal(t, "v1", pol.Version)
	require.Len(t, pol.Rules, 1)
	require.Equal(t, "allow-net", pol.Rules[0].Name)
}

// Package workflow loads the two document shapes the CLI accepts from
// disk: a compiled DAG definition (spec.md §6's "workflow file") and a
// policy document (spec.md §4.4). Neither original_source nor any
// example repo in the pack defines a generic document format for
// either shape, so both are read as plain JSON via encoding/json
// rather than grounded on a third-party parser (see DESIGN.md).
package workflow

import (
	"encoding/json"
	"os"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/executor"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/policy"
)

// Document is the on-disk shape of a compiled workflow: named nodes,
// directed edges between them by name, and a declared entry set.
type Document struct {
	Entry []string       `json:"entry"`
	Nodes []NodeDocument `json:"nodes"`
	Edges []EdgeDocument `json:"edges"`
}

// NodeDocument is one node's on-disk shape. Kind is one of "input",
// "compute", "output"; Tool names the (name, version) the executor's
// registry looks the node's tool up by.
type NodeDocument struct {
	Name         string               `json:"name"`
	Kind         string               `json:"kind"`
	Tool         ToolDocument         `json:"tool"`
	Resources    ResourcesDocument    `json:"resources"`
	Capabilities []CapabilityDocument `json:"capabilities"`
}

// ToolDocument names a registered tool.
type ToolDocument struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BoundDocument is one resource axis's (min, max, default) triple. An
// absent document (all fields zero and Set omitted) leaves the axis
// unconstrained.
type BoundDocument struct {
	Set     bool   `json:"set"`
	Min     uint64 `json:"min"`
	Max     uint64 `json:"max"`
	Default uint64 `json:"default"`
}

func (b BoundDocument) toBound() capability.Bound {
	if !b.Set {
		return capability.Bound{}
	}
	return capability.NewBound(b.Min, b.Max, b.Default)
}

// ResourcesDocument is a node's on-disk resource contract.
type ResourcesDocument struct {
	Memory  BoundDocument `json:"memory"`
	CPU     BoundDocument `json:"cpu"`
	Storage BoundDocument `json:"storage"`
	Network BoundDocument `json:"network"`
}

func (r ResourcesDocument) toContract() capability.ResourceContract {
	return capability.ResourceContract{
		Memory:  r.Memory.toBound(),
		CPU:     r.CPU.toBound(),
		Storage: r.Storage.toBound(),
		Network: r.Network.toBound(),
	}
}

// CapabilityDocument is one granted capability's on-disk shape.
type CapabilityDocument struct {
	Kind     string `json:"kind"`
	Argument string `json:"argument"`
}

// EdgeDocument is one directed edge's on-disk shape, naming its
// endpoints by declared node name rather than derived NodeId.
type EdgeDocument struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Optional bool   `json:"optional"`
}

func kindFromString(s string) (dag.NodeKind, error) {
	switch s {
	case "input":
		return dag.NodeInput, nil
	case "compute", "":
		return dag.NodeCompute, nil
	case "output":
		return dag.NodeOutput, nil
	default:
		return 0, ferrors.New(ferrors.KindValidation, "workflow.kindFromString")
	}
}

// LoadDocument reads and parses a workflow document from path.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, ferrors.Wrap(ferrors.KindNotFound, "workflow.LoadDocument", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, ferrors.Wrap(ferrors.KindInvalidEncoding, "workflow.LoadDocument", err)
	}
	return doc, nil
}

// Compile derives every node id from run and the node's declared name
// (so recompiling the identical document under the identical run
// always reproduces the identical NodeIds, per core/ids's contract)
// and builds the corresponding *dag.DAG.
func Compile(doc Document, run ids.RunId) (*dag.DAG, error) {
	g := dag.New()
	byName := make(map[string]ids.NodeId, len(doc.Nodes))

	for _, nd := range doc.Nodes {
		kind, err := kindFromString(nd.Kind)
		if err != nil {
			return nil, err
		}
		grants := make([]capability.Capability, 0, len(nd.Capabilities))
		for _, cd := range nd.Capabilities {
			grants = append(grants, capability.New(capability.Kind(cd.Kind), cd.Argument))
		}
		id := ids.NewNodeId(run, nd.Name)
		byName[nd.Name] = id
		node := dag.Node{
			ID:         id,
			Name:       nd.Name,
			Kind:       kind,
			Tool:       dag.ToolRef{Name: nd.Tool.Name, Version: nd.Tool.Version},
			Resources:  nd.Resources.toContract(),
			Capability: capability.NewSet(grants...),
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, ed := range doc.Edges {
		from, ok := byName[ed.From]
		if !ok {
			return nil, ferrors.New(ferrors.KindValidation, "workflow.Compile: edge references undeclared node "+ed.From)
		}
		to, ok := byName[ed.To]
		if !ok {
			return nil, ferrors.New(ferrors.KindValidation, "workflow.Compile: edge references undeclared node "+ed.To)
		}
		if err := g.AddEdge(dag.Edge{From: from, To: to, Optional: ed.Optional}); err != nil {
			return nil, err
		}
	}

	entries := make([]ids.NodeId, 0, len(doc.Entry))
	for _, name := range doc.Entry {
		id, ok := byName[name]
		if !ok {
			return nil, ferrors.New(ferrors.KindValidation, "workflow.Compile: entry references undeclared node "+name)
		}
		entries = append(entries, id)
	}
	g.SetEntryNodes(entries...)

	return g, nil
}

// Inputs builds the per-node NodeInput map a Coordinator.Run call
// needs, pairing each document node's declared input payload (by name)
// with an unconstrained schema and fuelBudget as the uniform default
// fuel grant (spec.md §6's --fuel-budget flag).
func Inputs(doc Document, run ids.RunId, payloads map[string][]byte, fuelBudget uint64) map[ids.NodeId]NodeInputSpec {
	out := make(map[ids.NodeId]NodeInputSpec, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		id := ids.NewNodeId(run, nd.Name)
		out[id] = NodeInputSpec{
			Data:       payloads[nd.Name],
			Schema:     executor.Schema{},
			FuelBudget: fuelBudget,
		}
	}
	return out
}

// NodeInputSpec mirrors node.NodeInput's fields; workflow cannot
// import core/node directly (core/node does not depend on workflow,
// but keeping the dependency one-directional — cmd -> {node, workflow}
// rather than workflow -> node -> ... -> workflow — avoids any future
// import cycle as both packages grow).
type NodeInputSpec struct {
	Data       []byte
	Schema     executor.Schema
	FuelBudget uint64
}

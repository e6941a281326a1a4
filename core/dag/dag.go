// Package dag defines the compiled workflow graph the scheduler walks:
// nodes, edges, entry points, cycle detection, and depth computation,
// grounded on cathedral_plan::dag (Dag/Node/Edge/NodeKind, referenced
// throughout cathedral_plan::validate::Validator) and the DFS
// cycle-detection shape in cathedral_plan::validate.
package dag

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/ids"
)

// NodeKind classifies a node's role in the DAG.
type NodeKind int

const (
	NodeInput NodeKind = iota
	NodeCompute
	NodeOutput
)

func (k NodeKind) String() string {
	switch k {
	case NodeInput:
		return "input"
	case NodeCompute:
		return "compute"
	case NodeOutput:
		return "output"
	default:
		return "unknown"
	}
}

// ToolRef names the tool a node invokes, keyed the same way the
// executor's registry keys tools: (name, version).
type ToolRef struct {
	Name    string
	Version string
}

// Node is one vertex of a compiled DAG.
type Node struct {
	ID         ids.NodeId
	Name       string
	Kind       NodeKind
	Tool       ToolRef
	Resources  capability.ResourceContract
	Capability capability.CapabilitySet
}

// Edge is a directed dependency from From to To. Optional edges let a
// Skip on From propagate as satisfied-for-readiness rather than
// forcing To to Skip (spec.md §4.5).
type Edge struct {
	From     ids.NodeId
	To       ids.NodeId
	Optional bool
}

// DAG is a compiled workflow: a fixed set of nodes and directed edges
// with one or more declared entry points.
type DAG struct {
	nodes      map[ids.NodeId]Node
	order      []ids.NodeId // insertion order, for stable iteration
	edges      []Edge
	entryNodes []ids.NodeId

	outEdges map[ids.NodeId][]Edge
	inEdges  map[ids.NodeId][]Edge
}

// New constructs an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:    make(map[ids.NodeId]Node),
		outEdges: make(map[ids.NodeId][]Edge),
		inEdges:  make(map[ids.NodeId][]Edge),
	}
}

// AddNode inserts a node. Re-adding the same NodeId is an error.
func (d *DAG) AddNode(n Node) error {
	if _, exists := d.nodes[n.ID]; exists {
		return errors.Errorf("dag: duplicate node %s", n.ID)
	}
	d.nodes[n.ID] = n
	d.order = append(d.order, n.ID)
	return nil
}

// AddEdge inserts a directed edge. Both endpoints must already exist.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return errors.Errorf("dag: edge references unknown node %s", e.From)
	}
	if _, ok := d.nodes[e.To]; !ok {
		return errors.Errorf("dag: edge references unknown node %s", e.To)
	}
	d.edges = append(d.edges, e)
	d.outEdges[e.From] = append(d.outEdges[e.From], e)
	d.inEdges[e.To] = append(d.inEdges[e.To], e)
	return nil
}

// SetEntryNodes declares the DAG's entry points.
func (d *DAG) SetEntryNodes(entries ...ids.NodeId) {
	d.entryNodes = append([]ids.NodeId{}, entries...)
}

// EntryNodes returns the declared entry points.
func (d *DAG) EntryNodes() []ids.NodeId {
	return d.entryNodes
}

// Node looks up a node by id.
func (d *DAG) Node(id ids.NodeId) (Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (d *DAG) Nodes() []Node {
	out := make([]Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// NodeCount returns the number of nodes.
func (d *DAG) NodeCount() int {
	return len(d.nodes)
}

// Dependencies returns the node ids that id directly depends on
// (in-edge sources).
func (d *DAG) Dependencies(id ids.NodeId) []ids.NodeId {
	edges := d.inEdges[id]
	out := make([]ids.NodeId, len(edges))
	for i, e := range edges {
		out[i] = e.From
	}
	return out
}

// Dependents returns the node ids that directly depend on id
// (out-edge targets).
func (d *DAG) Dependents(id ids.NodeId) []ids.NodeId {
	edges := d.outEdges[id]
	out := make([]ids.NodeId, len(edges))
	for i, e := range edges {
		out[i] = e.To
	}
	return out
}

// InEdges returns the edges whose target is id.
func (d *DAG) InEdges(id ids.NodeId) []Edge {
	return d.inEdges[id]
}

// ValidationError reports one DAG validity defect.
type ValidationError struct {
	Kind    string
	NodeID  ids.NodeId
	Nodes   []ids.NodeId
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// CycleError reports a cycle, carrying the deterministic sorted set of
// node ids found in-progress on the recursion stack when the cycle
// closed (spec.md §9: "report the back-edge with a deterministic,
// sorted node list").
type CycleError struct {
	Nodes []ids.NodeId
}

func (e CycleError) Error() string {
	return "dag: cycle detected"
}

// CheckCycles performs DFS cycle detection with a path-marker set, per
// cathedral_plan::validate::Validator::check_cycles / dfs_cycle.
// Nodes are visited in insertion order for determinism; the reported
// node list is sorted so two structurally-equal DAGs report identically
// regardless of build order.
func (d *DAG) CheckCycles() error {
	visited := make(map[ids.NodeId]bool, len(d.nodes))
	onStack := make(map[ids.NodeId]bool, len(d.nodes))
	stack := make([]ids.NodeId, 0, len(d.nodes))

	var dfs func(id ids.NodeId) bool
	dfs = func(id ids.NodeId) bool {
		if onStack[id] {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range d.Dependencies(id) {
			if dfs(dep) {
				return true
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range d.order {
		if dfs(id) {
			cycle := append([]ids.NodeId{}, stack...)
			sort.Slice(cycle, func(i, j int) bool { return cycle[i].String() < cycle[j].String() })
			return CycleError{Nodes: cycle}
		}
	}
	return nil
}

// CheckConnected verifies every node is reachable from an entry node.
func (d *DAG) CheckConnected() error {
	if len(d.nodes) == 0 {
		return nil
	}
	reachable := make(map[ids.NodeId]bool, len(d.nodes))
	stack := append([]ids.NodeId{}, d.entryNodes...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[cur] {
			continue
		}
		reachable[cur] = true
		stack = append(stack, d.Dependents(cur)...)
	}

	var disconnected []ids.NodeId
	for _, id := range d.order {
		if !reachable[id] {
			disconnected = append(disconnected, id)
		}
	}
	if len(disconnected) > 0 {
		sort.Slice(disconnected, func(i, j int) bool { return disconnected[i].String() < disconnected[j].String() })
		return ValidationError{
			Kind:    "disconnected",
			Nodes:   disconnected,
			Message: "dag: disconnected nodes present",
		}
	}
	return nil
}

// hasOutput reports whether any node is an Output node.
func (d *DAG) hasOutput() bool {
	for _, n := range d.nodes {
		if n.Kind == NodeOutput {
			return true
		}
	}
	return false
}

// Validator checks structural DAG properties, grounded on
// cathedral_plan::validate::Validator.
type Validator struct {
	RequireInput  bool
	RequireOutput bool
	MaxNodes      int
}

// NewValidator returns the default validator: input and output both
// required, no node-count ceiling.
func NewValidator() Validator {
	return Validator{RequireInput: true, RequireOutput: true}
}

// Validate runs every structural check, returning all defects found
// rather than stopping at the first.
func (v Validator) Validate(d *DAG) []error {
	var errs []error

	if err := d.CheckCycles(); err != nil {
		errs = append(errs, err)
	}
	if err := d.CheckConnected(); err != nil {
		errs = append(errs, err)
	}
	if v.RequireInput && len(d.entryNodes) == 0 && len(d.nodes) > 0 {
		errs = append(errs, ValidationError{Kind: "missing_input", Message: "dag: no entry nodes declared"})
	}
	if v.RequireOutput && !d.hasOutput() {
		errs = append(errs, ValidationError{Kind: "missing_output", Message: "dag: no output node present"})
	}
	if v.MaxNodes > 0 && d.NodeCount() > v.MaxNodes {
		errs = append(errs, ValidationError{
			Kind:    "resource_violation",
			Message: errors.Errorf("dag: node count %d exceeds max %d", d.NodeCount(), v.MaxNodes).Error(),
		})
	}
	return errs
}

// Depths computes, for every node, the length of its longest chain of
// dependencies (used by the scheduler's (depth, node_id) tie-break,
// spec.md §4.5). Nodes with no dependencies get depth 0; entry nodes
// play no part in the computation.
func (d *DAG) Depths() map[ids.NodeId]int {
	depth := make(map[ids.NodeId]int, len(d.nodes))
	for _, id := range d.order {
		depth[id] = 0
	}

	// Topologically process via repeated relaxation; the DAG is acyclic
	// by construction once CheckCycles has passed, so this converges in
	// at most len(nodes) passes.
	changed := true
	for pass := 0; pass < len(d.order)+1 && changed; pass++ {
		changed = false
		for _, id := range d.order {
			for _, dep := range d.Dependencies(id) {
				if depth[dep]+1 > depth[id] {
					depth[id] = depth[dep] + 1
					changed = true
				}
			}
		}
	}
	return depth
}

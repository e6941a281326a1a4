package dag

import (
	"github.com/emicklei/dot"

	"github.com/cathedral-fabric/fabric/core/ids"
)

// Render produces a Graphviz .dot rendering of the DAG, used by the
// `inspect` CLI verb (spec.md §6).
func (d *DAG) Render() string {
	g := dot.NewGraph(dot.Directed)
	nodesByID := make(map[ids.NodeId]dot.Node, len(d.order))
	for _, id := range d.order {
		n := d.nodes[id]
		gn := g.Node(id.String()).Label(n.Name).Attr("shape", shapeFor(n.Kind))
		nodesByID[id] = gn
	}
	for _, e := range d.edges {
		edge := g.Edge(nodesByID[e.From], nodesByID[e.To])
		if e.Optional {
			edge.Attr("style", "dashed")
		}
	}
	return g.String()
}

func shapeFor(k NodeKind) string {
	switch k {
	case NodeInput:
		return "invhouse"
	case NodeOutput:
		return "house"
	default:
		return "box"
	}
}

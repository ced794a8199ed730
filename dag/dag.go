// Package dag holds the execution plan of a saga as a gonum directed graph.
package dag

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

type Graph struct {
	*simple.DirectedGraph
}

func New() *Graph {
	return &Graph{DirectedGraph: simple.NewDirectedGraph()}
}

// NewNode allocates a node with a fresh ID. The node is not added to the
// graph until AddNode or SetEdge is called with it.
func (g *Graph) NewNode() *Node {
	n := g.DirectedGraph.NewNode()
	return &Node{Node: n, dotID: fmt.Sprintf("n%d", n.ID())}
}

// AddLabeled creates, labels and adds a node in one step.
func (g *Graph) AddLabeled(dotID, label string) *Node {
	n := g.NewNode()
	if dotID != "" {
		n.SetDOTID(dotID)
	}
	n.Label = label
	g.AddNode(n)
	return n
}

// Connect adds the edge from -> to.
func (g *Graph) Connect(from, to graph.Node) {
	g.SetEdge(g.NewEdge(from, to))
}

func (g *Graph) NewEdge(from, to graph.Node) graph.Edge {
	return &edge{Edge: g.DirectedGraph.NewEdge(from, to)}
}

// Lookup returns the plan node with the given ID.
func (g *Graph) Lookup(id int64) (*Node, bool) {
	n, ok := g.Node(id).(*Node)
	return n, ok
}

// Sorted returns node IDs in topological order. Ties are broken by node ID so
// the order is stable across calls.
func (g *Graph) Sorted() ([]int64, error) {
	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].ID() < nodes[j].ID()
		})
	})
	if err != nil {
		return nil, fmt.Errorf("topological sort failed (cycle detected?): %w", err)
	}

	order := make([]int64, len(sorted))
	for i, node := range sorted {
		order[i] = node.ID()
	}
	return order, nil
}

// ExportToDot exports the graph to Graphviz .dot format.
func (g *Graph) ExportToDot(name string) (string, error) {
	data, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to export DAG to DOT format: %w", err)
	}
	return string(data), nil
}

type Node struct {
	graph.Node
	Label string
	attrs encoding.Attributes
	dotID string
}

// DOTID implements dot.Node.
func (n *Node) DOTID() string {
	return n.dotID
}

// SetDOTID sets the identifier used for the node in DOT output.
func (n *Node) SetDOTID(id string) {
	n.dotID = id
}

func (n *Node) Attributes() []encoding.Attribute {
	attrs := n.attrs.Attributes()
	if n.Label == "" {
		return attrs
	}
	return append([]encoding.Attribute{{Key: "label", Value: strconv.Quote(n.Label)}}, attrs...)
}

func (n *Node) SetAttribute(attr encoding.Attribute) error {
	return n.attrs.SetAttribute(attr)
}

type edge struct {
	graph.Edge
	attrs encoding.Attributes
}

func (e *edge) Attributes() []encoding.Attribute {
	return e.attrs.Attributes()
}

func (e *edge) SetAttribute(attr encoding.Attribute) error {
	return e.attrs.SetAttribute(attr)
}

package saga

import (
	"fmt"

	"gonum.org/v1/gonum/graph/encoding"

	"github.com/fortressi/saga/dag"
)

const (
	planStart = "start"
	planEnd   = "end"
)

// Plan lays the operations out as a graph between a start and an end node.
// Orchestration is a chain in declaration order; choreography fans out from
// start and joins at end. The graph can be rendered with ExportToDot.
func (s *Saga) Plan(mode Mode) (*dag.Graph, error) {
	g := dag.New()
	start := g.AddLabeled(planStart, planStart)

	prev := start
	nodes := make([]*dag.Node, len(s.ops))
	for i, op := range s.ops {
		n := g.AddLabeled(fmt.Sprintf("op%d", i), string(op.Name()))
		if comp, ok := op.Compensation(); ok {
			if err := n.SetAttribute(encoding.Attribute{Key: "xlabel", Value: fmt.Sprintf("%q", "undo: "+string(comp.Name))}); err != nil {
				return nil, err
			}
		}
		nodes[i] = n

		switch mode {
		case Orchestration:
			g.Connect(prev, n)
			prev = n
		case Choreography:
			g.Connect(start, n)
		default:
			return nil, fmt.Errorf("unknown execution mode %s", mode)
		}
	}

	end := g.AddLabeled(planEnd, planEnd)
	switch {
	case len(nodes) == 0:
		g.Connect(start, end)
	case mode == Orchestration:
		g.Connect(prev, end)
	default:
		for _, n := range nodes {
			g.Connect(n, end)
		}
	}
	return g, nil
}


package layout

import (
	"sort"
	"strings"

	"github.com/topolord/topolord/pkg/topology"
)

// Reconciler decides, on each data refresh, whether existing on-screen
// positions survive or a full re-layout runs. It owns the previous view
// state the way the dashboard map component does.
type Reconciler struct {
	engine *Engine
	nodes  []Node
	sig    string
}

// NewReconciler creates a reconciler around a layout engine.
func NewReconciler(engine *Engine) *Reconciler {
	return &Reconciler{engine: engine}
}

// Nodes returns the current positioned view state.
func (r *Reconciler) Nodes() []Node {
	return r.nodes
}

// SetPosition records a user-dragged position for a node, if present.
func (r *Reconciler) SetPosition(id string, pos Position) {
	for i := range r.nodes {
		if r.nodes[i].Service.ID == id {
			r.nodes[i].Position = pos
			return
		}
	}
}

// Apply feeds freshly fetched services and dependencies into the view.
//
// If the structural signature matches the previous refresh, fresh service
// data is merged into the existing nodes while each node keeps its position,
// including positions the user dragged. Any signature change discards
// positions and recomputes the layout. The signature covers the node-id
// set, and additionally the edge set when Config.IncludeEdges is on.
func (r *Reconciler) Apply(services []topology.Service, deps []topology.Dependency) []Node {
	sig := r.engine.signature(services, deps)

	if r.sig == "" || sig != r.sig {
		r.nodes = r.engine.Layout(services, deps)
		r.sig = sig
		return r.nodes
	}

	// Same structure: carry positions, refresh the data underneath.
	PositionsPreservedTotal.Add(float64(len(services)))
	prevByID := make(map[string]Node, len(r.nodes))
	for _, n := range r.nodes {
		prevByID[n.Service.ID] = n
	}
	merged := make([]Node, 0, len(services))
	for _, svc := range services {
		node := prevByID[svc.ID]
		node.Service = svc
		merged = append(merged, node)
	}
	r.nodes = merged
	return r.nodes
}

func (e *Engine) signature(services []topology.Service, deps []topology.Dependency) string {
	ids := make([]string, 0, len(services))
	for _, svc := range services {
		ids = append(ids, svc.ID)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}

	if e.cfg.IncludeEdges {
		edges := make([]string, 0, len(deps))
		for _, d := range deps {
			edges = append(edges, d.SourceID+"\x00"+d.TargetID+"\x00"+d.Protocol)
		}
		sort.Strings(edges)
		b.WriteString("--edges--\n")
		for _, s := range edges {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

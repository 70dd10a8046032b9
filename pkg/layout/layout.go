package layout

import (
	"fmt"
	"math"
	"sort"

	"github.com/topolord/topolord/pkg/topology"
)

// Engine assigns coordinates to topology services using a layered
// left-to-right layout: services are ranked along the dependency direction,
// then stacked within each rank. The engine guarantees that every returned
// node has finite coordinates; a failed or corrupted primary pass degrades
// to deterministic fallback placement, never to missing positions.
type Engine struct {
	cfg Config
}

// NewEngine creates a layout engine with the given config.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Layout computes positions for the full service/dependency set.
func (e *Engine) Layout(services []topology.Service, deps []topology.Dependency) []Node {
	LayoutsTotal.Inc()

	nodes := e.layoutLayered(services, deps)
	if nodes == nil {
		LayoutFallbacksTotal.Inc()
		nodes = e.layoutGrid(services)
	}

	// Patch any non-finite coordinate with rank-free vertical stacking.
	// Observed in the wild as numeric corruption out of layout libraries;
	// our own pass should never produce these, but the guarantee holds
	// regardless of where the nodes came from.
	for i := range nodes {
		if !finite(nodes[i].Position.X) || !finite(nodes[i].Position.Y) {
			LayoutFallbacksTotal.Inc()
			nodes[i].Position = Position{
				X: 0,
				Y: float64(i) * (e.cfg.Height + e.cfg.NodeSep),
			}
		}
	}
	return nodes
}

// layoutLayered is the primary pass. Returns nil if it cannot produce a
// placement (the caller then falls back to grid placement).
func (e *Engine) layoutLayered(services []topology.Service, deps []topology.Dependency) (nodes []Node) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf(`{"level":"error","msg":"layout_pass_panicked","error":"%v"}`+"\n", r)
			nodes = nil
		}
	}()

	if len(services) == 0 {
		return []Node{}
	}

	ids := make(map[string]bool, len(services))
	for _, svc := range services {
		ids[svc.ID] = true
	}

	// Dangling edges are dropped before ranking, not after: an edge whose
	// endpoint is missing must not influence placement.
	edges := PruneDangling(deps, ids)

	ranks := assignRanks(services, edges)

	// Stable ordering within a rank: sort by id so repeated layouts of the
	// same topology are identical.
	byRank := make(map[int][]topology.Service)
	maxRank := 0
	for _, svc := range services {
		r := ranks[svc.ID]
		byRank[r] = append(byRank[r], svc)
		if r > maxRank {
			maxRank = r
		}
	}

	nodes = make([]Node, 0, len(services))
	for r := 0; r <= maxRank; r++ {
		rank := byRank[r]
		sort.Slice(rank, func(i, j int) bool { return rank[i].ID < rank[j].ID })
		for i, svc := range rank {
			var pos Position
			if e.cfg.Direction == "TB" {
				pos = Position{
					X: float64(i) * (e.cfg.Width + e.cfg.NodeSep),
					Y: float64(r) * (e.cfg.Height + e.cfg.RankSep),
				}
			} else {
				pos = Position{
					X: float64(r) * (e.cfg.Width + e.cfg.RankSep),
					Y: float64(i) * (e.cfg.Height + e.cfg.NodeSep),
				}
			}
			nodes = append(nodes, Node{
				Service:  svc,
				Position: pos,
				Width:    e.cfg.Width,
				Height:   e.cfg.Height,
			})
		}
	}
	return nodes
}

// layoutGrid is the last-resort placement: a simple row-major grid. Purely
// cosmetic degradation; the topology data itself is untouched.
func (e *Engine) layoutGrid(services []topology.Service) []Node {
	sorted := make([]topology.Service, len(services))
	copy(sorted, services)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	cols := int(math.Ceil(math.Sqrt(float64(len(sorted)))))
	if cols < 1 {
		cols = 1
	}

	nodes := make([]Node, 0, len(sorted))
	for i, svc := range sorted {
		nodes = append(nodes, Node{
			Service: svc,
			Position: Position{
				X: float64(i%cols) * (e.cfg.Width + e.cfg.NodeSep),
				Y: float64(i/cols) * (e.cfg.Height + e.cfg.NodeSep),
			},
			Width:  e.cfg.Width,
			Height: e.cfg.Height,
		})
	}
	return nodes
}

// PruneDangling returns only the dependencies whose both endpoints exist in
// the node-id set.
func PruneDangling(deps []topology.Dependency, ids map[string]bool) []topology.Dependency {
	pruned := make([]topology.Dependency, 0, len(deps))
	for _, d := range deps {
		if ids[d.SourceID] && ids[d.TargetID] {
			pruned = append(pruned, d)
		}
	}
	return pruned
}

// assignRanks computes a longest-path layering. Services with no inbound
// dependency sit at rank 0; every edge pushes its target at least one rank
// to the right. Back-edges discovered during traversal are ignored so cyclic
// dependency data cannot hang the layout.
func assignRanks(services []topology.Service, edges []topology.Dependency) map[string]int {
	out := make(map[string][]string, len(services))
	indegree := make(map[string]int, len(services))
	for _, svc := range services {
		indegree[svc.ID] = 0
	}
	for _, e := range edges {
		out[e.SourceID] = append(out[e.SourceID], e.TargetID)
		indegree[e.TargetID]++
	}

	ranks := make(map[string]int, len(services))
	queue := make([]string, 0, len(services))
	for _, svc := range services {
		if indegree[svc.ID] == 0 {
			queue = append(queue, svc.ID)
		}
	}
	sort.Strings(queue)

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range out[id] {
			if r := ranks[id] + 1; r > ranks[next] {
				ranks[next] = r
			}
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	// Anything unprocessed sits on a cycle: its indegree never drained.
	// Rank cycle members after the deepest settled rank so they still
	// render, in id order for determinism.
	if processed < len(services) {
		deepest := 0
		for _, r := range ranks {
			if r > deepest {
				deepest = r
			}
		}
		var cyclic []string
		for _, svc := range services {
			if indegree[svc.ID] > 0 {
				cyclic = append(cyclic, svc.ID)
			}
		}
		sort.Strings(cyclic)
		for _, id := range cyclic {
			if ranks[id] == 0 {
				ranks[id] = deepest + 1
			}
		}
	}
	return ranks
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

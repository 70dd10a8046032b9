package layout

import (
	"math"
	"testing"

	"github.com/topolord/topolord/pkg/topology"
)

func services(ids ...string) []topology.Service {
	out := make([]topology.Service, 0, len(ids))
	for _, id := range ids {
		out = append(out, topology.Service{ID: id, DisplayName: id})
	}
	return out
}

func dep(src, dst string) topology.Dependency {
	return topology.Dependency{SourceID: src, TargetID: dst}
}

func assertFinite(t *testing.T, nodes []Node) {
	t.Helper()
	for _, n := range nodes {
		if math.IsNaN(n.Position.X) || math.IsInf(n.Position.X, 0) ||
			math.IsNaN(n.Position.Y) || math.IsInf(n.Position.Y, 0) {
			t.Fatalf("node %s has non-finite position %+v", n.Service.ID, n.Position)
		}
	}
}

func TestLayout_EmptyGraph(t *testing.T) {
	e := NewEngine(DefaultConfig())
	nodes := e.Layout(nil, nil)
	if len(nodes) != 0 {
		t.Fatalf("expected empty layout, got %d nodes", len(nodes))
	}
}

func TestLayout_RanksFollowDependencies(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// gateway -> api -> db, cache standalone
	nodes := e.Layout(
		services("gateway", "api", "db", "cache"),
		[]topology.Dependency{dep("gateway", "api"), dep("api", "db")},
	)
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	assertFinite(t, nodes)

	pos := make(map[string]Position)
	for _, n := range nodes {
		pos[n.Service.ID] = n.Position
	}
	// Left-to-right: each dependency pushes the target further right.
	if !(pos["gateway"].X < pos["api"].X && pos["api"].X < pos["db"].X) {
		t.Errorf("ranks not increasing left-to-right: %+v", pos)
	}
	// Standalone node has no inbound edge, so it shares rank 0.
	if pos["cache"].X != pos["gateway"].X {
		t.Errorf("standalone node not at rank 0: %+v", pos)
	}
}

func TestLayout_TopBottomDirection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Direction = "TB"
	e := NewEngine(cfg)

	nodes := e.Layout(services("a", "b"), []topology.Dependency{dep("a", "b")})
	pos := make(map[string]Position)
	for _, n := range nodes {
		pos[n.Service.ID] = n.Position
	}
	if !(pos["a"].Y < pos["b"].Y) {
		t.Errorf("TB layout should rank downward: %+v", pos)
	}
}

func TestLayout_DanglingEdgesDroppedBeforeRanking(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Edge into a node that doesn't exist must not affect placement.
	withDangling := e.Layout(
		services("a", "b"),
		[]topology.Dependency{dep("a", "b"), dep("a", "ghost"), dep("ghost", "b")},
	)
	without := e.Layout(
		services("a", "b"),
		[]topology.Dependency{dep("a", "b")},
	)
	if len(withDangling) != len(without) {
		t.Fatalf("node counts differ: %d vs %d", len(withDangling), len(without))
	}
	for i := range withDangling {
		if withDangling[i].Position != without[i].Position {
			t.Errorf("dangling edge influenced placement of %s", withDangling[i].Service.ID)
		}
	}
}

func TestPruneDangling(t *testing.T) {
	ids := map[string]bool{"a": true, "b": true}
	deps := []topology.Dependency{dep("a", "b"), dep("a", "x"), dep("y", "b")}
	pruned := PruneDangling(deps, ids)
	if len(pruned) != 1 || pruned[0] != dep("a", "b") {
		t.Fatalf("expected only a->b to survive, got %v", pruned)
	}
}

func TestLayout_CyclicDependenciesStillPlaced(t *testing.T) {
	e := NewEngine(DefaultConfig())
	nodes := e.Layout(
		services("a", "b", "c"),
		[]topology.Dependency{dep("a", "b"), dep("b", "c"), dep("c", "a")},
	)
	if len(nodes) != 3 {
		t.Fatalf("cycle dropped nodes: got %d", len(nodes))
	}
	assertFinite(t, nodes)
}

func TestLayout_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	svcs := services("z", "m", "a", "q")
	deps := []topology.Dependency{dep("a", "m"), dep("m", "z")}

	first := e.Layout(svcs, deps)
	second := e.Layout(svcs, deps)
	for i := range first {
		if first[i].Service.ID != second[i].Service.ID || first[i].Position != second[i].Position {
			t.Fatalf("layout not deterministic at index %d", i)
		}
	}
}

func TestLayout_GridFallbackIsFinite(t *testing.T) {
	e := NewEngine(DefaultConfig())
	nodes := e.layoutGrid(services("a", "b", "c", "d", "e"))
	if len(nodes) != 5 {
		t.Fatalf("grid dropped nodes: got %d", len(nodes))
	}
	assertFinite(t, nodes)

	seen := make(map[Position]bool)
	for _, n := range nodes {
		if seen[n.Position] {
			t.Errorf("grid placed two nodes at %+v", n.Position)
		}
		seen[n.Position] = true
	}
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/topolord/topolord/pkg/topology"
)

func newTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotCache(client, time.Minute)
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx); ok {
		t.Fatalf("expected miss on empty cache")
	}

	graph := &topology.Graph{
		Services: []topology.Service{
			{ID: "api", DisplayName: "API", IsManual: true},
			{ID: "db", DisplayName: "DB"},
		},
		Dependencies: []topology.Dependency{{SourceID: "api", TargetID: "db", Protocol: "tcp"}},
	}
	c.Set(ctx, graph)

	got, ok := c.Get(ctx)
	if !ok {
		t.Fatalf("expected hit after Set")
	}
	if len(got.Services) != 2 || len(got.Dependencies) != 1 {
		t.Fatalf("snapshot not round-tripped: %+v", got)
	}
	if got.Dependencies[0].Protocol != "tcp" {
		t.Errorf("protocol lost: %+v", got.Dependencies[0])
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, &topology.Graph{Services: []topology.Service{{ID: "a"}}})
	c.Invalidate(ctx)

	if _, ok := c.Get(ctx); ok {
		t.Fatalf("expected miss after invalidate")
	}

	v, err := c.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}

	c.Invalidate(ctx)
	v, _ = c.Version(ctx)
	if v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

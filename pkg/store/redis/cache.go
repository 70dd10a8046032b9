package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/topolord/topolord/pkg/topology"
)

const (
	snapshotKey = "topolord:graph:snapshot"
	versionKey  = "topolord:graph:version"
)

// SnapshotCache keeps the marshalled topology snapshot in redis so read
// replicas can serve GET /v1/topology without touching sqlite. Any topology
// mutation bumps the version and drops the snapshot.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a cache around an existing redis client.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Set stores the snapshot.
func (c *SnapshotCache) Set(ctx context.Context, graph *topology.Graph) {
	data, err := json.Marshal(graph)
	if err != nil {
		log.Printf("Failed to marshal graph snapshot: %v", err)
		return
	}
	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		log.Printf("Failed to SET key %s: %v", snapshotKey, err)
	}
}

// Get returns the cached snapshot, or (nil, false) on miss or error.
func (c *SnapshotCache) Get(ctx context.Context) (*topology.Graph, bool) {
	data, err := c.client.Get(ctx, snapshotKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to GET key %s: %v", snapshotKey, err)
		}
		return nil, false
	}
	var graph topology.Graph
	if err := json.Unmarshal([]byte(data), &graph); err != nil {
		log.Printf("Failed to unmarshal graph snapshot: %v", err)
		return nil, false
	}
	return &graph, true
}

// Invalidate drops the snapshot and bumps the version counter.
func (c *SnapshotCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil && err != redis.Nil {
		log.Printf("Failed to DEL key %s: %v", snapshotKey, err)
	}
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		log.Printf("Failed to INCR key %s: %v", versionKey, err)
	}
}

// Version returns the current invalidation counter, for diagnostics.
func (c *SnapshotCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	return v, nil
}

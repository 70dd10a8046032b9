package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"
)

// SnapshotFunc produces the export document to archive. The daemon wires
// this to the YAML export generator.
type SnapshotFunc func(ctx context.Context) (io.Reader, error)

// Archiver periodically writes topology exports to a BlobStore so the graph
// can be restored or diffed after an incident. Old snapshots beyond Keep are
// pruned after each successful write.
type Archiver struct {
	store    BlobStore
	source   SnapshotFunc
	prefix   string
	interval time.Duration
	keep     int
	now      func() time.Time
}

// NewArchiver creates an archiver that snapshots every interval and keeps
// the newest keep snapshots (0 means keep everything).
func NewArchiver(store BlobStore, source SnapshotFunc, interval time.Duration, keep int) *Archiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		store:    store,
		source:   source,
		prefix:   "snapshots/",
		interval: interval,
		keep:     keep,
		now:      time.Now,
	}
}

// Start runs the archive loop until the context is cancelled. The first
// snapshot is taken immediately.
func (a *Archiver) Start(ctx context.Context) {
	log.Printf("Snapshot archiver started (interval %s, keep %d)", a.interval, a.keep)
	if err := a.Snapshot(ctx); err != nil {
		log.Printf("Snapshot failed: %v", err)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot archiver stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := a.Snapshot(ctx); err != nil {
				log.Printf("Snapshot failed: %v", err)
			}
		}
	}
}

// Snapshot takes one snapshot and prunes old ones.
func (a *Archiver) Snapshot(ctx context.Context) error {
	key := a.prefix + "topology-" + a.now().UTC().Format("20060102T150405Z") + ".yaml"

	reader, err := a.source(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate snapshot: %w", err)
	}
	if err := a.store.Put(ctx, key, reader); err != nil {
		return fmt.Errorf("failed to archive snapshot %s: %w", key, err)
	}
	log.Printf("Archived topology snapshot %s", key)

	return a.prune(ctx)
}

// Latest returns the key of the newest snapshot, or ErrNotFound.
func (a *Archiver) Latest(ctx context.Context) (string, error) {
	keys, err := a.snapshotKeys(ctx)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", ErrNotFound
	}
	return keys[len(keys)-1], nil
}

func (a *Archiver) prune(ctx context.Context) error {
	if a.keep <= 0 {
		return nil
	}
	keys, err := a.snapshotKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) <= a.keep {
		return nil
	}
	for _, key := range keys[:len(keys)-a.keep] {
		if err := a.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to prune snapshot %s: %w", key, err)
		}
	}
	return nil
}

// snapshotKeys returns snapshot keys oldest first. The timestamped naming
// scheme makes lexical order chronological order.
func (a *Archiver) snapshotKeys(ctx context.Context) ([]string, error) {
	keys, err := a.store.List(ctx, strings.TrimSuffix(a.prefix, "/"))
	if err != nil {
		return nil, err
	}
	filtered := keys[:0]
	for _, key := range keys {
		if strings.HasPrefix(key, a.prefix+"topology-") {
			filtered = append(filtered, key)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalBlobStore(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	ctx := context.Background()

	key := "snapshots/topology-a.yaml"
	content := "services: []\n"
	if err := store.Put(ctx, key, strings.NewReader(content)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("failed to read blob: %v", err)
	}
	if string(data) != content {
		t.Errorf("content mismatch: got %q, want %q", string(data), content)
	}

	if err := store.Put(ctx, "snapshots/topology-b.yaml", strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	keys, err := store.List(ctx, "snapshots")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "snapshots/topology-a.yaml" {
		t.Errorf("unexpected listing: %v", keys)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, "snapshots/topology-b.yaml"); err != nil {
		t.Errorf("sibling blob should survive delete: %v", err)
	}
}

func TestLocalBlobStoreMissingPrefix(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())

	keys, err := store.List(context.Background(), "nope")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected empty listing, got %v", keys)
	}

	if err := store.Delete(context.Background(), "nope/key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: got %v, want ErrNotFound", err)
	}
}

func TestLocalBlobStorePutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalBlobStore(dir)

	if err := store.Put(context.Background(), "a.yaml", strings.NewReader("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".put-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "a.yaml")); err != nil {
		t.Errorf("blob missing on disk: %v", err)
	}
}

func TestArchiverSnapshotAndPrune(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	ctx := context.Background()

	calls := 0
	source := func(ctx context.Context) (io.Reader, error) {
		calls++
		return strings.NewReader("services: []\n"), nil
	}

	arch := NewArchiver(store, source, time.Hour, 2)

	// Distinct timestamps so each snapshot gets its own key.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		arch.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if err := arch.Snapshot(ctx); err != nil {
			t.Fatalf("Snapshot %d failed: %v", i, err)
		}
	}
	if calls != 4 {
		t.Errorf("source called %d times, want 4", calls)
	}

	keys, err := store.List(ctx, "snapshots")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("prune kept %d snapshots, want 2: %v", len(keys), keys)
	}

	latest, err := arch.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != keys[len(keys)-1] {
		t.Errorf("Latest returned %s, want %s", latest, keys[len(keys)-1])
	}
}

func TestArchiverLatestEmpty(t *testing.T) {
	arch := NewArchiver(NewLocalBlobStore(t.TempDir()), nil, time.Hour, 0)
	if _, err := arch.Latest(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest on empty store: got %v, want ErrNotFound", err)
	}
}

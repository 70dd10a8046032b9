package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/topolord/topolord/pkg/api"
	"github.com/topolord/topolord/pkg/blob"
	"github.com/topolord/topolord/pkg/client"
	"github.com/topolord/topolord/pkg/discovery"
	"github.com/topolord/topolord/pkg/reports"
	"github.com/topolord/topolord/pkg/store"
	"github.com/topolord/topolord/pkg/topology"
)

// TestTopologyFlow wires the real store, API server, discovery poller and
// snapshot archiver together and walks the dashboard's main path: discovery
// merges services, a user adds manual topology on top, groups it into an
// application, and the archiver captures a restorable snapshot.
func TestTopologyFlow(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "flow.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	srv := api.NewServer(st, ":0")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := client.NewClient(ts.URL)

	// Discovery populates the baseline.
	poller := discovery.NewPoller(st, time.Minute, "flow-test")
	poller.Register(discovery.NewMockProvider("mock"))
	poller.SetLeaseStore(st)
	poller.Sweep(ctx)

	graph, err := c.GetTopology(ctx)
	if err != nil {
		t.Fatalf("GetTopology failed: %v", err)
	}
	if len(graph.Services) != 2 {
		t.Fatalf("expected 2 discovered services, got %d", len(graph.Services))
	}

	// Discovered services reject edits through the API.
	_, err = c.UpdateService(ctx, "mock-web", client.ServiceRequest{ID: "mock-web", DisplayName: "renamed"})
	if !client.IsNotManual(err) {
		t.Fatalf("expected not_manual error, got %v", err)
	}

	// Manual topology layers on top.
	if _, err := c.CreateService(ctx, client.ServiceRequest{ID: "billing", DisplayName: "Billing", Team: "payments"}); err != nil {
		t.Fatalf("CreateService failed: %v", err)
	}
	if err := c.CreateDependency(ctx, client.DependencyRequest{SourceID: "billing", TargetID: "mock-db", Protocol: "tcp"}); err != nil {
		t.Fatalf("CreateDependency failed: %v", err)
	}

	app, err := c.CreateApplication(ctx, client.ApplicationRequest{Name: "Billing Stack", ServiceIDs: []string{"billing", "mock-db"}})
	if err != nil {
		t.Fatalf("CreateApplication failed: %v", err)
	}

	// Membership is visible on the services in the snapshot.
	graph, err = c.GetTopology(ctx)
	if err != nil {
		t.Fatalf("GetTopology failed: %v", err)
	}
	tagged := 0
	for _, svc := range graph.Services {
		for _, id := range svc.ApplicationIDs {
			if id == app.ID {
				tagged++
			}
		}
	}
	if tagged != 2 {
		t.Errorf("expected 2 services tagged with %s, got %d", app.ID, tagged)
	}

	// The archiver captures a snapshot that re-imports cleanly.
	gen, err := reports.NewExportGenerator(reports.ExportFormatYAML, st)
	if err != nil {
		t.Fatalf("NewExportGenerator failed: %v", err)
	}
	blobDir := t.TempDir()
	arch := blob.NewArchiver(blob.NewLocalBlobStore(blobDir), func(ctx context.Context) (io.Reader, error) {
		return gen.Generate(ctx, reports.ExportParams{})
	}, time.Hour, 5)
	if err := arch.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	key, err := arch.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	reader, err := blob.NewLocalBlobStore(blobDir).Get(ctx, key)
	if err != nil {
		t.Fatalf("Get snapshot failed: %v", err)
	}
	snapshot, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if !strings.Contains(string(snapshot), "billing") {
		t.Errorf("snapshot missing manual service:\n%s", snapshot)
	}

	result, err := c.Import(ctx, "yaml", snapshot)
	if err != nil {
		t.Fatalf("re-import of snapshot failed: %v", err)
	}
	if result.Format != "yaml" {
		t.Errorf("unexpected import format: %s", result.Format)
	}
}

// TestLayoutQueryIsStable fetches the placed snapshot twice and checks the
// positions did not move between identical requests.
func TestLayoutQueryIsStable(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "layout.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	srv := api.NewServer(st, ":0")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	seed := []topology.Service{
		{ID: "gw", DisplayName: "gw", IsManual: true},
		{ID: "api", DisplayName: "api", IsManual: true},
		{ID: "db", DisplayName: "db", IsManual: true},
	}
	for _, svc := range seed {
		if err := st.CreateService(ctx, svc); err != nil {
			t.Fatalf("CreateService failed: %v", err)
		}
	}

	fetch := func() map[string][2]float64 {
		resp, err := http.Get(ts.URL + "/v1/topology?layout=1")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		defer resp.Body.Close()
		var body struct {
			Nodes []struct {
				Service  topology.Service `json:"service"`
				Position struct {
					X float64 `json:"x"`
					Y float64 `json:"y"`
				} `json:"position"`
			} `json:"nodes"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		out := make(map[string][2]float64)
		for _, n := range body.Nodes {
			out[n.Service.ID] = [2]float64{n.Position.X, n.Position.Y}
		}
		return out
	}

	first := fetch()
	second := fetch()
	if len(first) != 3 {
		t.Fatalf("expected 3 placed nodes, got %d", len(first))
	}
	for id, pos := range first {
		if second[id] != pos {
			t.Errorf("node %s moved between identical fetches: %v -> %v", id, pos, second[id])
		}
	}
}

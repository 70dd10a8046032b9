package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// fakeDaemon serves just enough of the REST surface for sync tests and
// counts snapshot fetches so the tests can assert cache behavior.
type fakeDaemon struct {
	topologyGets int32
	appGets      int32
	failUpdates  bool
}

func (f *fakeDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/topology", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.topologyGets, 1)
		json.NewEncoder(w).Encode(topology.Graph{
			Services: []topology.Service{
				{ID: "web", DisplayName: "web", IsManual: true},
				{ID: "db", DisplayName: "db", IsManual: true},
				{ID: "cache", DisplayName: "cache", IsManual: true},
			},
			Dependencies: []topology.Dependency{
				{SourceID: "web", TargetID: "db"},
			},
		})
	})
	mux.HandleFunc("/v1/topology/applications", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&f.appGets, 1)
			json.NewEncoder(w).Encode([]topology.Application{})
		case http.MethodPost:
			var req ApplicationRequest
			json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(topology.Application{
				ID:         "app-1",
				Name:       req.Name,
				ServiceIDs: req.ServiceIDs,
			})
		}
	})
	mux.HandleFunc("/v1/topology/applications/", func(w http.ResponseWriter, r *http.Request) {
		if f.failUpdates {
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(topology.Application{ID: "app-1"})
	})
	return mux
}

func newTestSync(t *testing.T, daemon *fakeDaemon) *Sync {
	t.Helper()
	server := httptest.NewServer(daemon.handler())
	t.Cleanup(server.Close)
	return NewSync(NewClient(server.URL), time.Minute)
}

func appIDsOf(t *testing.T, graph *topology.Graph, serviceID string) []string {
	t.Helper()
	for _, svc := range graph.Services {
		if svc.ID == serviceID {
			return svc.ApplicationIDs
		}
	}
	t.Fatalf("service %s not in snapshot", serviceID)
	return nil
}

func TestCreateApplicationUpdatesBothResources(t *testing.T) {
	daemon := &fakeDaemon{}
	s := newTestSync(t, daemon)
	ctx := context.Background()

	if _, err := s.Topology(ctx); err != nil {
		t.Fatalf("Topology failed: %v", err)
	}
	if _, err := s.Applications(ctx); err != nil {
		t.Fatalf("Applications failed: %v", err)
	}

	app, err := s.CreateApplication(ctx, ApplicationRequest{
		Name:       "checkout",
		ServiceIDs: []string{"web", "db"},
	})
	if err != nil {
		t.Fatalf("CreateApplication failed: %v", err)
	}
	if app.ID != "app-1" {
		t.Fatalf("expected server id, got %s", app.ID)
	}

	// Both cached resources reflect the creation without any refetch.
	apps, err := s.Applications(ctx)
	if err != nil {
		t.Fatalf("Applications failed: %v", err)
	}
	if len(apps) != 1 || apps[0].ID != "app-1" {
		t.Fatalf("application list not updated: %+v", apps)
	}

	graph, err := s.Topology(ctx)
	if err != nil {
		t.Fatalf("Topology failed: %v", err)
	}
	for _, id := range []string{"web", "db"} {
		got := appIDsOf(t, graph, id)
		if len(got) != 1 || got[0] != "app-1" {
			t.Errorf("service %s badge not patched: %v", id, got)
		}
	}
	if got := appIDsOf(t, graph, "cache"); len(got) != 0 {
		t.Errorf("non-member gained membership: %v", got)
	}

	if n := atomic.LoadInt32(&daemon.topologyGets); n != 1 {
		t.Errorf("expected no topology refetch, got %d fetches", n)
	}
	if n := atomic.LoadInt32(&daemon.appGets); n != 1 {
		t.Errorf("expected no applications refetch, got %d fetches", n)
	}
}

func TestFailedUpdateRollsBackAndNotifiesOnce(t *testing.T) {
	daemon := &fakeDaemon{}
	s := newTestSync(t, daemon)
	ctx := context.Background()

	if _, err := s.Topology(ctx); err != nil {
		t.Fatalf("Topology failed: %v", err)
	}
	if _, err := s.Applications(ctx); err != nil {
		t.Fatalf("Applications failed: %v", err)
	}
	if _, err := s.CreateApplication(ctx, ApplicationRequest{
		Name: "checkout", ServiceIDs: []string{"web"},
	}); err != nil {
		t.Fatalf("CreateApplication failed: %v", err)
	}

	var notifications int32
	s.SetNotifier(NotifierFunc(func(op string, err error) {
		atomic.AddInt32(&notifications, 1)
		if op != "update_application" {
			t.Errorf("unexpected op: %s", op)
		}
	}))

	daemon.failUpdates = true
	_, err := s.UpdateApplication(ctx, "app-1", ApplicationRequest{
		Name: "checkout", ServiceIDs: []string{"web", "db", "cache"},
	})
	if err == nil {
		t.Fatal("expected error from failed update")
	}

	// Rolled back: membership is exactly what the create left behind.
	graph, _ := s.Topology(ctx)
	if got := appIDsOf(t, graph, "web"); len(got) != 1 || got[0] != "app-1" {
		t.Errorf("web membership corrupted by rollback: %v", got)
	}
	for _, id := range []string{"db", "cache"} {
		if got := appIDsOf(t, graph, id); len(got) != 0 {
			t.Errorf("service %s kept optimistic membership after rollback: %v", id, got)
		}
	}
	apps, _ := s.Applications(ctx)
	if len(apps) != 1 || len(apps[0].ServiceIDs) != 1 {
		t.Errorf("application list not rolled back: %+v", apps)
	}

	if n := atomic.LoadInt32(&notifications); n != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", n)
	}
}

func TestDeleteServicesKeepsDiscoveredNodes(t *testing.T) {
	daemon := &fakeDaemon{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/topology":
			json.NewEncoder(w).Encode(topology.Graph{
				Services: []topology.Service{
					{ID: "manual", IsManual: true},
					{ID: "discovered", IsManual: false, SourceProvider: "nmap"},
				},
			})
		case "/v1/topology/services":
			json.NewEncoder(w).Encode(map[string]int64{"deleted": 1})
		default:
			daemon.handler().ServeHTTP(w, r)
		}
	}))
	t.Cleanup(server.Close)
	s := NewSync(NewClient(server.URL), time.Minute)
	ctx := context.Background()

	if _, err := s.Topology(ctx); err != nil {
		t.Fatalf("Topology failed: %v", err)
	}
	if err := s.DeleteServices(ctx, []string{"manual", "discovered"}); err != nil {
		t.Fatalf("DeleteServices failed: %v", err)
	}

	graph, _ := s.Topology(ctx)
	if len(graph.Services) != 1 || graph.Services[0].ID != "discovered" {
		t.Fatalf("optimistic delete should keep discovered services: %+v", graph.Services)
	}
}

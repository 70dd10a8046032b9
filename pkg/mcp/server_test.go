package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

// newMockAPI serves just enough of the topolord API for the MCP handlers.
func newMockAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/topology", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"services": []map[string]interface{}{
				{"id": "api", "display_name": "API", "is_manual": true},
				{"id": "db", "display_name": "DB", "is_manual": false, "source_provider": "scanner"},
			},
			"dependencies": []map[string]interface{}{
				{"source_id": "api", "target_id": "db", "protocol": "tcp"},
			},
		})
	})

	mux.HandleFunc("/v1/topology/applications", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req map[string]interface{}
			json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":          "app-1",
				"name":        req["name"],
				"service_ids": req["service_ids"],
			})
			return
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "app-1", "name": "Checkout", "service_ids": []string{"api"}},
		})
	})

	mux.HandleFunc("/v1/topology/service", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           req["id"],
			"display_name": req["display_name"],
			"is_manual":    true,
		})
	})

	mux.HandleFunc("/v1/topology/dependency", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["target_id"] == "db" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "not_manual"})
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("/v1/topology/import", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"format":             "csv",
			"services_added":     2,
			"dependencies_added": 1,
		})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return tc.Text
}

func TestReadTopologyResource(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: "topology://graph",
		},
	}

	contents, err := s.handleReadTopology(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadTopology failed: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(contents))
	}

	text := contents[0].(mcp.TextResourceContents)
	if text.MIMEType != "application/json" {
		t.Errorf("unexpected MIME type: %s", text.MIMEType)
	}
	if !strings.Contains(text.Text, `"api"`) || !strings.Contains(text.Text, `"scanner"`) {
		t.Errorf("topology payload missing services: %s", text.Text)
	}
}

func TestReadApplicationsResource(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: "topology://applications",
		},
	}

	contents, err := s.handleReadApplications(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadApplications failed: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if !strings.Contains(text.Text, "Checkout") {
		t.Errorf("applications payload missing app: %s", text.Text)
	}
}

func TestAddServiceTool(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "add_service",
			Arguments: map[string]interface{}{
				"id":   "payments-api",
				"team": "payments",
			},
		},
	}

	result, err := s.handleAddService(context.Background(), req)
	if err != nil {
		t.Fatalf("handleAddService failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %s", textContent(t, result))
	}
	if got := textContent(t, result); !strings.Contains(got, "payments-api") {
		t.Errorf("unexpected result text: %s", got)
	}
}

func TestAddDependencyToolNotManual(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "add_dependency",
			Arguments: map[string]interface{}{
				"source_id": "api",
				"target_id": "db",
			},
		},
	}

	result, err := s.handleAddDependency(context.Background(), req)
	if err != nil {
		t.Fatalf("handleAddDependency failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for discovered endpoint")
	}
	if got := textContent(t, result); !strings.Contains(got, "provider-discovered") {
		t.Errorf("unexpected error text: %s", got)
	}
}

func TestCreateApplicationTool(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "create_application",
			Arguments: map[string]interface{}{
				"name":        "Checkout",
				"service_ids": "api, web",
			},
		},
	}

	result, err := s.handleCreateApplication(context.Background(), req)
	if err != nil {
		t.Fatalf("handleCreateApplication failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %s", textContent(t, result))
	}
	if got := textContent(t, result); !strings.Contains(got, "app-1") || !strings.Contains(got, "2 services") {
		t.Errorf("unexpected result text: %s", got)
	}
}

func TestImportTopologyTool(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "import_topology",
			Arguments: map[string]interface{}{
				"content": "source,target,protocol\nweb,db,tcp\n",
			},
		},
	}

	result, err := s.handleImportTopology(context.Background(), req)
	if err != nil {
		t.Fatalf("handleImportTopology failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %s", textContent(t, result))
	}
	if got := textContent(t, result); !strings.Contains(got, "2 services") || !strings.Contains(got, "csv") {
		t.Errorf("unexpected result text: %s", got)
	}
}

func TestTopologyPrompt(t *testing.T) {
	ts := newMockAPI(t)
	s := NewServer(ts.URL)

	req := mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{
			Name: "topolord-aware",
		},
	}

	result, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("expected 1 prompt message, got %d", len(result.Messages))
	}

	req.Params.Name = "missing"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Fatal("expected error for unknown prompt")
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"a,b,c", 3},
		{" a , b ", 2},
		{"", 0},
		{",,", 0},
	}
	for _, tc := range cases {
		if got := splitCSV(tc.in); len(got) != tc.want {
			t.Errorf("splitCSV(%q) = %v, want %d parts", tc.in, got, tc.want)
		}
	}
}

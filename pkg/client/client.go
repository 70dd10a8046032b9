package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// Client is the topolord SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new topolord client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// GetTopology fetches the full graph snapshot.
func (c *Client) GetTopology(ctx context.Context) (*topology.Graph, error) {
	var graph topology.Graph
	if err := c.doJSON(ctx, http.MethodGet, "/v1/topology", nil, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

// GetApplications lists all applications.
func (c *Client) GetApplications(ctx context.Context) ([]topology.Application, error) {
	var apps []topology.Application
	if err := c.doJSON(ctx, http.MethodGet, "/v1/topology/applications", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// CreateService creates a manual service.
func (c *Client) CreateService(ctx context.Context, req ServiceRequest) (*topology.Service, error) {
	var svc topology.Service
	if err := c.doJSON(ctx, http.MethodPost, "/v1/topology/service", req, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// UpdateService updates a manual service.
func (c *Client) UpdateService(ctx context.Context, id string, req ServiceRequest) (*topology.Service, error) {
	var svc topology.Service
	if err := c.doJSON(ctx, http.MethodPut, "/v1/topology/service/"+url.PathEscape(id), req, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// DeleteServices bulk-deletes manual services and returns the deleted count.
func (c *Client) DeleteServices(ctx context.Context, ids []string) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	body := map[string][]string{"ids": ids}
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/topology/services", body, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// CreateDependency creates an edge between two manual services.
func (c *Client) CreateDependency(ctx context.Context, req DependencyRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/topology/dependency", req, nil)
}

// DeleteDependency removes an edge.
func (c *Client) DeleteDependency(ctx context.Context, sourceID, targetID string) error {
	req := DependencyRequest{SourceID: sourceID, TargetID: targetID}
	return c.doJSON(ctx, http.MethodDelete, "/v1/topology/dependency", req, nil)
}

// CreateApplication creates an application grouping.
func (c *Client) CreateApplication(ctx context.Context, req ApplicationRequest) (*topology.Application, error) {
	var app topology.Application
	if err := c.doJSON(ctx, http.MethodPost, "/v1/topology/applications", req, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateApplication replaces an application's name, description and members.
func (c *Client) UpdateApplication(ctx context.Context, id string, req ApplicationRequest) (*topology.Application, error) {
	var app topology.Application
	if err := c.doJSON(ctx, http.MethodPut, "/v1/topology/applications/"+url.PathEscape(id), req, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// DeleteApplication removes an application.
func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/topology/applications/"+url.PathEscape(id), nil, nil)
}

// GetSettings fetches the persisted topology settings.
func (c *Client) GetSettings(ctx context.Context) (topology.Settings, error) {
	var settings topology.Settings
	if err := c.doJSON(ctx, http.MethodGet, "/v1/topology/settings", nil, &settings); err != nil {
		return topology.Settings{}, err
	}
	return settings, nil
}

// PutSettings replaces the persisted topology settings.
func (c *Client) PutSettings(ctx context.Context, settings topology.Settings) error {
	return c.doJSON(ctx, http.MethodPut, "/v1/topology/settings", settings, nil)
}

// Import uploads a CSV or YAML topology document. format may be empty to
// let the daemon sniff it.
func (c *Client) Import(ctx context.Context, format string, payload []byte) (*ImportResult, error) {
	path := "/v1/topology/import"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode import result: %w", err)
	}
	return &result, nil
}

// Export downloads the topology document in the requested format
// ("yaml" or "csv"; empty means yaml).
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	path := "/v1/topology/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// GetAlerts lists the alerts attached to an incident.
func (c *Client) GetAlerts(ctx context.Context, incidentID string) ([]Alert, error) {
	var alerts []Alert
	path := "/v1/incidents/" + url.PathEscape(incidentID) + "/alerts"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetComments lists the comments on an incident, oldest first.
func (c *Client) GetComments(ctx context.Context, incidentID string) ([]Comment, error) {
	var comments []Comment
	path := "/v1/incidents/" + url.PathEscape(incidentID) + "/comments"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment posts a comment on an incident.
func (c *Client) AddComment(ctx context.Context, incidentID string, req CommentRequest) (*Comment, error) {
	var comment Comment
	path := "/v1/incidents/" + url.PathEscape(incidentID) + "/comments"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetAudit lists the activity feed entries for an incident, newest first.
func (c *Client) GetAudit(ctx context.Context, incidentID string) ([]AuditEvent, error) {
	var events []AuditEvent
	path := "/v1/incidents/" + url.PathEscape(incidentID) + "/audit"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// doJSON issues one request with a JSON body and decodes a JSON response.
// Mutations are never retried; a failure surfaces to the caller unchanged.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		json.Unmarshal(data, apiErr)
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

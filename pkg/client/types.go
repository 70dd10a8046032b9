package client

import (
	"fmt"
	"time"
)

// ServiceRequest is the create/update body for a manual service.
type ServiceRequest struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Team        string            `json:"team,omitempty"`
	Email       string            `json:"email,omitempty"`
	IPAddress   string            `json:"ip_address,omitempty"`
	MACAddress  string            `json:"mac_address,omitempty"`
	Category    string            `json:"category,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// DependencyRequest is the create/delete body for an edge.
type DependencyRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Protocol string `json:"protocol,omitempty"`
}

// ApplicationRequest is the create/update body for an application.
type ApplicationRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ServiceIDs  []string `json:"service_ids"`
}

// ImportResult reports what an import added.
type ImportResult struct {
	Format       string `json:"format"`
	Services     int    `json:"services_added"`
	Dependencies int    `json:"dependencies_added"`
}

// CommentRequest is the body for posting an incident comment.
type CommentRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Status represents the health check response.
type Status struct {
	Status string `json:"status"`
}

// Alert is one alert row attached to an incident.
type Alert struct {
	ID          string    `json:"id"`
	IncidentID  string    `json:"incident_id"`
	ServiceID   string    `json:"service_id,omitempty"`
	Name        string    `json:"name"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a user note on an incident.
type Comment struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEvent is one entry of an incident's activity feed.
type AuditEvent struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	EntityID   string    `json:"entity_id,omitempty"`
	IncidentID string    `json:"incident_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// APIError carries the daemon's error code and HTTP status.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Code)
}

// IsNotManual reports whether the error is the daemon refusing to edit a
// provider-discovered entity.
func IsNotManual(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == "not_manual"
}

// IsNotFound reports whether the error is a 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 404
}

// IsConflict reports whether the error is a 409 for an entity that already
// exists.
func IsConflict(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 409
}

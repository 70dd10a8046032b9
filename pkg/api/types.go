package api

import (
	"github.com/topolord/topolord/pkg/layout"
	"github.com/topolord/topolord/pkg/topology"
)

// GraphResponse is the GET /v1/topology payload. Nodes carry positions and
// is only present when the caller asked for a layout.
type GraphResponse struct {
	Services     []topology.Service     `json:"services"`
	Dependencies []topology.Dependency  `json:"dependencies"`
	Applications []topology.Application `json:"applications,omitempty"`
	Nodes        []layout.Node          `json:"nodes,omitempty"`
}

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

// DeleteServicesRequest is the bulk delete body.
type DeleteServicesRequest struct {
	IDs []string `json:"ids"`
}

// DeleteServicesResponse reports how many services were actually removed.
type DeleteServicesResponse struct {
	Deleted int64 `json:"deleted"`
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

// ImportResponse reports what an import added.
type ImportResponse struct {
	Format       string `json:"format"`
	Services     int    `json:"services_added"`
	Dependencies int    `json:"dependencies_added"`
}

// CommentRequest is the body for posting an incident comment.
type CommentRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

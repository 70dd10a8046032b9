package topology

import "time"

// ServiceSource describes how a service entered the topology.
type ServiceSource string

const (
	SourceManual     ServiceSource = "manual"
	SourceDiscovered ServiceSource = "discovered"
)

// Service represents a monitored component in the user's infrastructure,
// either discovered by a provider integration or created manually.
type Service struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"display_name"`
	Team           string            `json:"team,omitempty"`
	Email          string            `json:"email,omitempty"`
	IPAddress      string            `json:"ip_address,omitempty"`
	MACAddress     string            `json:"mac_address,omitempty"`
	Category       string            `json:"category,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	ApplicationIDs []string          `json:"application_ids,omitempty"`
	IsManual       bool              `json:"is_manual"`
	SourceProvider string            `json:"source_provider,omitempty"`
	CreatedAt      time.Time         `json:"created_at,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at,omitempty"`
}

// Dependency is a directed edge meaning the source service calls or
// depends on the target service.
type Dependency struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Protocol string `json:"protocol,omitempty"`
}

// Application is a user-defined named grouping of services.
type Application struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ServiceIDs  []string  `json:"service_ids"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Settings holds the persisted topology view configuration.
type Settings struct {
	LayoutDirection  string `json:"layout_direction"` // "LR" or "TB"
	NodeSep          int    `json:"node_sep"`
	RankSep          int    `json:"rank_sep"`
	DiscoveryEnabled bool   `json:"discovery_enabled"`
	RekeyOnEdges     bool   `json:"layout_rekey_on_edges"`
}

// DefaultSettings returns the settings applied to a fresh install.
func DefaultSettings() Settings {
	return Settings{
		LayoutDirection:  "LR",
		NodeSep:          60,
		RankSep:          160,
		DiscoveryEnabled: true,
	}
}

// Graph is the canonical topology snapshot served to clients.
type Graph struct {
	Services     []Service     `json:"services"`
	Dependencies []Dependency  `json:"dependencies"`
	Applications []Application `json:"applications,omitempty"`
}

// ServiceIndex builds a lookup from id to service for edge validation.
func (g *Graph) ServiceIndex() map[string]*Service {
	idx := make(map[string]*Service, len(g.Services))
	for i := range g.Services {
		idx[g.Services[i].ID] = &g.Services[i]
	}
	return idx
}

// HasService reports whether the snapshot contains the given service id.
func (g *Graph) HasService(id string) bool {
	for i := range g.Services {
		if g.Services[i].ID == id {
			return true
		}
	}
	return false
}

// EdgeEditable reports whether an edge may be edited by the user. Only
// edges connecting two manual services are editable; provider-discovered
// relationships are owned by the integration that reported them.
func EdgeEditable(idx map[string]*Service, dep Dependency) bool {
	src, ok := idx[dep.SourceID]
	if !ok || !src.IsManual {
		return false
	}
	dst, ok := idx[dep.TargetID]
	if !ok || !dst.IsManual {
		return false
	}
	return true
}

package store

import (
	"context"
	"time"
)

// Lease represents a distributed lock claim, used to gate discovery polling
// to a single daemon instance.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"` // For CAS (Compare-And-Swap) logic
}

// LeaseStore defines the interface for acquiring and renewing leases.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns error if the lease is lost or stolen.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease state.
	Get(ctx context.Context, name string) (*Lease, error)
}

// AuditAction identifies the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditServiceCreated     AuditAction = "service_created"
	AuditServiceUpdated     AuditAction = "service_updated"
	AuditServiceDeleted     AuditAction = "service_deleted"
	AuditDependencyCreated  AuditAction = "dependency_created"
	AuditDependencyDeleted  AuditAction = "dependency_deleted"
	AuditApplicationCreated AuditAction = "application_created"
	AuditApplicationUpdated AuditAction = "application_updated"
	AuditApplicationDeleted AuditAction = "application_deleted"
	AuditTopologyImported   AuditAction = "topology_imported"
	AuditSettingsUpdated    AuditAction = "settings_updated"
	AuditDiscoveryMerged    AuditAction = "discovery_merged"
	AuditCommentAdded       AuditAction = "comment_added"
)

// AuditEvent is one entry in the mutation history. Entries carrying an
// incident id surface in that incident's activity feed.
type AuditEvent struct {
	ID         string      `json:"id"`
	Action     AuditAction `json:"action"`
	Actor      string      `json:"actor"` // "api", "discovery:<provider>", "import"
	EntityID   string      `json:"entity_id,omitempty"`
	IncidentID string      `json:"incident_id,omitempty"`
	Detail     string      `json:"detail,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// AuditFilter narrows audit queries.
type AuditFilter struct {
	IncidentID string
	Action     AuditAction
	Limit      int
}

// Incident is the minimal incident record backing the detail page
// sub-resources. Incident lifecycle itself is owned by the upstream system;
// the daemon only stores what its own surface serves.
type Incident struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is a read-mostly alert row attached to an incident.
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

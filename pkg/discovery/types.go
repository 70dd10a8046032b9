package discovery

import (
	"context"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// ProviderID identifies a specific discovery integration (e.g. "nmap",
// "static", "mock").
type ProviderID string

// Result contains the services and edges one provider observed in a single
// sweep. The merge treats the result as authoritative for that provider:
// services it reported before but no longer reports are removed, unless an
// application pins them.
type Result struct {
	ProviderID ProviderID
	Timestamp  time.Time

	Services     []topology.Service
	Dependencies []topology.Dependency
}

// Provider defines the interface for external topology sources.
type Provider interface {
	// ID returns the unique identifier for this provider
	ID() ProviderID

	// Discover retrieves the currently visible services and dependencies
	Discover(ctx context.Context) (Result, error)
}

package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// MockProvider serves a fixed in-memory inventory, mutable between sweeps.
// Used in tests and for local development without a real scanner.
type MockProvider struct {
	id  ProviderID
	mu  sync.Mutex
	inv Result
}

// NewMockProvider creates a mock provider with a small default inventory.
func NewMockProvider(id string) *MockProvider {
	return &MockProvider{
		id: ProviderID(id),
		inv: Result{
			Services: []topology.Service{
				{ID: "mock-web", DisplayName: "mock-web", Category: "http"},
				{ID: "mock-db", DisplayName: "mock-db", Category: "database"},
			},
			Dependencies: []topology.Dependency{
				{SourceID: "mock-web", TargetID: "mock-db", Protocol: "tcp"},
			},
		},
	}
}

// SetInventory replaces what the next sweep will report.
func (p *MockProvider) SetInventory(services []topology.Service, deps []topology.Dependency) {
	p.mu.Lock()
	p.inv = Result{Services: services, Dependencies: deps}
	p.mu.Unlock()
}

func (p *MockProvider) ID() ProviderID {
	return p.id
}

func (p *MockProvider) Discover(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{ProviderID: p.id}, ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	result := Result{
		ProviderID:   p.id,
		Timestamp:    time.Now(),
		Services:     make([]topology.Service, len(p.inv.Services)),
		Dependencies: make([]topology.Dependency, len(p.inv.Dependencies)),
	}
	copy(result.Services, p.inv.Services)
	copy(result.Dependencies, p.inv.Dependencies)
	return result, nil
}

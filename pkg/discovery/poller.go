package discovery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/topolord/topolord/pkg/store"
	"github.com/topolord/topolord/pkg/topology"
)

const leaseName = "discovery"

// Store is the persistence surface the poller needs.
type Store interface {
	MergeDiscovery(ctx context.Context, provider string, services []topology.Service, deps []topology.Dependency) error
	AppendAudit(ctx context.Context, evt store.AuditEvent) error
	GetSettings(ctx context.Context) (topology.Settings, error)
}

// CacheInvalidator drops cached topology snapshots. Merges mutate the
// topology the same as API writes do, so they invalidate the same cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Poller runs the discovery loop. When a lease store is configured only the
// lease holder sweeps, so multiple daemons sharing a database do not race
// each other's merges.
type Poller struct {
	store     Store
	leases    store.LeaseStore
	cache     CacheInvalidator
	holderID  string
	providers []Provider
	interval  time.Duration
	mu        sync.RWMutex
}

// NewPoller creates a new poller instance.
func NewPoller(st Store, interval time.Duration, holderID string) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		store:     st,
		providers: make([]Provider, 0),
		interval:  interval,
		holderID:  holderID,
	}
}

// SetLeaseStore enables lease-gated sweeping.
func (p *Poller) SetLeaseStore(ls store.LeaseStore) {
	p.leases = ls
}

// SetCacheInvalidator makes successful merges drop the snapshot cache.
func (p *Poller) SetCacheInvalidator(c CacheInvalidator) {
	p.cache = c
}

// Register adds a provider to the poller.
func (p *Poller) Register(prov Provider) {
	p.mu.Lock()
	p.providers = append(p.providers, prov)
	p.mu.Unlock()
}

// GetProvider returns a registered provider by ID (helper for testing/debugging).
func (p *Poller) GetProvider(id ProviderID) Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, prov := range p.providers {
		if prov.ID() == id {
			return prov
		}
	}
	return nil
}

// Start begins the polling loop in a background goroutine. It sweeps once
// immediately so a fresh daemon has topology before the first tick.
func (p *Poller) Start(ctx context.Context) {
	log.Println("Discovery poller started")
	p.Sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Discovery poller stopping due to context cancellation")
			p.releaseLease()
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs every provider once, if discovery is enabled and we hold the
// lease.
func (p *Poller) Sweep(ctx context.Context) {
	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		log.Printf("Failed to read settings, skipping sweep: %v", err)
		return
	}
	if !settings.DiscoveryEnabled {
		return
	}

	if p.leases != nil {
		ok, err := p.leases.Acquire(ctx, leaseName, p.holderID, 2*p.interval)
		if err != nil {
			log.Printf("Lease acquire failed: %v", err)
			return
		}
		if !ok {
			return
		}
	}

	p.mu.RLock()
	providers := make([]Provider, len(p.providers))
	copy(providers, p.providers)
	p.mu.RUnlock()

	for _, prov := range providers {
		p.poll(ctx, prov)
	}
}

// poll performs a single sweep of one provider and merges the result.
func (p *Poller) poll(ctx context.Context, prov Provider) {
	result, err := prov.Discover(ctx)
	if err != nil {
		log.Printf("Discovery failed for provider %s: %v", prov.ID(), err)
		PollsTotal.WithLabelValues(string(prov.ID()), "error").Inc()
		return
	}

	// Stamp ownership before the merge so stale-service cleanup can tell
	// this provider's services apart.
	for i := range result.Services {
		result.Services[i].SourceProvider = string(prov.ID())
		result.Services[i].IsManual = false
	}

	if err := p.store.MergeDiscovery(ctx, string(prov.ID()), result.Services, result.Dependencies); err != nil {
		log.Printf("Merge failed for provider %s: %v", prov.ID(), err)
		PollsTotal.WithLabelValues(string(prov.ID()), "merge_error").Inc()
		return
	}

	if p.cache != nil {
		p.cache.Invalidate(ctx)
	}

	PollsTotal.WithLabelValues(string(prov.ID()), "success").Inc()
	ServicesDiscovered.WithLabelValues(string(prov.ID())).Set(float64(len(result.Services)))

	if err := p.store.AppendAudit(ctx, store.AuditEvent{
		Action: store.AuditDiscoveryMerged,
		Actor:  "discovery:" + string(prov.ID()),
		Detail: fmt.Sprintf("%d services, %d dependencies", len(result.Services), len(result.Dependencies)),
	}); err != nil {
		log.Printf("Failed to append audit event: %v", err)
	}
}

func (p *Poller) releaseLease() {
	if p.leases == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.leases.Release(ctx, leaseName, p.holderID); err != nil {
		log.Printf("Failed to release discovery lease: %v", err)
	}
}

package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// Sync layers the optimistic cache over the raw REST client. The dashboard
// reads through Topology/Applications and mutates through the typed methods
// below; every mutation keeps the two cached resources consistent, so an
// application change is visible on topology node badges without a refetch.
type Sync struct {
	api   *Client
	cache *Cache
}

// NewSync wraps a client with a cache using the given TTL.
func NewSync(api *Client, ttl time.Duration) *Sync {
	return &Sync{api: api, cache: NewCache(ttl)}
}

// SetNotifier registers the mutation failure sink.
func (s *Sync) SetNotifier(n Notifier) {
	s.cache.SetNotifier(n)
}

// Topology returns the cached graph snapshot.
func (s *Sync) Topology(ctx context.Context) (*topology.Graph, error) {
	data, err := s.cache.Get(ctx, KeyTopology, func(ctx context.Context) (interface{}, error) {
		return s.api.GetTopology(ctx)
	})
	if err != nil {
		return nil, err
	}
	return data.(*topology.Graph), nil
}

// Applications returns the cached application list.
func (s *Sync) Applications(ctx context.Context) ([]topology.Application, error) {
	data, err := s.cache.Get(ctx, KeyApplications, func(ctx context.Context) (interface{}, error) {
		return s.api.GetApplications(ctx)
	})
	if err != nil {
		return nil, err
	}
	return data.([]topology.Application), nil
}

// CreateApplication optimistically inserts the application under a
// placeholder id, patches member services' application_ids, then swaps in
// the server-assigned id once the POST succeeds.
func (s *Sync) CreateApplication(ctx context.Context, req ApplicationRequest) (*topology.Application, error) {
	tempID := "pending-" + randHex(8)
	optimistic := topology.Application{
		ID:          tempID,
		Name:        req.Name,
		Description: req.Description,
		ServiceIDs:  req.ServiceIDs,
	}

	var created *topology.Application
	err := s.cache.Mutate(ctx, "create_application", []string{KeyApplications, KeyTopology},
		func(key string, data interface{}) interface{} {
			switch key {
			case KeyApplications:
				apps := data.([]topology.Application)
				next := make([]topology.Application, len(apps), len(apps)+1)
				copy(next, apps)
				return append(next, optimistic)
			case KeyTopology:
				return patchMembership(data.(*topology.Graph), tempID, req.ServiceIDs, nil)
			}
			return data
		},
		func(ctx context.Context) error {
			app, err := s.api.CreateApplication(ctx, req)
			created = app
			return err
		})
	if err != nil {
		return nil, err
	}

	// Fold the real id into the placeholder.
	s.cache.Patch(KeyApplications, func(data interface{}) interface{} {
		apps := data.([]topology.Application)
		next := make([]topology.Application, len(apps))
		copy(next, apps)
		for i := range next {
			if next[i].ID == tempID {
				next[i] = *created
			}
		}
		return next
	})
	s.cache.Patch(KeyTopology, func(data interface{}) interface{} {
		graph := data.(*topology.Graph)
		next := patchMembership(graph, created.ID, created.ServiceIDs, nil)
		return patchMembership(next, "", nil, []string{tempID})
	})
	return created, nil
}

// UpdateApplication replaces name, description and membership, patching
// cached topology nodes in both directions: services joining the
// application gain its id, services leaving it lose it.
func (s *Sync) UpdateApplication(ctx context.Context, id string, req ApplicationRequest) (*topology.Application, error) {
	var updated *topology.Application
	err := s.cache.Mutate(ctx, "update_application", []string{KeyApplications, KeyTopology},
		func(key string, data interface{}) interface{} {
			switch key {
			case KeyApplications:
				apps := data.([]topology.Application)
				next := make([]topology.Application, len(apps))
				copy(next, apps)
				for i := range next {
					if next[i].ID == id {
						next[i].Name = req.Name
						next[i].Description = req.Description
						next[i].ServiceIDs = req.ServiceIDs
					}
				}
				return next
			case KeyTopology:
				graph := data.(*topology.Graph)
				cleared := patchMembership(graph, "", nil, []string{id})
				return patchMembership(cleared, id, req.ServiceIDs, nil)
			}
			return data
		},
		func(ctx context.Context) error {
			app, err := s.api.UpdateApplication(ctx, id, req)
			updated = app
			return err
		})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteApplication removes the application and strips its id from cached
// topology nodes.
func (s *Sync) DeleteApplication(ctx context.Context, id string) error {
	return s.cache.Mutate(ctx, "delete_application", []string{KeyApplications, KeyTopology},
		func(key string, data interface{}) interface{} {
			switch key {
			case KeyApplications:
				apps := data.([]topology.Application)
				next := make([]topology.Application, 0, len(apps))
				for _, app := range apps {
					if app.ID != id {
						next = append(next, app)
					}
				}
				return next
			case KeyTopology:
				return patchMembership(data.(*topology.Graph), "", nil, []string{id})
			}
			return data
		},
		func(ctx context.Context) error {
			return s.api.DeleteApplication(ctx, id)
		})
}

// UpdateService applies the edit to the cached snapshot before the PUT.
func (s *Sync) UpdateService(ctx context.Context, id string, req ServiceRequest) error {
	return s.cache.Mutate(ctx, "update_service", []string{KeyTopology},
		func(key string, data interface{}) interface{} {
			graph := data.(*topology.Graph)
			next := copyGraph(graph)
			for i := range next.Services {
				if next.Services[i].ID != id {
					continue
				}
				if req.DisplayName != "" {
					next.Services[i].DisplayName = req.DisplayName
				}
				next.Services[i].Team = req.Team
				next.Services[i].Email = req.Email
				next.Services[i].IPAddress = req.IPAddress
				next.Services[i].MACAddress = req.MACAddress
				next.Services[i].Category = req.Category
				next.Services[i].Tags = req.Tags
			}
			return next
		},
		func(ctx context.Context) error {
			_, err := s.api.UpdateService(ctx, id, req)
			return err
		})
}

// DeleteServices removes the services and their edges from the snapshot.
func (s *Sync) DeleteServices(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return s.cache.Mutate(ctx, "delete_services", []string{KeyTopology},
		func(key string, data interface{}) interface{} {
			graph := data.(*topology.Graph)
			next := &topology.Graph{Applications: graph.Applications}
			for _, svc := range graph.Services {
				// Discovered services survive a bulk delete server-side, so
				// the optimistic view keeps them too.
				if drop[svc.ID] && svc.IsManual {
					continue
				}
				next.Services = append(next.Services, svc)
			}
			for _, dep := range graph.Dependencies {
				if drop[dep.SourceID] || drop[dep.TargetID] {
					continue
				}
				next.Dependencies = append(next.Dependencies, dep)
			}
			return next
		},
		func(ctx context.Context) error {
			_, err := s.api.DeleteServices(ctx, ids)
			return err
		})
}

// CreateDependency adds the edge to the cached snapshot before the POST.
func (s *Sync) CreateDependency(ctx context.Context, req DependencyRequest) error {
	return s.cache.Mutate(ctx, "create_dependency", []string{KeyTopology},
		func(key string, data interface{}) interface{} {
			graph := data.(*topology.Graph)
			next := copyGraph(graph)
			for i := range next.Dependencies {
				if next.Dependencies[i].SourceID == req.SourceID && next.Dependencies[i].TargetID == req.TargetID {
					next.Dependencies[i].Protocol = req.Protocol
					return next
				}
			}
			next.Dependencies = append(next.Dependencies, topology.Dependency{
				SourceID: req.SourceID,
				TargetID: req.TargetID,
				Protocol: req.Protocol,
			})
			return next
		},
		func(ctx context.Context) error {
			return s.api.CreateDependency(ctx, req)
		})
}

// DeleteDependency drops the edge from the cached snapshot.
func (s *Sync) DeleteDependency(ctx context.Context, sourceID, targetID string) error {
	return s.cache.Mutate(ctx, "delete_dependency", []string{KeyTopology},
		func(key string, data interface{}) interface{} {
			graph := data.(*topology.Graph)
			next := copyGraph(graph)
			kept := next.Dependencies[:0]
			for _, dep := range next.Dependencies {
				if dep.SourceID == sourceID && dep.TargetID == targetID {
					continue
				}
				kept = append(kept, dep)
			}
			next.Dependencies = kept
			return next
		},
		func(ctx context.Context) error {
			return s.api.DeleteDependency(ctx, sourceID, targetID)
		})
}

// Invalidate drops both cached resources, forcing fresh fetches.
func (s *Sync) Invalidate() {
	s.cache.Invalidate(KeyTopology)
	s.cache.Invalidate(KeyApplications)
}

// patchMembership returns a copy of the graph with appID added to the
// application_ids of the listed services and every id in removeIDs stripped
// from all services.
func patchMembership(graph *topology.Graph, appID string, serviceIDs []string, removeIDs []string) *topology.Graph {
	members := make(map[string]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		members[id] = true
	}
	remove := make(map[string]bool, len(removeIDs))
	for _, id := range removeIDs {
		remove[id] = true
	}

	next := copyGraph(graph)
	for i := range next.Services {
		svc := &next.Services[i]
		ids := make([]string, 0, len(svc.ApplicationIDs)+1)
		for _, id := range svc.ApplicationIDs {
			if !remove[id] {
				ids = append(ids, id)
			}
		}
		if appID != "" && members[svc.ID] && !contains(ids, appID) {
			ids = append(ids, appID)
		}
		svc.ApplicationIDs = ids
	}
	return next
}

func copyGraph(graph *topology.Graph) *topology.Graph {
	next := &topology.Graph{
		Services:     make([]topology.Service, len(graph.Services)),
		Dependencies: make([]topology.Dependency, len(graph.Dependencies)),
		Applications: graph.Applications,
	}
	copy(next.Services, graph.Services)
	copy(next.Dependencies, graph.Dependencies)
	return next
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/topolord/topolord/pkg/layout"
	"github.com/topolord/topolord/pkg/store"
	"github.com/topolord/topolord/pkg/topology"
)

// handleTopology serves the full graph snapshot. With ?layout=1 the response
// also carries positioned nodes computed under the persisted settings.
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var graph *topology.Graph
	if s.cache != nil {
		if cached, ok := s.cache.Get(r.Context()); ok {
			graph = cached
		}
	}
	if graph == nil {
		g, err := s.store.GetGraph(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		graph = g
		if s.cache != nil {
			s.cache.Set(r.Context(), graph)
		}
	}

	resp := GraphResponse{
		Services:     graph.Services,
		Dependencies: graph.Dependencies,
		Applications: graph.Applications,
	}

	if r.URL.Query().Get("layout") == "1" {
		settings, err := s.store.GetSettings(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		engine := layout.NewEngine(layout.Config{
			Direction: settings.LayoutDirection,
			NodeSep:   float64(settings.NodeSep),
			RankSep:   float64(settings.RankSep),
		})
		resp.Nodes = engine.Layout(graph.Services, graph.Dependencies)
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleSettings reads or replaces the persisted topology settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.GetSettings(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, settings)

	case http.MethodPut:
		var settings topology.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
			return
		}
		if settings.LayoutDirection != "LR" && settings.LayoutDirection != "TB" {
			http.Error(w, `{"error":"invalid_layout_direction","valid":["LR","TB"]}`, http.StatusBadRequest)
			return
		}
		if err := s.store.PutSettings(r.Context(), settings); err != nil {
			writeStoreError(w, r, err)
			return
		}
		s.audit(r.Context(), store.AuditSettingsUpdated, "", "")
		writeJSON(w, r, http.StatusOK, settings)

	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

// handleServiceCreate creates a manual service.
func (s *Server) handleServiceCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req ServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.ID
	}

	svc := serviceFromRequest(req)
	if err := s.store.CreateService(r.Context(), svc); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.audit(r.Context(), store.AuditServiceCreated, svc.ID, "")
	s.invalidateCache(r.Context())

	created, err := s.store.GetService(r.Context(), svc.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// handleServiceUpdate updates a manual service addressed by path id.
func (s *Server) handleServiceUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/topology/service/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"invalid_service_id"}`, http.StatusBadRequest)
		return
	}

	var req ServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	req.ID = id
	if req.DisplayName == "" {
		req.DisplayName = id
	}

	if err := s.store.UpdateService(r.Context(), serviceFromRequest(req)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.audit(r.Context(), store.AuditServiceUpdated, id, "")
	s.invalidateCache(r.Context())

	updated, err := s.store.GetService(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// handleServicesDelete bulk-deletes manual services. Discovered services in
// the list are skipped, not rejected; the response reports the actual count.
func (s *Server) handleServicesDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req DeleteServicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, `{"error":"missing_service_ids"}`, http.StatusBadRequest)
		return
	}

	deleted, err := s.store.DeleteManualServices(r.Context(), req.IDs)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if deleted > 0 {
		s.audit(r.Context(), store.AuditServiceDeleted, "", fmt.Sprintf("deleted %d of %d", deleted, len(req.IDs)))
		s.invalidateCache(r.Context())
	}
	writeJSON(w, r, http.StatusOK, DeleteServicesResponse{Deleted: deleted})
}

// handleDependency creates or deletes an edge. Both operations require
// manual endpoints; discovered relationships are provider-owned.
func (s *Server) handleDependency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req DependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
		return
	}
	if req.SourceID == req.TargetID {
		http.Error(w, `{"error":"self_dependency"}`, http.StatusBadRequest)
		return
	}

	entity := req.SourceID + "->" + req.TargetID
	if r.Method == http.MethodPost {
		dep := topology.Dependency{SourceID: req.SourceID, TargetID: req.TargetID, Protocol: req.Protocol}
		if err := s.store.CreateDependency(r.Context(), dep, true); err != nil {
			writeStoreError(w, r, err)
			return
		}
		s.audit(r.Context(), store.AuditDependencyCreated, entity, req.Protocol)
		s.invalidateCache(r.Context())
		writeJSON(w, r, http.StatusCreated, dep)
		return
	}

	if err := s.store.DeleteDependency(r.Context(), req.SourceID, req.TargetID, true); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.audit(r.Context(), store.AuditDependencyDeleted, entity, "")
	s.invalidateCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func serviceFromRequest(req ServiceRequest) topology.Service {
	return topology.Service{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Team:        req.Team,
		Email:       req.Email,
		IPAddress:   req.IPAddress,
		MACAddress:  req.MACAddress,
		Category:    req.Category,
		Tags:        req.Tags,
		IsManual:    true,
	}
}

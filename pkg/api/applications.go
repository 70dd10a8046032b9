package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/topolord/topolord/pkg/store"
	"github.com/topolord/topolord/pkg/topology"
)

// handleApplications lists or creates applications.
func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		apps, err := s.store.ListApplications(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if apps == nil {
			apps = []topology.Application{}
		}
		writeJSON(w, r, http.StatusOK, apps)

	case http.MethodPost:
		var req ApplicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
			return
		}

		app := topology.Application{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			ServiceIDs:  req.ServiceIDs,
		}
		if err := s.store.CreateApplication(r.Context(), app); err != nil {
			writeStoreError(w, r, err)
			return
		}
		s.audit(r.Context(), store.AuditApplicationCreated, app.ID, app.Name)
		s.invalidateCache(r.Context())

		created, err := s.store.GetApplication(r.Context(), app.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, created)

	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

// handleApplicationByID serves get/update/delete for one application.
func (s *Server) handleApplicationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/topology/applications/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"invalid_application_id"}`, http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		app, err := s.store.GetApplication(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, app)

	case http.MethodPut:
		var req ApplicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
			return
		}

		app := topology.Application{
			ID:          id,
			Name:        req.Name,
			Description: req.Description,
			ServiceIDs:  req.ServiceIDs,
		}
		if err := s.store.UpdateApplication(r.Context(), app); err != nil {
			writeStoreError(w, r, err)
			return
		}
		s.audit(r.Context(), store.AuditApplicationUpdated, id, req.Name)
		s.invalidateCache(r.Context())

		updated, err := s.store.GetApplication(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.store.DeleteApplication(r.Context(), id); err != nil {
			writeStoreError(w, r, err)
			return
		}
		s.audit(r.Context(), store.AuditApplicationDeleted, id, "")
		s.invalidateCache(r.Context())
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

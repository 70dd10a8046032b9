package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/topolord/topolord/pkg/store"
)

// handleIncidents routes /v1/incidents/{id}/{alerts|comments|audit}.
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/incidents/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, `{"error":"invalid_incident_path"}`, http.StatusBadRequest)
		return
	}
	incidentID, resource := parts[0], parts[1]

	switch resource {
	case "alerts":
		s.handleIncidentAlerts(w, r, incidentID)
	case "comments":
		s.handleIncidentComments(w, r, incidentID)
	case "audit":
		s.handleIncidentAudit(w, r, incidentID)
	default:
		http.Error(w, `{"error":"unknown_incident_resource"}`, http.StatusNotFound)
	}
}

func (s *Server) handleIncidentAlerts(w http.ResponseWriter, r *http.Request, incidentID string) {
	switch r.Method {
	case http.MethodGet:
		alerts, err := s.store.ListAlerts(r.Context(), incidentID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if alerts == nil {
			alerts = []store.Alert{}
		}
		writeJSON(w, r, http.StatusOK, alerts)

	case http.MethodPost:
		var alert store.Alert
		if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
			http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
			return
		}
		if alert.Name == "" {
			http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
			return
		}
		alert.IncidentID = incidentID
		if err := s.store.AddAlert(r.Context(), alert); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, alert)

	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIncidentComments(w http.ResponseWriter, r *http.Request, incidentID string) {
	switch r.Method {
	case http.MethodGet:
		comments, err := s.store.ListComments(r.Context(), incidentID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if comments == nil {
			comments = []store.Comment{}
		}
		writeJSON(w, r, http.StatusOK, comments)

	case http.MethodPost:
		var req CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
			return
		}
		if req.Body == "" {
			http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
			return
		}
		if req.Author == "" {
			req.Author = "anonymous"
		}

		comment, err := s.store.AddComment(r.Context(), store.Comment{
			IncidentID: incidentID,
			Author:     req.Author,
			Body:       req.Body,
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		s.auditEvent(r.Context(), store.AuditEvent{
			Action:     store.AuditCommentAdded,
			Actor:      req.Author,
			IncidentID: incidentID,
			EntityID:   comment.ID,
		})
		writeJSON(w, r, http.StatusCreated, comment)

	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIncidentAudit(w http.ResponseWriter, r *http.Request, incidentID string) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	events, err := s.store.ListAudit(r.Context(), store.AuditFilter{IncidentID: incidentID})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if events == nil {
		events = []store.AuditEvent{}
	}
	writeJSON(w, r, http.StatusOK, events)
}

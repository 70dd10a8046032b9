package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertIncident creates the incident row if it doesn't exist yet. Alerts
// and comments arriving for an unknown incident implicitly create it.
func (s *Store) UpsertIncident(ctx context.Context, inc Incident) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, title, status) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, status = excluded.status
	`, inc.ID, inc.Title, inc.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert incident: %w", err)
	}
	return nil
}

// AddAlert attaches an alert to an incident.
func (s *Store) AddAlert(ctx context.Context, alert Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if err := s.UpsertIncident(ctx, Incident{ID: alert.IncidentID, Status: "firing"}); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, incident_id, service_id, name, severity, status, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.IncidentID, alert.ServiceID, alert.Name, alert.Severity, alert.Status, alert.Description)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns the alerts attached to an incident, newest first.
func (s *Store) ListAlerts(ctx context.Context, incidentID string) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, service_id, name, severity, status, description, created_at
		FROM alerts WHERE incident_id = ? ORDER BY created_at DESC
	`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.ServiceID, &a.Name, &a.Severity, &a.Status, &a.Description, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AddComment appends a comment to an incident.
func (s *Store) AddComment(ctx context.Context, c Comment) (*Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	if err := s.UpsertIncident(ctx, Incident{ID: c.IncidentID, Status: "firing"}); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, incident_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.IncidentID, c.Author, c.Body, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return &c, nil
}

// ListComments returns the comments on an incident, oldest first.
func (s *Store) ListComments(ctx context.Context, incidentID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, author, body, created_at
		FROM comments WHERE incident_id = ? ORDER BY created_at ASC
	`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.IncidentID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// AppendAudit records one mutation in the audit log.
func (s *Store) AppendAudit(ctx context.Context, evt AuditEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, actor, entity_id, incident_id, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, evt.ID, string(evt.Action), evt.Actor, evt.EntityID, evt.IncidentID, evt.Detail)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListAudit returns audit events matching the filter, newest first.
func (s *Store) ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `SELECT id, action, actor, entity_id, incident_id, detail, created_at FROM audit_events WHERE 1=1`
	var args []interface{}
	if filter.IncidentID != "" {
		query += ` AND incident_id = ?`
		args = append(args, filter.IncidentID)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(filter.Action))
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var action string
		if err := rows.Scan(&e.ID, &action, &e.Actor, &e.EntityID, &e.IncidentID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Action = AuditAction(action)
		events = append(events, e)
	}
	return events, rows.Err()
}

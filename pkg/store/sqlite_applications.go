package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// CreateApplication inserts an application and its service memberships.
func (s *Store) CreateApplication(ctx context.Context, app topology.Application) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO applications (id, name, description) VALUES (?, ?, ?)`,
		app.ID, app.Name, app.Description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}

	for _, svcID := range app.ServiceIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO application_services (application_id, service_id) VALUES (?, ?)`,
			app.ID, svcID)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
				return fmt.Errorf("%w: service %s", ErrNotFound, svcID)
			}
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateApplication replaces the application's name, description and full
// membership list.
func (s *Store) UpdateApplication(ctx context.Context, app topology.Application) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE applications SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		app.Name, app.Description, time.Now().UTC(), app.ID)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM application_services WHERE application_id = ?`, app.ID); err != nil {
		return fmt.Errorf("failed to clear memberships: %w", err)
	}
	for _, svcID := range app.ServiceIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO application_services (application_id, service_id) VALUES (?, ?)`,
			app.ID, svcID)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
				return fmt.Errorf("%w: service %s", ErrNotFound, svcID)
			}
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteApplication removes an application; memberships cascade.
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetApplication returns one application with its member service ids.
func (s *Store) GetApplication(ctx context.Context, id string) (*topology.Application, error) {
	var app topology.Application
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM applications WHERE id = ?`, id).
		Scan(&app.ID, &app.Name, &app.Description, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT service_id FROM application_services WHERE application_id = ? ORDER BY service_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var svcID string
		if err := rows.Scan(&svcID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		app.ServiceIDs = append(app.ServiceIDs, svcID)
	}
	return &app, rows.Err()
}

// ListApplications returns every application with member service ids.
func (s *Store) ListApplications(ctx context.Context) ([]topology.Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM applications ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []topology.Application
	for rows.Next() {
		var app topology.Application
		if err := rows.Scan(&app.ID, &app.Name, &app.Description, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.QueryContext(ctx,
		`SELECT application_id, service_id FROM application_services ORDER BY service_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer memberRows.Close()

	byApp := make(map[string][]string)
	for memberRows.Next() {
		var appID, svcID string
		if err := memberRows.Scan(&appID, &svcID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		byApp[appID] = append(byApp[appID], svcID)
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}

	for i := range apps {
		apps[i].ServiceIDs = byApp[apps[i].ID]
	}
	return apps, nil
}

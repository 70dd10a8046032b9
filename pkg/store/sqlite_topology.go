package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/topolord/topolord/pkg/topology"
)

// CreateService inserts a manually created service.
func (s *Store) CreateService(ctx context.Context, svc topology.Service) error {
	tags, err := json.Marshal(orEmptyTags(svc.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (id, display_name, team, email, ip_address, mac_address, category, tags, is_manual, source_provider)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, '')
	`, svc.ID, svc.DisplayName, svc.Team, svc.Email, svc.IPAddress, svc.MACAddress, svc.Category, string(tags))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return fmt.Errorf("failed to insert service: %w", err)
	}
	return nil
}

// UpdateService updates a manual service. Discovered services are owned by
// their provider and reject user edits.
func (s *Store) UpdateService(ctx context.Context, svc topology.Service) error {
	manual, err := s.serviceIsManual(ctx, svc.ID)
	if err != nil {
		return err
	}
	if !manual {
		return ErrNotManual
	}

	tags, err := json.Marshal(orEmptyTags(svc.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET display_name = ?, team = ?, email = ?, ip_address = ?, mac_address = ?, category = ?, tags = ?, updated_at = ?
		WHERE id = ? AND is_manual = 1
	`, svc.DisplayName, svc.Team, svc.Email, svc.IPAddress, svc.MACAddress, svc.Category, string(tags), time.Now().UTC(), svc.ID)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
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

// DeleteManualServices removes the given manual services and, via cascade,
// their dependencies and application memberships. Discovered services in the
// list are skipped. Returns the number of services deleted.
func (s *Store) DeleteManualServices(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM services WHERE is_manual = 1 AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete services: %w", err)
	}
	return res.RowsAffected()
}

// GetService returns one service with its application memberships.
func (s *Store) GetService(ctx context.Context, id string) (*topology.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, team, email, ip_address, mac_address, category, tags, is_manual, source_provider, created_at, updated_at
		FROM services WHERE id = ?
	`, id)

	svc, err := scanService(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	apps, err := s.applicationIDsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.ApplicationIDs = apps
	return svc, nil
}

// ListServices returns every service with application memberships filled in.
func (s *Store) ListServices(ctx context.Context) ([]topology.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, team, email, ip_address, mac_address, category, tags, is_manual, source_provider, created_at, updated_at
		FROM services ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []topology.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}

	if err := s.fillApplicationIDs(ctx, services); err != nil {
		return nil, err
	}
	return services, nil
}

// CreateDependency inserts an edge. Both endpoints must exist; when
// manualOnly is set both endpoints must be manual services.
func (s *Store) CreateDependency(ctx context.Context, dep topology.Dependency, manualOnly bool) error {
	if manualOnly {
		for _, id := range []string{dep.SourceID, dep.TargetID} {
			manual, err := s.serviceIsManual(ctx, id)
			if err != nil {
				return err
			}
			if !manual {
				return ErrNotManual
			}
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dependencies (source_id, target_id, protocol) VALUES (?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET protocol = excluded.protocol
	`, dep.SourceID, dep.TargetID, dep.Protocol)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return ErrNotFound
		}
		return fmt.Errorf("failed to insert dependency: %w", err)
	}
	return nil
}

// DeleteDependency removes an edge. When manualOnly is set the edge must
// connect two manual services.
func (s *Store) DeleteDependency(ctx context.Context, sourceID, targetID string, manualOnly bool) error {
	if manualOnly {
		for _, id := range []string{sourceID, targetID} {
			manual, err := s.serviceIsManual(ctx, id)
			if err != nil {
				return err
			}
			if !manual {
				return ErrNotManual
			}
		}
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dependencies WHERE source_id = ? AND target_id = ?`, sourceID, targetID)
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
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

// ListDependencies returns every edge.
func (s *Store) ListDependencies(ctx context.Context) ([]topology.Dependency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, target_id, protocol FROM dependencies ORDER BY source_id, target_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []topology.Dependency
	for rows.Next() {
		var d topology.Dependency
		if err := rows.Scan(&d.SourceID, &d.TargetID, &d.Protocol); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// GetGraph assembles the full topology snapshot.
func (s *Store) GetGraph(ctx context.Context) (*topology.Graph, error) {
	services, err := s.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := s.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := s.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	return &topology.Graph{Services: services, Dependencies: deps, Applications: apps}, nil
}

// MergeDiscovery reconciles one provider's discovery result inside a single
// transaction: discovered services and their edges are upserted, and
// previously discovered services of this provider that vanished are removed,
// unless an application still references them. Manual services and
// manual-manual edges are never touched.
func (s *Store) MergeDiscovery(ctx context.Context, provider string, services []topology.Service, deps []topology.Dependency) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		seen[svc.ID] = true
		tags, err := json.Marshal(orEmptyTags(svc.Tags))
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO services (id, display_name, team, email, ip_address, mac_address, category, tags, is_manual, source_provider)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(id) DO UPDATE SET
				display_name = excluded.display_name,
				team = excluded.team,
				email = excluded.email,
				ip_address = excluded.ip_address,
				mac_address = excluded.mac_address,
				category = excluded.category,
				tags = excluded.tags,
				updated_at = CURRENT_TIMESTAMP
			WHERE services.is_manual = 0
		`, svc.ID, svc.DisplayName, svc.Team, svc.Email, svc.IPAddress, svc.MACAddress, svc.Category, string(tags), provider)
		if err != nil {
			return fmt.Errorf("failed to upsert discovered service %s: %w", svc.ID, err)
		}
	}

	// Vanished services: discovered by this provider, absent from the fresh
	// result, and not pinned into any application.
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM services WHERE is_manual = 0 AND source_provider = ?
	`, provider)
	if err != nil {
		return fmt.Errorf("failed to query provider services: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan service id: %w", err)
		}
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate provider services: %w", err)
	}

	for _, id := range stale {
		var pinned int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM application_services WHERE service_id = ?`, id).Scan(&pinned); err != nil {
			return fmt.Errorf("failed to check application membership: %w", err)
		}
		if pinned > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = ? AND is_manual = 0`, id); err != nil {
			return fmt.Errorf("failed to delete stale service %s: %w", id, err)
		}
	}

	// Replace the provider's discovered edges. Scoped to edges touching this
	// provider's services, like the vanished-service cleanup above, so one
	// provider's merge never clears another provider's edges. Manual-manual
	// edges never match (neither endpoint is discovered) and survive.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM dependencies
		WHERE source_id IN (SELECT id FROM services WHERE is_manual = 0 AND source_provider = ?)
		   OR target_id IN (SELECT id FROM services WHERE is_manual = 0 AND source_provider = ?)
	`, provider, provider)
	if err != nil {
		return fmt.Errorf("failed to clear discovered dependencies: %w", err)
	}
	for _, d := range deps {
		if !seen[d.SourceID] && !seen[d.TargetID] {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (source_id, target_id, protocol) VALUES (?, ?, ?)
			ON CONFLICT(source_id, target_id) DO UPDATE SET protocol = excluded.protocol
		`, d.SourceID, d.TargetID, d.Protocol)
		if err != nil {
			// Edges referencing services outside this result are dropped,
			// matching the dangling-edge rule everywhere else.
			if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
				continue
			}
			return fmt.Errorf("failed to upsert dependency: %w", err)
		}
	}

	return tx.Commit()
}

// ImportServices inserts imported services and dependencies as manual
// entries, skipping services that already exist.
func (s *Store) ImportServices(ctx context.Context, services []topology.Service, deps []topology.Dependency) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	svcCount := 0
	for _, svc := range services {
		tags, err := json.Marshal(orEmptyTags(svc.Tags))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to marshal tags: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, display_name, team, email, ip_address, mac_address, category, tags, is_manual, source_provider)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, '')
			ON CONFLICT(id) DO NOTHING
		`, svc.ID, svc.DisplayName, svc.Team, svc.Email, svc.IPAddress, svc.MACAddress, svc.Category, string(tags))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to import service %s: %w", svc.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			svcCount++
		}
	}

	depCount := 0
	for _, d := range deps {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (source_id, target_id, protocol) VALUES (?, ?, ?)
			ON CONFLICT(source_id, target_id) DO UPDATE SET protocol = excluded.protocol
		`, d.SourceID, d.TargetID, d.Protocol)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to import dependency %s->%s: %w", d.SourceID, d.TargetID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			depCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return svcCount, depCount, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row rowScanner) (*topology.Service, error) {
	var svc topology.Service
	var tags string
	var isManual int
	if err := row.Scan(&svc.ID, &svc.DisplayName, &svc.Team, &svc.Email, &svc.IPAddress, &svc.MACAddress,
		&svc.Category, &tags, &isManual, &svc.SourceProvider, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan service: %w", err)
	}
	svc.IsManual = isManual == 1
	if tags != "" && tags != "{}" {
		if err := json.Unmarshal([]byte(tags), &svc.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &svc, nil
}

func (s *Store) serviceIsManual(ctx context.Context, id string) (bool, error) {
	var isManual int
	err := s.db.QueryRowContext(ctx, `SELECT is_manual FROM services WHERE id = ?`, id).Scan(&isManual)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to check service: %w", err)
	}
	return isManual == 1, nil
}

func (s *Store) applicationIDsFor(ctx context.Context, serviceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT application_id FROM application_services WHERE service_id = ? ORDER BY application_id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) fillApplicationIDs(ctx context.Context, services []topology.Service) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service_id, application_id FROM application_services ORDER BY application_id`)
	if err != nil {
		return fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	byService := make(map[string][]string)
	for rows.Next() {
		var serviceID, appID string
		if err := rows.Scan(&serviceID, &appID); err != nil {
			return fmt.Errorf("failed to scan membership: %w", err)
		}
		byService[serviceID] = append(byService[serviceID], appID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range services {
		services[i].ApplicationIDs = byService[services[i].ID]
	}
	return nil
}

func orEmptyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return tags
}

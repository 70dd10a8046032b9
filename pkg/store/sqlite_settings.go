package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/topolord/topolord/pkg/topology"
)

const settingsKey = "topology"

// GetSettings returns the persisted topology settings, or defaults when
// none have been saved yet.
func (s *Store) GetSettings(ctx context.Context) (topology.Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return topology.DefaultSettings(), nil
		}
		return topology.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var settings topology.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return topology.Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

// PutSettings replaces the persisted topology settings.
func (s *Store) PutSettings(ctx context.Context, settings topology.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("failed to put settings: %w", err)
	}
	return nil
}

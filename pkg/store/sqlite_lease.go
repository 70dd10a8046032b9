package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Leases elect which daemon runs the discovery sweep when several topolord-d
// instances share a database. A lease is a named row owned by one holder
// until its expiry; takeover happens only after the old holder's expiry has
// passed, so a crashed daemon blocks discovery for at most one TTL.

// Acquire takes or renews the named lease for holderID. It returns true when
// holderID owns the lease afterwards. The whole operation is one upsert:
// insert when the row is missing, otherwise update only if we already own it
// or the current holder's expiry has passed.
func (s *Store) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (name, holder_id, expires_at, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			holder_id = excluded.holder_id,
			expires_at = excluded.expires_at,
			version = leases.version + 1
		WHERE leases.holder_id = excluded.holder_id OR leases.expires_at < ?
	`, name, holderID, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

// Renew extends the expiry of a lease holderID still owns. A zero-row update
// means the lease was taken over or released in the meantime.
func (s *Store) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leases
		SET expires_at = ?, version = version + 1
		WHERE name = ? AND holder_id = ?
	`, time.Now().UTC().Add(ttl), name, holderID)
	if err != nil {
		return fmt.Errorf("failed to renew lease %s: %w", name, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("lease lost or stolen")
	}
	return nil
}

// Release drops the lease if holderID still owns it. Dropping the row, not
// zeroing the expiry, so "no row" always reads as "no leader".
func (s *Store) Release(ctx context.Context, name, holderID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM leases WHERE name = ? AND holder_id = ?
	`, name, holderID); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}
	return nil
}

// Get returns the named lease, or nil when nobody holds it.
func (s *Store) Get(ctx context.Context, name string) (*Lease, error) {
	var l Lease
	err := s.db.QueryRowContext(ctx, `
		SELECT name, holder_id, expires_at, version
		FROM leases WHERE name = ?
	`, name).Scan(&l.Name, &l.HolderID, &l.ExpiresAt, &l.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lease %s: %w", name, err)
	}
	return &l, nil
}

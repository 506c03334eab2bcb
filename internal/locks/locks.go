// Package locks implements the per-(collection, document-name)
// advisory mutual-exclusion lock: a try-only acquire backed by a
// unique constraint, and a background sweep that reclaims locks older
// than a configurable expiration interval.
package locks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docvault-db/docvault/internal/storage"
)

// Held describes a lock row already held by someone else.
type Held struct {
	CollectionID string
	DocumentName string
	Hostname     string
	CreatedUTC   string
}

// ErrHeld is returned by Acquire when the lock is already held by a
// hostname and has not yet expired.
type ErrHeld struct {
	Held Held
}

func (e *ErrHeld) Error() string {
	return fmt.Sprintf("locks: (%s, %s) held by %s since %s", e.Held.CollectionID, e.Held.DocumentName, e.Held.Hostname, e.Held.CreatedUTC)
}

// Manager owns the objectlocks table.
type Manager struct {
	store *storage.Store
}

// New returns a Manager backed by store.
func New(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// Acquire tries to take the lock for (collectionID, documentName) under
// hostname. If the lock is already held and not older than expiry, it
// returns *ErrHeld describing the holder. If the existing lock is older
// than expiry, Acquire steals it (equivalent to the sweep having just
// run) rather than making the caller retry.
func (m *Manager) Acquire(ctx context.Context, collectionID, documentName, hostname string, expiry time.Duration) error {
	ph := m.store.Dialect().Placeholder
	now := time.Now().UTC()

	return m.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT hostname, created_utc FROM objectlocks WHERE collection_id = "+ph(1)+" AND document_name = "+ph(2),
			collectionID, documentName)
		var existingHost, existingCreated string
		err := row.Scan(&existingHost, &existingCreated)
		switch {
		case err == nil:
			createdAt, parseErr := time.Parse(time.RFC3339Nano, existingCreated)
			if parseErr == nil && now.Sub(createdAt) < expiry {
				return &ErrHeld{Held: Held{CollectionID: collectionID, DocumentName: documentName, Hostname: existingHost, CreatedUTC: existingCreated}}
			}
			// Expired: steal it in place.
			if _, err := tx.ExecContext(ctx,
				"UPDATE objectlocks SET hostname = "+ph(1)+", created_utc = "+ph(2)+" WHERE collection_id = "+ph(3)+" AND document_name = "+ph(4),
				hostname, now.Format(time.RFC3339Nano), collectionID, documentName); err != nil {
				return fmt.Errorf("locks: steal expired lock: %w", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO objectlocks (id, collection_id, document_name, hostname, created_utc) VALUES (%s, %s, %s, %s, %s)",
					ph(1), ph(2), ph(3), ph(4), ph(5)),
				uuid.NewString(), collectionID, documentName, hostname, now.Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("locks: insert: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("locks: lookup: %w", err)
		}
	})
}

// Release removes the lock row for (collectionID, documentName), if any.
func (m *Manager) Release(ctx context.Context, collectionID, documentName string) error {
	ph1 := m.store.Dialect().Placeholder(1)
	ph2 := m.store.Dialect().Placeholder(2)
	_, err := m.store.Exec(ctx,
		"DELETE FROM objectlocks WHERE collection_id = "+ph1+" AND document_name = "+ph2,
		collectionID, documentName)
	if err != nil {
		return fmt.Errorf("locks: release: %w", err)
	}
	return nil
}

// Sweep deletes every lock row older than expiry and reports how many
// were removed. It is meant to run on a periodic background tick;
// Acquire itself also self-heals on contention so a delayed sweep
// does not wedge new acquisitions.
func (m *Manager) Sweep(ctx context.Context, expiry time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-expiry).Format(time.RFC3339Nano)
	ph := m.store.Dialect().Placeholder(1)
	res, err := m.store.Exec(ctx, "DELETE FROM objectlocks WHERE created_utc < "+ph, cutoff)
	if err != nil {
		return 0, fmt.Errorf("locks: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil // not all drivers support RowsAffected reliably; not fatal
	}
	return int(n), nil
}

// Run starts a background goroutine that sweeps every interval until
// ctx is cancelled.
func (m *Manager) Run(ctx context.Context, expiry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx, expiry)
		}
	}
}

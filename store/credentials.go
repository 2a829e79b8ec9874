// Package store persists WhatsApp session credentials in a local SQLite
// database, optionally encrypted at rest.
package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/warelay/warelay/internal/profile"
)

// CredentialStore keeps the single credential blob handed out by the bridge.
// When the profile carries an encryption key the blob is sealed with
// AES-256-GCM before it touches disk; otherwise it is stored base64-encoded.
type CredentialStore struct {
	db  *sql.DB
	key string
}

// NewCredentialStore opens (and if needed creates) the credential database
// under the profile's data directory.
func NewCredentialStore(p *profile.Profile) (*CredentialStore, error) {
	dsn := filepath.Join(p.Data, "warelay_"+p.Mode+".db")

	// Connect with sane settings for a single-user local file:
	// WAL journal mode prevents locking issues, and a single connection is
	// optimal with the `modernc.org/sqlite` driver (pragmas are passed via
	// the `_pragma=` DSN parameter).
	db, err := sql.Open("sqlite", dsn+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &CredentialStore{db: db, key: p.CredentialKey}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CredentialStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credential (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			blob TEXT NOT NULL,
			encrypted INTEGER NOT NULL DEFAULT 0,
			updated_ts BIGINT NOT NULL
		)
	`)
	return errors.Wrap(err, "failed to create credential table")
}

// Save upserts the credential blob. The table holds at most one row.
func (s *CredentialStore) Save(ctx context.Context, blob []byte) error {
	var stored string
	var encrypted int
	if s.key != "" {
		sealed, err := encryptBlob(blob, s.key)
		if err != nil {
			return errors.Wrap(err, "failed to encrypt credentials")
		}
		stored, encrypted = sealed, 1
	} else {
		stored = base64.StdEncoding.EncodeToString(blob)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credential (id, blob, encrypted, updated_ts)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET blob = excluded.blob, encrypted = excluded.encrypted, updated_ts = excluded.updated_ts
	`, stored, encrypted, time.Now().Unix())
	return errors.Wrap(err, "failed to save credentials")
}

// Load returns the stored credential blob, or nil when no session has been
// paired yet.
func (s *CredentialStore) Load(ctx context.Context) ([]byte, error) {
	var stored string
	var encrypted int
	err := s.db.QueryRowContext(ctx, `SELECT blob, encrypted FROM credential WHERE id = 1`).Scan(&stored, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load credentials")
	}

	if encrypted == 1 {
		blob, err := decryptBlob(stored, s.key)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decrypt credentials")
		}
		return blob, nil
	}
	blob, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode credentials")
	}
	return blob, nil
}

// Wipe removes the stored credentials. Called after a logged_out close so the
// next connection attempt pairs fresh.
func (s *CredentialStore) Wipe(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credential WHERE id = 1`)
	return errors.Wrap(err, "failed to wipe credentials")
}

// Close closes the underlying database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}

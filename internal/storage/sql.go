package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect struct {
	get    string
	set    string
	delete string
}

var postgresDialect = dialect{
	get: `SELECT value FROM storefront.client_storage WHERE key = $1`,
	set: `
		INSERT INTO storefront.client_storage (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`,
	delete: `DELETE FROM storefront.client_storage WHERE key = $1`,
}

var sqliteDialect = dialect{
	get: `SELECT value FROM client_storage WHERE key = ?`,
	set: `
		INSERT INTO client_storage (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`,
	delete: `DELETE FROM client_storage WHERE key = ?`,
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS client_storage (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

// SQLStorage keeps slots in a client_storage table.
type SQLStorage struct {
	db *sql.DB
	q  dialect
}

// NewPostgres uses the storefront.client_storage table created by the migrations.
func NewPostgres(db *sql.DB) *SQLStorage {
	return &SQLStorage{db: db, q: postgresDialect}
}

// NewSQLite creates the client_storage table if needed. It is the file-backed
// local store used when no shared database is configured.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLStorage, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create client_storage table: %w", err)
	}
	return &SQLStorage{db: db, q: sqliteDialect}, nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.q.set, key, value)
	return err
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.q.delete, key)
	return err
}

package syncserver

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Repo persists saved documents by store name.
type Repo struct {
	db *sql.DB
}

// OpenRepo connects to the database and makes sure the stores table exists.
func OpenRepo(ctx context.Context, driver, dsn string) (*Repo, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	r := &Repo{db: db}
	if err := r.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS stores (
			id text not null primary key,
			content text not null
		)`,
	); err != nil {
		return fmt.Errorf("failed to create stores table: %w", err)
	}
	return nil
}

// LoadAll returns every saved document keyed by store name.
func (r *Repo) LoadAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, content FROM stores`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode store %s: %w", id, err)
		}
		out[id] = raw
	}
	return out, rows.Err()
}

// Save upserts the document for store id.
func (r *Repo) Save(ctx context.Context, id string, raw []byte) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, content) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET content = excluded.content`,
		id, base64.StdEncoding.EncodeToString(raw),
	); err != nil {
		return fmt.Errorf("failed to save store %s: %w", id, err)
	}
	return nil
}

// Close closes the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

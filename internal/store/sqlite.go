package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/knowdex/knowdex/pkg/types"
)

// SQLiteAdapter persists the item collection and manifest in a SQLite
// database. The driver is selected at build time: the C driver with the
// cgo_sqlite tag, the pure Go driver otherwise.
type SQLiteAdapter struct {
	db *sql.DB
}

var _ Adapter = (*SQLiteAdapter)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	vector    BLOB,
	metadata  TEXT NOT NULL,
	parent_id TEXT,
	seq       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_seq ON items(seq);

CREATE TABLE IF NOT EXISTS manifest (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL
);
`

// NewSQLiteAdapter opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	if path == "" {
		return nil, errors.New("database path required")
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteAdapter{db: db}, nil
}

// Name implements Adapter.
func (a *SQLiteAdapter) Name() string { return "sqlite" }

// LoadItems implements Adapter.
func (a *SQLiteAdapter) LoadItems(ctx context.Context) ([]*types.IndexedItem, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, content, vector, metadata, parent_id FROM items ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*types.IndexedItem
	for rows.Next() {
		var (
			item         types.IndexedItem
			vectorBlob   []byte
			metadataJSON string
			parentID     sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Content, &vectorBlob, &metadataJSON, &parentID); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &item.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %q: %w", item.ID, err)
		}
		item.Vector = DeserializeVector(vectorBlob)
		item.ParentID = parentID.String
		items = append(items, &item)
	}
	return items, rows.Err()
}

// SaveItems implements Adapter. The snapshot replaces the stored collection
// atomically within one transaction.
func (a *SQLiteAdapter) SaveItems(ctx context.Context, items []*types.IndexedItem) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (id, content, vector, metadata, parent_id, seq) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for seq, item := range items {
		metadataJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %q: %w", item.ID, err)
		}
		var vectorBlob []byte
		if item.HasVector() {
			vectorBlob = SerializeVector(item.Vector)
		}
		if _, err := stmt.ExecContext(ctx,
			item.ID, item.Content, vectorBlob, string(metadataJSON), item.ParentID, seq); err != nil {
			return fmt.Errorf("inserting %q: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// LoadManifest implements Adapter.
func (a *SQLiteAdapter) LoadManifest(ctx context.Context) (*types.Manifest, error) {
	var data string
	err := a.db.QueryRowContext(ctx, `SELECT data FROM manifest WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying manifest: %w", err)
	}

	var manifest types.Manifest
	if err := json.Unmarshal([]byte(data), &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &manifest, nil
}

// SaveManifest implements Adapter.
func (a *SQLiteAdapter) SaveManifest(ctx context.Context, manifest *types.Manifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO manifest (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, string(data))
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Close implements Adapter.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

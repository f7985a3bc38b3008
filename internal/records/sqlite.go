package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/namel3ss/evalgate/internal/bridge"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS records (
	schema_name TEXT NOT NULL,
	id INTEGER NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (schema_name, id)
);
`

// SQLiteStore persists records as JSON bodies in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path (WAL mode).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create record store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init record store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, schema string, rec bridge.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", schema, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE schema_name = ?`, schema).Scan(&id); err != nil {
		return 0, fmt.Errorf("append %s: next id: %w", schema, err)
	}

	body := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		body[k] = v
	}
	body["id"] = id

	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("append %s: marshal: %w", schema, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (schema_name, id, body) VALUES (?, ?, ?)`, schema, id, string(data)); err != nil {
		return 0, fmt.Errorf("append %s: insert: %w", schema, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append %s: commit: %w", schema, err)
	}
	return id, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, schema string, limit int) ([]bridge.Record, error) {
	query := `SELECT body FROM records WHERE schema_name = ? ORDER BY id`
	args := []any{schema}
	if limit > 0 {
		query = `SELECT body FROM (
			SELECT id, body FROM records WHERE schema_name = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", schema, err)
	}
	defer rows.Close()

	var out []bridge.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", schema, err)
		}
		var rec bridge.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("list %s: decode: %w", schema, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

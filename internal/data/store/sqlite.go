package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// SQLiteStore reads the legacy SQLite message database through DuckDB's
// sqlite extension. The database is attached read-only.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open message database: %w", err)
	}

	db, err := openDuckDB()
	if err != nil {
		return nil, err
	}

	statements := []struct {
		query string
		what  string
	}{
		{"INSTALL sqlite", "install sqlite extension"},
		{"LOAD sqlite", "load sqlite extension"},
		{fmt.Sprintf("ATTACH '%s' AS claude (TYPE SQLITE, READ_ONLY)", quoteLiteral(path)), "attach " + path},
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.query); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to %s: %w", stmt.what, err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// openDuckDB opens an in-memory DuckDB limited to one connection, so
// extensions loaded and databases attached stay visible to every query.
func openDuckDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func (s *SQLiteStore) Since(ctx context.Context, cursor int64, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message, timestamp FROM claude."+DefaultTable+" WHERE timestamp > ? ORDER BY timestamp ASC LIMIT ?",
		cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var message sql.NullString
		var timestamp sql.NullInt64
		if err := rows.Scan(&message, &timestamp); err != nil {
			return records, fmt.Errorf("failed to scan message: %w", err)
		}
		if !timestamp.Valid {
			continue
		}
		rec := Record{Timestamp: timestamp.Int64}
		if message.Valid {
			rec.Message = []byte(message.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads records from a Postgres table with the same
// (message, timestamp) shape as the legacy database.
type PostgresStore struct {
	pool  *pgxpool.Pool
	query string
}

func OpenPostgres(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		pool:  pool,
		query: `SELECT message::text, "timestamp" FROM ` + table + ` WHERE "timestamp" > $1 ORDER BY "timestamp" ASC LIMIT $2`,
	}, nil
}

func (s *PostgresStore) Since(ctx context.Context, cursor int64, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, s.query, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var message *string
		var timestamp *int64
		if err := rows.Scan(&message, &timestamp); err != nil {
			return records, fmt.Errorf("failed to scan message: %w", err)
		}
		if timestamp == nil {
			continue
		}
		rec := Record{Timestamp: *timestamp}
		if message != nil {
			rec.Message = []byte(*message)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

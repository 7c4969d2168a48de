package syncqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore mirrors the outbound queue in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sync_queue (
			id TEXT NOT NULL,
			item_type TEXT NOT NULL,
			payload JSONB,
			updated_at BIGINT NOT NULL,
			deleted_at BIGINT,
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (id, item_type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_enqueued ON sync_queue (enqueued_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_type, payload, updated_at, deleted_at
		 FROM sync_queue ORDER BY enqueued_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load sync queue: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Type, &it.Payload, &it.UpdatedAt, &it.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load sync queue: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Put(ctx context.Context, item Item) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_queue (id, item_type, payload, updated_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id, item_type)
		 DO UPDATE SET payload = EXCLUDED.payload,
		               updated_at = EXCLUDED.updated_at,
		               deleted_at = EXCLUDED.deleted_at`,
		item.ID,
		item.Type,
		item.Payload,
		item.UpdatedAt,
		item.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("put sync item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, items []Item) error {
	for _, it := range items {
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM sync_queue WHERE id = $1 AND item_type = $2`,
			it.ID, it.Type,
		); err != nil {
			return fmt.Errorf("delete sync item: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

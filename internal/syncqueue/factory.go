package syncqueue

import "context"

// NewStore picks the queue backend: PostgreSQL when a database URL is
// configured, otherwise a process-local store.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

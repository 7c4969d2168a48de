package syncqueue

import "context"

// Store durably mirrors the outbound queue so pending mutations survive a
// restart. The in-memory queue remains the source of truth at runtime.
type Store interface {
	Load(ctx context.Context) ([]Item, error)
	Put(ctx context.Context, item Item) error
	Delete(ctx context.Context, items []Item) error
	Close() error
}

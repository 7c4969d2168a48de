package syncqueue

import (
	"context"
	"sync"
)

// InMemoryStore keeps the mirror in process memory. Used when no database is
// configured; durability then only spans the process lifetime.
type InMemoryStore struct {
	mu    sync.Mutex
	items []Item
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *InMemoryStore) Put(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == item.ID && s.items[i].Type == item.Type {
			s.items[i] = item
			return nil
		}
	}
	s.items = append(s.items, item)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, del := range items {
		for i := range s.items {
			if s.items[i].ID == del.ID && s.items[i].Type == del.Type {
				s.items = append(s.items[:i], s.items[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

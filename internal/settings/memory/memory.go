package memory

import (
	"context"
	"sort"
	"sync"

	"paymanager/internal/settings"
)

// Store keeps settings in a map. Used for tests and DATA_BACKEND=memory.
type Store struct {
	mu    sync.Mutex
	items map[string]string
}

func New() *Store {
	return &Store{items: map[string]string{}}
}

func (s *Store) Init(_ context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Create(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return settings.ErrDuplicateKey
	}
	s.items[key] = value
	return nil
}

func (s *Store) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return "", settings.ErrNotFound
	}
	return v, nil
}

func (s *Store) GetAll(_ context.Context) ([]settings.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]settings.Entry, 0, len(s.items))
	for k, v := range s.items {
		out = append(out, settings.Entry{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Update(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return settings.ErrNotFound
	}
	s.items[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return settings.ErrNotFound
	}
	delete(s.items, key)
	return nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[string]string{}
	return nil
}

var _ settings.Store = (*Store)(nil)

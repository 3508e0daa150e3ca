// Package memory is an in-process KV used by tests and the memory backend.
package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"glowbudget/internal/storage"
)

// Seed files read by NewFromDir.
const (
	SeedRecordsFile  = "seed_records.json"
	SeedSettingsFile = "seed_settings.json"
)

type Store struct {
	mu    sync.Mutex
	items map[string][]byte
}

func New() *Store {
	return &Store{items: make(map[string][]byte)}
}

// NewFromDir returns a store pre-loaded with the seed files found in base.
// Missing files are skipped; contents are not checked here since the ledger
// already tolerates corrupt documents.
func NewFromDir(base string) *Store {
	s := New()
	seeds := map[string]string{
		storage.RecordsKey:  SeedRecordsFile,
		storage.SettingsKey: SeedSettingsFile,
	}
	for key, name := range seeds {
		if data, err := os.ReadFile(filepath.Join(base, name)); err == nil {
			s.items[key] = data
		}
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) PutAll(ctx context.Context, entries ...storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.items[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

// Ping implements storage.Pinger.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len reports how many keys are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

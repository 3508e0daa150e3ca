package storage

import (
	"context"
	"errors"
)

// Keys under which the ledger persists its two documents.
const (
	RecordsKey  = "glowbudget:data:v1"
	SettingsKey = "glowbudget:settings:v1"
)

var ErrNotFound = errors.New("key not found")

// Entry is a single key/value pair written by PutAll.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the key-value port the ledger persists through. PutAll and Delete
// must be all-or-nothing.
type KV interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	PutAll(ctx context.Context, entries ...Entry) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

package backend

import (
	"context"

	"glowbudget/internal/ledger"
	"glowbudget/internal/storage"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// BackendResult is what the ledger needs from a backend. Notifier is nil
// when notifications are disabled or the broker was unreachable.
type BackendResult struct {
	KV       storage.KV
	Notifier ledger.Notifier
	Cleanup  CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

package ledger

import (
	"context"
	"time"
)

// EventKind names what a commit changed.
type EventKind string

const (
	EventRecordCreated     EventKind = "record.created"
	EventRecordUpdated     EventKind = "record.updated"
	EventRecordDeleted     EventKind = "record.deleted"
	EventCategoriesChanged EventKind = "categories.changed"
	EventSettingsChanged   EventKind = "settings.changed"
	EventDataImported      EventKind = "data.imported"
	EventDataReset         EventKind = "data.reset"
)

// ChangeEvent describes a committed change. It carries no record content.
type ChangeEvent struct {
	Kind        EventKind `json:"kind"`
	RecordID    string    `json:"recordId,omitempty"`
	RecordCount int       `json:"recordCount"`
	At          time.Time `json:"at"`
}

// Notifier receives change events. Failures are logged by the Store and
// never undo the commit.
type Notifier interface {
	Notify(ctx context.Context, ev ChangeEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev ChangeEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}

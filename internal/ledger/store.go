// Package ledger owns the record collection and the settings document.
//
// A Store is the only writer. Every command validates its input, builds the
// next state on a copy, persists it and only then makes it visible, so a
// failed write leaves the previous state untouched. Commands are serialized
// by a mutex, which gives them the run-to-completion semantics of a single
// UI thread.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	notifier Notifier
	logger   *log.Logger
	sl       *log.StructuredLogger
	now      func() time.Time
	newID    func() string

	records  []core.Record
	settings core.Settings
}

type Option func(*Store)

// WithNotifier publishes a ChangeEvent after every successful commit.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return "rec_" + uuid.NewString()
}

// Open loads the persisted state. Missing or unreadable documents fall back
// to an empty collection and default settings; only storage failures are
// returned as errors.
func Open(ctx context.Context, kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     kv,
		logger: log.New(log.DefaultConfig()),
		now:    time.Now,
		newID:  NewRecordID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.sl = log.NewStructuredLogger(s.logger)

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rawRecords, err := s.read(ctx, storage.RecordsKey)
	if err != nil {
		return err
	}
	rawSettings, err := s.read(ctx, storage.SettingsKey)
	if err != nil {
		return err
	}

	records, corrupt := core.DecodeRecords(rawRecords)
	if corrupt {
		s.logger.WarnContext(ctx, "Stored records unreadable, starting empty", "key", storage.RecordsKey)
	}
	settings, corrupt := core.DecodeSettings(rawSettings)
	if corrupt {
		s.logger.WarnContext(ctx, "Stored settings unreadable, using defaults", "key", storage.SettingsKey)
	}
	if core.EnsureCategories(&settings, records) {
		s.logger.InfoContext(ctx, "Restored categories referenced by records", "categories", len(settings.Categories))
	}

	s.records = records
	s.settings = settings
	s.logger.InfoContext(ctx, "Ledger loaded", log.FieldRecordCount, len(records))
	return nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Snapshot returns copies of the current records and settings.
func (s *Store) Snapshot() ([]core.Record, core.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records), s.settings.Clone()
}

func (s *Store) Records() []core.Record {
	records, _ := s.Snapshot()
	return records
}

func (s *Store) Settings() core.Settings {
	_, settings := s.Snapshot()
	return settings
}

// Ready reports whether the backing store is reachable.
func (s *Store) Ready(ctx context.Context) error {
	if p, ok := s.kv.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// draft is the next state a command builds before it is committed.
type draft struct {
	records       []core.Record
	settings      core.Settings
	recordsDirty  bool
	settingsDirty bool
}

// apply runs fn on a copy of the state and commits the result. fn returns
// the id of the affected record, if any, for the change event.
func (s *Store) apply(ctx context.Context, kind EventKind, fn func(d *draft) (string, error)) error {
	s.mu.Lock()
	d := &draft{records: slices.Clone(s.records), settings: s.settings.Clone()}
	recordID, err := fn(d)
	if err == nil && d.recordsDirty && core.EnsureCategories(&d.settings, d.records) {
		d.settingsDirty = true
	}
	if err == nil {
		err = s.persist(ctx, d)
	}
	if err == nil {
		s.records = d.records
		s.settings = d.settings
	}
	count := len(s.records)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(ctx, ChangeEvent{Kind: kind, RecordID: recordID, RecordCount: count, At: s.now().UTC()})
	return nil
}

func (s *Store) persist(ctx context.Context, d *draft) error {
	var entries []storage.Entry
	if d.recordsDirty {
		data, err := json.Marshal(d.records)
		if err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
		entries = append(entries, storage.Entry{Key: storage.RecordsKey, Value: data})
	}
	if d.settingsDirty {
		data, err := json.Marshal(d.settings)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		entries = append(entries, storage.Entry{Key: storage.SettingsKey, Value: data})
	}
	if len(entries) == 0 {
		return nil
	}
	if err := s.kv.PutAll(ctx, entries...); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, ev ChangeEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Change notification failed", "kind", ev.Kind, log.FieldError, err)
	}
}

func (s *Store) timestamp() string {
	return core.Timestamp(s.now())
}

func indexOf(records []core.Record, id string) int {
	return slices.IndexFunc(records, func(r core.Record) bool { return r.ID == id })
}

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/storage"
)

// ImportError explains why an import file was rejected. Index is the
// zero-based position of the offending record, or -1 when the file as a whole
// is malformed.
type ImportError struct {
	Index   int
	Message string
}

func (e *ImportError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("record %d: %s", e.Index+1, e.Message)
}

// ImportResult summarizes a committed import.
type ImportResult struct {
	Records         int
	CategoriesAdded []string
}

// Import replaces every record with the contents of data. The whole file is
// checked before anything changes; categories are only ever added.
func (s *Store) Import(ctx context.Context, data []byte, confirmed bool) (ImportResult, error) {
	if !confirmed {
		return ImportResult{}, core.ErrNotConfirmed
	}
	records, err := DecodeImport(data)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err = s.apply(ctx, EventDataImported, func(d *draft) (string, error) {
		before := len(d.settings.Categories)
		d.records = records
		d.recordsDirty = true
		if core.EnsureCategories(&d.settings, d.records) {
			d.settingsDirty = true
			result.CategoriesAdded = append([]string(nil), d.settings.Categories[before:]...)
		}
		result.Records = len(records)
		return "", nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.InfoContext(ctx, "Records imported",
		log.FieldRecordCount, result.Records,
		"categories_added", len(result.CategoriesAdded),
		log.FieldOperation, log.OpImport)
	return result, nil
}

// Export returns every record as an indented JSON array.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	records := s.Records()
	if records == nil {
		records = []core.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	s.logger.DebugContext(ctx, "Records exported", log.FieldRecordCount, len(records))
	return data, nil
}

// Reset deletes all stored data and returns to an empty ledger with default
// settings.
func (s *Store) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return core.ErrNotConfirmed
	}
	s.mu.Lock()
	err := s.kv.Delete(ctx, storage.RecordsKey, storage.SettingsKey)
	if err == nil {
		s.records = nil
		s.settings = core.DefaultSettings()
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}

	s.logger.WarnContext(ctx, "Ledger reset", log.FieldOperation, log.OpReset)
	s.notify(ctx, ChangeEvent{Kind: EventDataReset, At: s.now().UTC()})
	return nil
}

// DecodeImport parses an import file. It returns *ImportError for any
// structural problem.
func DecodeImport(data []byte) ([]core.Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		if !json.Valid(data) {
			return nil, &ImportError{Index: -1, Message: "file is not valid JSON"}
		}
		return nil, &ImportError{Index: -1, Message: "expected a JSON array of records"}
	}
	if items == nil {
		return nil, &ImportError{Index: -1, Message: "expected a JSON array of records"}
	}

	records := make([]core.Record, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		rec, msg := decodeImportRecord(item)
		if msg != "" {
			return nil, &ImportError{Index: i, Message: msg}
		}
		if seen[rec.ID] {
			return nil, &ImportError{Index: i, Message: "duplicate id"}
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, nil
}

func decodeImportRecord(raw json.RawMessage) (core.Record, string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return core.Record{}, "not an object"
	}

	var rec core.Record
	var ok bool
	if rec.ID, ok = stringField(obj, "id"); !ok || rec.ID == "" {
		return core.Record{}, "bad id"
	}
	if rec.Description, ok = stringField(obj, "description"); !ok {
		return core.Record{}, "bad description"
	}
	if rec.Amount, ok = numberField(obj, "amount"); !ok {
		return core.Record{}, "bad amount"
	}
	if rec.Category, ok = stringField(obj, "category"); !ok {
		return core.Record{}, "bad category"
	}
	if rec.Date, ok = stringField(obj, "date"); !ok {
		return core.Record{}, "bad date"
	}
	if rec.CreatedAt, ok = stringField(obj, "createdAt"); !ok {
		return core.Record{}, "bad createdAt"
	}
	if rec.UpdatedAt, ok = stringField(obj, "updatedAt"); !ok {
		return core.Record{}, "bad updatedAt"
	}
	if v, present := obj["notes"]; present && !isNull(v) {
		if rec.Notes, ok = stringField(obj, "notes"); !ok {
			return core.Record{}, "bad notes"
		}
	}
	return rec, ""
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// numberField accepts JSON numbers only; strings that look numeric are
// rejected.
func numberField(obj map[string]json.RawMessage, key string) (float64, bool) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

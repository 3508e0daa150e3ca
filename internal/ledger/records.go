package ledger

import (
	"context"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/validate"
)

// AddRecord validates in and appends a new record. A category not yet in the
// settings list is added to it in the same commit. Validation failures are
// returned as validate.FieldErrors.
func (s *Store) AddRecord(ctx context.Context, in validate.RecordInput) (core.Record, error) {
	res := validate.ValidateRecord(in)
	if !res.OK() {
		return core.Record{}, res.Errors
	}

	var rec core.Record
	err := s.apply(ctx, EventRecordCreated, func(d *draft) (string, error) {
		ts := s.timestamp()
		rec = core.Record{
			ID:          s.newID(),
			Description: res.Normalized.Description,
			Amount:      res.Normalized.Amount,
			Category:    in.Category,
			Date:        in.Date,
			Notes:       in.Notes,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		d.records = append(d.records, rec)
		d.recordsDirty = true
		return rec.ID, nil
	})
	if err != nil {
		return core.Record{}, err
	}
	s.sl.LogRecordChange(ctx, log.OpCreate, rec.ID, rec.Category, rec.Amount)
	return rec, nil
}

// UpdateRecord replaces the editable fields of the record with id. The id and
// createdAt are kept; updatedAt never moves before createdAt.
func (s *Store) UpdateRecord(ctx context.Context, id string, in validate.RecordInput) (core.Record, error) {
	res := validate.ValidateRecord(in)
	if !res.OK() {
		return core.Record{}, res.Errors
	}

	var rec core.Record
	err := s.apply(ctx, EventRecordUpdated, func(d *draft) (string, error) {
		i := indexOf(d.records, id)
		if i < 0 {
			return "", core.ErrRecordNotFound
		}
		old := d.records[i]
		ts := s.timestamp()
		if ts < old.CreatedAt {
			ts = old.CreatedAt
		}
		rec = core.Record{
			ID:          old.ID,
			Description: res.Normalized.Description,
			Amount:      res.Normalized.Amount,
			Category:    in.Category,
			Date:        in.Date,
			Notes:       in.Notes,
			CreatedAt:   old.CreatedAt,
			UpdatedAt:   ts,
		}
		d.records[i] = rec
		d.recordsDirty = true
		return rec.ID, nil
	})
	if err != nil {
		return core.Record{}, err
	}
	s.sl.LogRecordChange(ctx, log.OpUpdate, rec.ID, rec.Category, rec.Amount)
	return rec, nil
}

// DeleteRecord removes the record with id. Nothing happens unless the caller
// has confirmed the deletion.
func (s *Store) DeleteRecord(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return core.ErrNotConfirmed
	}
	var removed core.Record
	err := s.apply(ctx, EventRecordDeleted, func(d *draft) (string, error) {
		i := indexOf(d.records, id)
		if i < 0 {
			return "", core.ErrRecordNotFound
		}
		removed = d.records[i]
		d.records = append(d.records[:i], d.records[i+1:]...)
		d.recordsDirty = true
		return id, nil
	})
	if err != nil {
		return err
	}
	s.sl.LogRecordChange(ctx, log.OpDelete, removed.ID, removed.Category, removed.Amount)
	return nil
}

// Record returns the record with id.
func (s *Store) Record(id string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.records, id)
	if i < 0 {
		return core.Record{}, core.ErrRecordNotFound
	}
	return s.records[i], nil
}

// Package ledger is the append-only attendance record store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

// Ledger appends and queries attendance records. Records are never updated
// or deleted; appending never rejects and never deduplicates.
type Ledger struct {
	store storage.Store
	now   func() time.Time
}

// New creates a ledger backed by the given store.
func New(store storage.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// All returns every record ever appended, in append order.
func (l *Ledger) All(ctx context.Context) ([]model.AttendanceRecord, error) {
	data, err := l.store.Get(ctx, storage.KeyAttendanceRecords)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []model.AttendanceRecord{}, nil
		}
		return nil, err
	}
	var records []model.AttendanceRecord
	if err := storage.DecodeJSON(storage.KeyAttendanceRecords, data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	return records, nil
}

// ByUser returns the records for a single user.
func (l *Ledger) ByUser(ctx context.Context, userID string) ([]model.AttendanceRecord, error) {
	records, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.AttendanceRecord{}
	for _, r := range records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Today returns the records whose timestamp falls on the current local
// calendar day. Two timestamps are the same day iff their local-midnight
// truncations are equal, so 11:59 PM yesterday and 12:01 AM today are
// different days even though less than 24h apart.
func (l *Ledger) Today(ctx context.Context) ([]model.AttendanceRecord, error) {
	records, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	today := startOfDay(l.now())
	out := []model.AttendanceRecord{}
	for _, r := range records {
		if startOfDay(time.UnixMilli(r.Timestamp)).Equal(today) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Append adds one record and rewrites the collection.
func (l *Ledger) Append(ctx context.Context, record model.AttendanceRecord) error {
	records, err := l.All(ctx)
	if err != nil {
		return err
	}
	records = append(records, record)
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return l.store.Set(ctx, storage.KeyAttendanceRecords, data)
}

// startOfDay truncates t to local midnight.
func startOfDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

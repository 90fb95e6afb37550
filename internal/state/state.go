// Package state persists the tracked courses as a single JSON document.
//
// Backends only move bytes in and out of one slot, the document format,
// error kinds and reporting live here so every backend behaves the same.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gradewatch/internal/components/assert"
	"gradewatch/internal/components/chrono"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/course"
	"gradewatch/internal/watcherr"
)

const (
	report_store_load = "store.load"
	report_store_save = "store.save"
)

// DocumentID is the fixed id of the only document.
const DocumentID = "state"

// Store is what the scheduler persists through.
type Store interface {
	// Load returns an empty state with a nil error when nothing was saved yet.
	Load(ctx context.Context) (course.TrackedState, error)
	// Save overwrites the whole document.
	Save(ctx context.Context, state course.TrackedState) error
	Close() error
}

// Backend stores one opaque document.
type Backend interface {
	// Get returns nil bytes and a nil error when there is no document.
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, document []byte, updatedAt time.Time) error
	Close() error
}

// Document is the persisted form of course.TrackedState.
type Document struct {
	Pending     []course.Record `json:"pending"`
	Notified    []course.Key    `json:"notified"`
	LastUpdated string          `json:"last_updated"`
	RunID       string          `json:"run_id,omitempty"`
}

func (d Document) State() course.TrackedState {
	s := course.TrackedState{Pending: d.Pending, Notified: d.Notified}
	s.Normalize()
	return s
}

// UpdatedAt parses LastUpdated, the zero time when it is missing or malformed.
func (d Document) UpdatedAt() time.Time {
	t, err := time.Parse(time.RFC3339, d.LastUpdated)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Encode renders state as a document stamped with now in the portal's timezone.
func Encode(s course.TrackedState, now time.Time, runID string) ([]byte, error) {
	doc := Document{
		Pending:     s.Pending,
		Notified:    s.Notified,
		LastUpdated: now.In(chrono.Dhaka()).Format(time.RFC3339),
		RunID:       runID,
	}
	if doc.Pending == nil {
		doc.Pending = []course.Record{}
	}
	if doc.Notified == nil {
		doc.Notified = []course.Key{}
	}
	return json.Marshal(doc)
}

func Decode(b []byte) (Document, error) {
	var doc Document
	err := json.Unmarshal(b, &doc)
	if err != nil {
		return Document{}, fmt.Errorf("decode state document: %w", err)
	}
	return doc, nil
}

type Options struct {
	Time  chrono.TimeAPI
	RunID string
	Tel   telemetry.API
}

// DocumentStore implements Store on top of any Backend.
type DocumentStore struct {
	backend Backend
	time    chrono.TimeAPI
	runID   string
	tel     telemetry.API
}

func New(backend Backend, opts Options) *DocumentStore {
	assert.NotNil(backend)
	assert.NotNil(opts.Tel)
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}
	return &DocumentStore{
		backend: backend,
		time:    opts.Time,
		runID:   opts.RunID,
		tel:     telemetry.NewScopedAPI("state", opts.Tel),
	}
}

// Document returns the raw document, ok is false when nothing was saved yet.
func (s *DocumentStore) Document(ctx context.Context) (doc Document, ok bool, err error) {
	raw, err := s.backend.Get(ctx)
	if err != nil {
		err = watcherr.Wrap(watcherr.ErrPersistence, "state.load", err)
		s.tel.ReportBroken(report_store_load, err)
		return Document{}, false, err
	}
	if raw == nil {
		return Document{}, false, nil
	}
	doc, err = Decode(raw)
	if err != nil {
		err = watcherr.Wrap(watcherr.ErrPersistence, "state.load", err)
		s.tel.ReportBroken(report_store_load, err)
		return Document{}, false, err
	}
	return doc, true, nil
}

func (s *DocumentStore) Load(ctx context.Context) (course.TrackedState, error) {
	doc, ok, err := s.Document(ctx)
	if err != nil || !ok {
		return course.TrackedState{}, err
	}
	state := doc.State()
	s.tel.ReportDebug("loaded state", "pending", len(state.Pending), "notified", len(state.Notified), "last_updated", doc.LastUpdated)
	return state, nil
}

func (s *DocumentStore) Save(ctx context.Context, state course.TrackedState) error {
	now := s.time.Now()
	raw, err := Encode(state, now, s.runID)
	if err != nil {
		err = watcherr.Wrap(watcherr.ErrPersistence, "state.save", err)
		s.tel.ReportBroken(report_store_save, err)
		return err
	}
	err = s.backend.Put(ctx, raw, now)
	if err != nil {
		err = watcherr.Wrap(watcherr.ErrPersistence, "state.save", err)
		s.tel.ReportBroken(report_store_save, err)
		return err
	}
	s.tel.ReportCount(report_store_save, int64(len(state.Pending)))
	return nil
}

func (s *DocumentStore) Close() error {
	return s.backend.Close()
}

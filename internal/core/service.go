// Package core implements the server-side note service: validation and
// ownership-scoped mutations over a persistent store, with pluggable logging,
// metrics, and audit seams.
package core

import (
	"context"
	"strings"
	"time"

	"jaspynotes/pkg/domain"
)

// Service exposes the note operations consumed by the HTTP adapter. Every
// mutation is scoped to the calling owner; the store reports the merged
// "not found or unauthorized" failure for rows it will not touch.
type Service struct {
	store   domain.Store
	logger  Logger
	clock   Clock
	metrics MetricsRecorder
	audit   AuditRecorder
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		clock:   ClockFunc(time.Now),
		metrics: noopMetricsRecorder{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.Store { return s.store }

// ListNotes returns the owner's notes ordered by display order.
func (s *Service) ListNotes(ctx context.Context, ownerID int64) ([]domain.Note, error) {
	var notes []domain.Note
	err := s.instrument(ctx, "list_notes", ownerID, 0, func() error {
		var err error
		notes, err = s.store.ListNotes(ctx, ownerID)
		return err
	})
	return notes, err
}

// CreateNote validates and persists a new note with its subitems atomically.
func (s *Service) CreateNote(ctx context.Context, ownerID int64, note domain.NewNote) (int64, error) {
	if strings.TrimSpace(note.Title) == "" {
		return 0, domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !note.Type.Valid() {
		return 0, domain.ValidationError{Field: "noteType", Reason: "must be freetext or subitems"}
	}
	var id int64
	err := s.instrument(ctx, "create_note", ownerID, 0, func() error {
		var err error
		id, err = s.store.CreateNote(ctx, ownerID, note)
		return err
	})
	return id, err
}

// DeleteNote removes an owned note; survivors keep a contiguous display order.
func (s *Service) DeleteNote(ctx context.Context, ownerID, noteID int64) error {
	return s.instrument(ctx, "delete_note", ownerID, noteID, func() error {
		return s.store.DeleteNote(ctx, ownerID, noteID)
	})
}

// UpdateNoteTitle replaces the title of an owned note.
func (s *Service) UpdateNoteTitle(ctx context.Context, ownerID, noteID int64, title string) error {
	if strings.TrimSpace(title) == "" {
		return domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return s.instrument(ctx, "update_note_title", ownerID, noteID, func() error {
		return s.store.UpdateNoteTitle(ctx, ownerID, noteID, title)
	})
}

// UpdateNoteBody replaces the body of an owned note.
func (s *Service) UpdateNoteBody(ctx context.Context, ownerID, noteID int64, body string) error {
	return s.instrument(ctx, "update_note_body", ownerID, noteID, func() error {
		return s.store.UpdateNoteBody(ctx, ownerID, noteID, body)
	})
}

// CreateSubitem appends an unchecked subitem to an owned note.
func (s *Service) CreateSubitem(ctx context.Context, ownerID, noteID int64, text string) (int64, error) {
	var id int64
	err := s.instrument(ctx, "create_subitem", ownerID, noteID, func() error {
		var err error
		id, err = s.store.CreateSubitem(ctx, ownerID, noteID, text)
		return err
	})
	return id, err
}

// UpdateSubitemChecked sets the checked state of an owned subitem.
func (s *Service) UpdateSubitemChecked(ctx context.Context, ownerID, subitemID int64, checked bool) error {
	return s.instrument(ctx, "update_subitem_checkbox", ownerID, subitemID, func() error {
		return s.store.UpdateSubitemChecked(ctx, ownerID, subitemID, checked)
	})
}

// UpdateSubitemText replaces the text of an owned subitem.
func (s *Service) UpdateSubitemText(ctx context.Context, ownerID, subitemID int64, text string) error {
	return s.instrument(ctx, "update_subitem_text", ownerID, subitemID, func() error {
		return s.store.UpdateSubitemText(ctx, ownerID, subitemID, text)
	})
}

// DeleteSubitem removes an owned subitem.
func (s *Service) DeleteSubitem(ctx context.Context, ownerID, subitemID int64) error {
	return s.instrument(ctx, "delete_subitem", ownerID, subitemID, func() error {
		return s.store.DeleteSubitem(ctx, ownerID, subitemID)
	})
}

// ReorderNotes atomically assigns display order by position in noteIDs. The
// whole operation aborts when the id list is not exactly the owner's note set.
func (s *Service) ReorderNotes(ctx context.Context, ownerID int64, noteIDs []int64) error {
	return s.instrument(ctx, "reorder_notes", ownerID, 0, func() error {
		return s.store.ReorderNotes(ctx, ownerID, noteIDs)
	})
}

func (s *Service) instrument(ctx context.Context, op string, ownerID, entityID int64, fn func() error) error {
	start := s.clock.Now()
	err := fn()
	duration := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	status := AuditStatusOK
	if err != nil {
		status = AuditStatusError
		s.logger.Error("operation failed", "op", op, "owner", ownerID, "err", err)
	} else {
		s.logger.Debug("operation applied", "op", op, "owner", ownerID)
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		OwnerID:   ownerID,
		EntityID:  entityID,
		Status:    status,
		At:        start,
	})
	return err
}

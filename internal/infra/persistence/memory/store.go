// Package memory provides an in-process Store used by tests and by the memory
// database driver. It mirrors the relational backends' semantics exactly,
// including ownership scoping and display-order renumbering.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"jaspynotes/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Store keeps all state in maps guarded by one mutex.
type Store struct {
	mu         sync.Mutex
	nextNoteID int64
	nextSubID  int64
	nextUserID int64
	notes      map[int64]*domain.Note
	subitems   map[int64]*domain.Subitem
	users      map[int64]*domain.User
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		notes:    make(map[int64]*domain.Note),
		subitems: make(map[int64]*domain.Subitem),
		users:    make(map[int64]*domain.User),
	}
}

func (s *Store) ownedNotes(ownerID int64) []*domain.Note {
	var owned []*domain.Note
	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			owned = append(owned, n)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].DisplayOrder < owned[j].DisplayOrder })
	return owned
}

func (s *Store) noteSubitems(noteID int64) []domain.Subitem {
	items := make([]domain.Subitem, 0)
	for _, it := range s.subitems {
		if it.NoteID == noteID {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SubitemID < items[j].SubitemID })
	return items
}

// ListNotes returns the owner's notes in display order with nested subitems.
func (s *Store) ListNotes(_ context.Context, ownerID int64) ([]domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.ownedNotes(ownerID)
	out := make([]domain.Note, 0, len(owned))
	for _, n := range owned {
		cp := *n
		cp.Subitems = s.noteSubitems(n.NoteID)
		out = append(out, cp)
	}
	return out, nil
}

// CreateNote inserts the note and its subitems atomically.
func (s *Store) CreateNote(_ context.Context, ownerID int64, note domain.NewNote) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.ownedNotes(ownerID))
	order := note.DisplayOrder
	if order < 0 || order > count {
		order = count
	}
	if order < count {
		// Shift later notes right so the permutation stays contiguous.
		for _, n := range s.ownedNotes(ownerID) {
			if n.DisplayOrder >= order {
				n.DisplayOrder++
			}
		}
	}
	s.nextNoteID++
	id := s.nextNoteID
	s.notes[id] = &domain.Note{
		NoteID:       id,
		OwnerID:      ownerID,
		Title:        note.Title,
		Type:         note.Type,
		Body:         note.Body,
		DisplayOrder: order,
	}
	for _, item := range note.Subitems {
		s.nextSubID++
		s.subitems[s.nextSubID] = &domain.Subitem{
			SubitemID: s.nextSubID,
			NoteID:    id,
			Text:      item.Text,
			IsChecked: item.IsChecked,
		}
	}
	return id, nil
}

// DeleteNote removes an owned note, its subitems, and closes the order gap.
func (s *Store) DeleteNote(_ context.Context, ownerID, noteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
	}
	removed := n.DisplayOrder
	delete(s.notes, noteID)
	for id, it := range s.subitems {
		if it.NoteID == noteID {
			delete(s.subitems, id)
		}
	}
	for _, other := range s.ownedNotes(ownerID) {
		if other.DisplayOrder > removed {
			other.DisplayOrder--
		}
	}
	return nil
}

// UpdateNoteTitle sets the title of an owned note.
func (s *Store) UpdateNoteTitle(_ context.Context, ownerID, noteID int64, title string) error {
	return s.updateNote(ownerID, noteID, func(n *domain.Note) { n.Title = title })
}

// UpdateNoteBody sets the body of an owned note.
func (s *Store) UpdateNoteBody(_ context.Context, ownerID, noteID int64, body string) error {
	return s.updateNote(ownerID, noteID, func(n *domain.Note) { n.Body = body })
}

func (s *Store) updateNote(ownerID, noteID int64, mutate func(*domain.Note)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
	}
	mutate(n)
	return nil
}

// CreateSubitem appends an unchecked subitem to an owned note.
func (s *Store) CreateSubitem(_ context.Context, ownerID, noteID int64, text string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return 0, domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
	}
	s.nextSubID++
	id := s.nextSubID
	s.subitems[id] = &domain.Subitem{SubitemID: id, NoteID: noteID, Text: text}
	return id, nil
}

// UpdateSubitemChecked sets the checked state of an owned subitem.
func (s *Store) UpdateSubitemChecked(_ context.Context, ownerID, subitemID int64, checked bool) error {
	return s.updateSubitem(ownerID, subitemID, func(it *domain.Subitem) { it.IsChecked = checked })
}

// UpdateSubitemText sets the text of an owned subitem.
func (s *Store) UpdateSubitemText(_ context.Context, ownerID, subitemID int64, text string) error {
	return s.updateSubitem(ownerID, subitemID, func(it *domain.Subitem) { it.Text = text })
}

func (s *Store) updateSubitem(ownerID, subitemID int64, mutate func(*domain.Subitem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.ownedSubitem(ownerID, subitemID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntitySubitem, ID: subitemID}
	}
	mutate(it)
	return nil
}

// DeleteSubitem removes an owned subitem.
func (s *Store) DeleteSubitem(_ context.Context, ownerID, subitemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ownedSubitem(ownerID, subitemID); !ok {
		return domain.ErrNotFound{Entity: domain.EntitySubitem, ID: subitemID}
	}
	delete(s.subitems, subitemID)
	return nil
}

func (s *Store) ownedSubitem(ownerID, subitemID int64) (*domain.Subitem, bool) {
	it, ok := s.subitems[subitemID]
	if !ok {
		return nil, false
	}
	n, ok := s.notes[it.NoteID]
	if !ok || n.OwnerID != ownerID {
		return nil, false
	}
	return it, true
}

// ReorderNotes assigns display order by list position, all or nothing.
func (s *Store) ReorderNotes(_ context.Context, ownerID int64, noteIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.ownedNotes(ownerID)
	if len(noteIDs) != len(owned) {
		return domain.ErrNotFound{Entity: domain.EntityNote, ID: 0}
	}
	seen := make(map[int64]bool, len(noteIDs))
	for _, id := range noteIDs {
		n, ok := s.notes[id]
		if !ok || n.OwnerID != ownerID || seen[id] {
			return domain.ErrNotFound{Entity: domain.EntityNote, ID: id}
		}
		seen[id] = true
	}
	for pos, id := range noteIDs {
		s.notes[id].DisplayOrder = pos
	}
	return nil
}

// CreateUser registers an account with a unique username.
func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return 0, domain.ErrUsernameTaken{Username: username}
		}
	}
	s.nextUserID++
	id := s.nextUserID
	s.users[id] = &domain.User{UserID: id, Username: username, PasswordHash: passwordHash}
	return id, nil
}

// UserByName fetches an account by exact username.
func (s *Store) UserByName(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: 0}
}

// Close implements domain.Store; the memory backend holds no resources.
func (s *Store) Close() error { return nil }

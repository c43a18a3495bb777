// Package sync implements the client-resident synchronization engine. The
// engine holds the current note collection as the single source of truth for
// the rendering layer and keeps it consistent with the server through
// request/response plus optimistic local mutation.
//
// Reconciliation policy: structural changes (add/delete of notes and subitems)
// commit locally only after server confirmation; scalar field edits (subitem
// checkbox and text) apply optimistically and revert to the captured
// pre-mutation value on failure; a failed order commit triggers a refetch of
// server truth.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"jaspynotes/pkg/domain"
)

// Config carries the engine's injected collaborators.
type Config struct {
	// BaseURL is the server root, e.g. "https://notes.example.com".
	BaseURL string
	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
	// Token returns the current bearer credential ("" when logged out).
	Token func() string
	// OnSessionExpired is invoked once per 401 response before the call
	// returns ErrSessionExpired. Optional.
	OnSessionExpired func()
	// OnChange is invoked after every local state change so the rendering
	// layer can redraw. Optional. Called without the engine lock held.
	OnChange func()
}

// Engine is the client synchronization engine. All exported methods are safe
// for concurrent use; local state is guarded by one mutex that is never held
// across a server round trip, so two in-flight edits to the same field resolve
// last-response-wins.
type Engine struct {
	baseURL          string
	client           *http.Client
	token            func() string
	onSessionExpired func()
	onChange         func()

	mu    sync.Mutex
	notes []domain.Note
}

// NewEngine constructs an engine from explicit collaborators.
func NewEngine(cfg Config) *Engine {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	token := cfg.Token
	if token == nil {
		token = func() string { return "" }
	}
	return &Engine{
		baseURL:          strings.TrimSuffix(cfg.BaseURL, "/"),
		client:           client,
		token:            token,
		onSessionExpired: cfg.OnSessionExpired,
		onChange:         cfg.OnChange,
	}
}

// Notes returns a deep copy of the current collection in display order.
func (e *Engine) Notes() []domain.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Note, len(e.notes))
	for i, n := range e.notes {
		cp := n
		cp.Subitems = make([]domain.Subitem, len(n.Subitems))
		copy(cp.Subitems, n.Subitems)
		out[i] = cp
	}
	return out
}

// NoteIDs returns the note ids in current display order.
func (e *Engine) NoteIDs() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, len(e.notes))
	for i, n := range e.notes {
		ids[i] = n.NoteID
	}
	return ids
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

// Load fetches the full ordered collection and replaces local state wholesale.
// Repeated calls are idempotent: each yields current server truth.
func (e *Engine) Load(ctx context.Context) error {
	var resp struct {
		Success bool          `json:"success"`
		Notes   []domain.Note `json:"notes"`
	}
	if err := e.do(ctx, http.MethodGet, "/notes", nil, &resp); err != nil {
		return err
	}
	e.mu.Lock()
	e.notes = resp.Notes
	e.mu.Unlock()
	e.notify()
	return nil
}

// AddNote creates a note server-side and appends it locally on success.
// Creation is not optimistic: a provisional id would need reconciliation, and
// the one-shot submit pattern makes that unnecessary. Subitems submitted with
// the note stay pending (zero id) locally until the next Load.
func (e *Engine) AddNote(ctx context.Context, note domain.NewNote) error {
	if strings.TrimSpace(note.Title) == "" {
		return domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	e.mu.Lock()
	note.DisplayOrder = len(e.notes)
	e.mu.Unlock()

	var resp struct {
		Success bool  `json:"success"`
		NoteID  int64 `json:"noteId"`
	}
	if err := e.do(ctx, http.MethodPost, "/notes", note, &resp); err != nil {
		return err
	}

	created := domain.Note{
		NoteID:       resp.NoteID,
		Title:        note.Title,
		Type:         note.Type,
		Body:         note.Body,
		DisplayOrder: note.DisplayOrder,
		Subitems:     make([]domain.Subitem, 0, len(note.Subitems)),
	}
	for _, item := range note.Subitems {
		created.Subitems = append(created.Subitems, domain.Subitem{
			NoteID:    resp.NoteID,
			Text:      item.Text,
			IsChecked: item.IsChecked,
		})
	}
	e.mu.Lock()
	e.notes = append(e.notes, created)
	e.mu.Unlock()
	e.notify()
	return nil
}

// DeleteNote removes a note after server confirmation, then renumbers the
// survivors so display orders stay contiguous.
func (e *Engine) DeleteNote(ctx context.Context, noteID int64) error {
	body := map[string]int64{"noteId": noteID}
	if err := e.do(ctx, http.MethodDelete, "/notes", body, nil); err != nil {
		return err
	}
	e.mu.Lock()
	for i, n := range e.notes {
		if n.NoteID == noteID {
			e.notes = append(e.notes[:i], e.notes[i+1:]...)
			break
		}
	}
	for i := range e.notes {
		e.notes[i].DisplayOrder = i
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// UpdateNoteTitle replaces the note's title, committing locally on success.
// On failure the error propagates and local state is untouched; the edit UI
// keeps the attempted value for a caller-level retry.
func (e *Engine) UpdateNoteTitle(ctx context.Context, noteID int64, title string) error {
	body := map[string]any{"noteId": noteID, "title": title}
	if err := e.do(ctx, http.MethodPut, "/notes/title", body, nil); err != nil {
		return err
	}
	e.mutateNote(noteID, func(n *domain.Note) { n.Title = title })
	return nil
}

// UpdateNoteBody replaces the note's body, committing locally on success.
func (e *Engine) UpdateNoteBody(ctx context.Context, noteID int64, noteBody string) error {
	body := map[string]any{"noteId": noteID, "body": noteBody}
	if err := e.do(ctx, http.MethodPut, "/notes/body", body, nil); err != nil {
		return err
	}
	e.mutateNote(noteID, func(n *domain.Note) { n.Body = noteBody })
	return nil
}

// AddSubitem persists a new checklist line and appends it locally on success.
// Text that trims to empty is a no-op (the blank trailing placeholder).
func (e *Engine) AddSubitem(ctx context.Context, noteID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	body := map[string]any{"noteId": noteID, "text": text}
	var resp struct {
		Success   bool  `json:"success"`
		SubitemID int64 `json:"subitemId"`
	}
	if err := e.do(ctx, http.MethodPost, "/notes/subitems", body, &resp); err != nil {
		return err
	}
	e.mutateNote(noteID, func(n *domain.Note) {
		n.Subitems = append(n.Subitems, domain.Subitem{
			SubitemID: resp.SubitemID,
			NoteID:    noteID,
			Text:      text,
			IsChecked: false,
		})
	})
	return nil
}

// UpdateSubitemChecked toggles a checkbox optimistically. On failure the
// subitem reverts to the captured pre-call value rather than toggling again,
// so re-entrant calls cannot double-toggle into a wrong state.
func (e *Engine) UpdateSubitemChecked(ctx context.Context, subitemID int64, checked bool) error {
	cmd := e.subitemCommand(subitemID,
		func(it *domain.Subitem) { it.IsChecked = checked },
		func(it *domain.Subitem, prev domain.Subitem) { it.IsChecked = prev.IsChecked },
	)
	cmd.apply()
	body := map[string]any{"isChecked": checked}
	path := fmt.Sprintf("/notes/subitems/checkbox/%d", subitemID)
	if err := e.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		cmd.revert()
		return err
	}
	cmd.commit()
	return nil
}

// UpdateSubitemText replaces a subitem's text optimistically, reverting to the
// pre-call value on failure.
func (e *Engine) UpdateSubitemText(ctx context.Context, subitemID int64, text string) error {
	cmd := e.subitemCommand(subitemID,
		func(it *domain.Subitem) { it.Text = text },
		func(it *domain.Subitem, prev domain.Subitem) { it.Text = prev.Text },
	)
	cmd.apply()
	body := map[string]any{"text": text}
	path := fmt.Sprintf("/notes/subitems/text/%d", subitemID)
	if err := e.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		cmd.revert()
		return err
	}
	cmd.commit()
	return nil
}

// DeleteSubitem removes a checklist line after server confirmation.
func (e *Engine) DeleteSubitem(ctx context.Context, subitemID int64) error {
	path := fmt.Sprintf("/notes/subitems/%d", subitemID)
	if err := e.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	e.mu.Lock()
	for i := range e.notes {
		items := e.notes[i].Subitems
		for j, it := range items {
			if it.SubitemID == subitemID {
				e.notes[i].Subitems = append(items[:j], items[j+1:]...)
				break
			}
		}
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// SwapNotesLocally removes the note at fromIndex and reinserts it at toIndex,
// then reassigns every display order to its new array index. Pure local
// permutation used for live drag feedback; no network call.
func (e *Engine) SwapNotesLocally(fromIndex, toIndex int) {
	e.mu.Lock()
	if fromIndex < 0 || fromIndex >= len(e.notes) || toIndex < 0 || toIndex >= len(e.notes) || fromIndex == toIndex {
		e.mu.Unlock()
		return
	}
	moved := e.notes[fromIndex]
	rest := append(e.notes[:fromIndex], e.notes[fromIndex+1:]...)
	e.notes = append(rest[:toIndex], append([]domain.Note{moved}, rest[toIndex:]...)...)
	for i := range e.notes {
		e.notes[i].DisplayOrder = i
	}
	e.mu.Unlock()
	e.notify()
}

// CommitOrder sends the full ordered id list; the server replaces every
// display order in one transaction. The local permutation is kept regardless
// of outcome ("optimistic and sticky"); on failure the engine refetches server
// truth so client and server cannot stay diverged.
func (e *Engine) CommitOrder(ctx context.Context, noteIDs []int64) error {
	body := map[string]any{"noteIds": noteIDs}
	if err := e.do(ctx, http.MethodPut, "/notes/reorder", body, nil); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		return errors.Join(err, e.Load(ctx))
	}
	return nil
}

func (e *Engine) mutateNote(noteID int64, mutate func(*domain.Note)) {
	e.mu.Lock()
	for i := range e.notes {
		if e.notes[i].NoteID == noteID {
			mutate(&e.notes[i])
			break
		}
	}
	e.mu.Unlock()
	e.notify()
}

// command captures the optimistic mutate/confirm/undo triple for one scalar
// edit. apply runs synchronously before the request; commit and revert run
// from the continuation after the response arrives.
type command struct {
	apply  func()
	commit func()
	revert func()
}

func (e *Engine) subitemCommand(subitemID int64, set func(*domain.Subitem), undo func(*domain.Subitem, domain.Subitem)) command {
	var prev domain.Subitem
	locate := func() *domain.Subitem {
		for i := range e.notes {
			for j := range e.notes[i].Subitems {
				if e.notes[i].Subitems[j].SubitemID == subitemID {
					return &e.notes[i].Subitems[j]
				}
			}
		}
		return nil
	}
	return command{
		apply: func() {
			e.mu.Lock()
			if it := locate(); it != nil {
				prev = *it
				set(it)
			}
			e.mu.Unlock()
			e.notify()
		},
		commit: func() {},
		revert: func() {
			e.mu.Lock()
			if it := locate(); it != nil {
				undo(it, prev)
			}
			e.mu.Unlock()
			e.notify()
		},
	}
}

// do performs one JSON round trip. A 401 anywhere fires the session-expiry
// callback and surfaces ErrSessionExpired; network failures surface as
// TransportError; any other non-2xx response as ServerError carrying the
// server's message.
func (e *Engine) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := e.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		if e.onSessionExpired != nil {
			e.onSessionExpired()
		}
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &ServerError{Status: resp.StatusCode, Message: failure.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

package sync_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"jaspynotes/internal/adapters/httpapi"
	"jaspynotes/internal/auth"
	"jaspynotes/internal/core"
	"jaspynotes/internal/infra/persistence/memory"
	notesync "jaspynotes/internal/sync"
	"jaspynotes/pkg/domain"
)

// flakyTransport fails requests matched by fail with a synthetic network error
// and forwards the rest. count tracks every attempt.
type flakyTransport struct {
	base  http.RoundTripper
	fail  func(r *http.Request) bool
	count int32
}

func (t *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&t.count, 1)
	if t.fail != nil && t.fail(r) {
		return nil, errors.New("connection reset")
	}
	return t.base.RoundTrip(r)
}

// engineFixture runs the real HTTP stack over an in-memory store so engine
// tests exercise the same wire surface production does.
type engineFixture struct {
	t         *testing.T
	server    *httptest.Server
	service   *core.Service
	transport *flakyTransport
	token     string
	ownerID   int64
	expired   int32
	changed   int32
	engine    *notesync.Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := memory.NewStore()
	service := core.NewService(store)
	authService := auth.NewService(store)
	server := httptest.NewServer(httpapi.NewHandler(service, authService))
	t.Cleanup(server.Close)

	token, user, err := authService.Register(context.Background(), "ada", "hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	f := &engineFixture{
		t:         t,
		server:    server,
		service:   service,
		transport: &flakyTransport{base: http.DefaultTransport},
		token:     token,
		ownerID:   user.UserID,
	}
	f.engine = notesync.NewEngine(notesync.Config{
		BaseURL:          server.URL,
		HTTPClient:       &http.Client{Transport: f.transport},
		Token:            func() string { return f.token },
		OnSessionExpired: func() { atomic.AddInt32(&f.expired, 1) },
		OnChange:         func() { atomic.AddInt32(&f.changed, 1) },
	})
	return f
}

// seedNotes creates notes server-side and loads them into the engine.
func (f *engineFixture) seedNotes(titles ...string) []int64 {
	f.t.Helper()
	ctx := context.Background()
	ids := make([]int64, len(titles))
	for i, title := range titles {
		id, err := f.service.CreateNote(ctx, f.ownerID, domain.NewNote{
			Title:        title,
			Type:         domain.NoteTypeSubitems,
			DisplayOrder: 1 << 20, // clamped to append
		})
		if err != nil {
			f.t.Fatalf("seed %s: %v", title, err)
		}
		ids[i] = id
	}
	if err := f.engine.Load(ctx); err != nil {
		f.t.Fatalf("load: %v", err)
	}
	return ids
}

func (f *engineFixture) serverOrder() []int64 {
	f.t.Helper()
	notes, err := f.service.ListNotes(context.Background(), f.ownerID)
	if err != nil {
		f.t.Fatalf("server list: %v", err)
	}
	ids := make([]int64, len(notes))
	for i, n := range notes {
		ids[i] = n.NoteID
	}
	return ids
}

func assertOrder(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order length %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestLoadAndAddNote(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if err := f.engine.Load(ctx); err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if got := f.engine.Notes(); len(got) != 0 {
		t.Fatalf("expected empty collection, got %+v", got)
	}

	err := f.engine.AddNote(ctx, domain.NewNote{
		Title: "Groceries",
		Type:  domain.NoteTypeSubitems,
		Subitems: []domain.NewSubitem{
			{Text: "milk"},
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	notes := f.engine.Notes()
	if len(notes) != 1 || notes[0].NoteID == 0 || notes[0].DisplayOrder != 0 {
		t.Fatalf("unexpected local note %+v", notes)
	}
	// Subitems submitted with the note stay pending until the next load.
	if len(notes[0].Subitems) != 1 || notes[0].Subitems[0].SubitemID != 0 {
		t.Fatalf("unexpected pending subitems %+v", notes[0].Subitems)
	}
	if err := f.engine.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	notes = f.engine.Notes()
	if notes[0].Subitems[0].SubitemID == 0 {
		t.Fatalf("subitem id not reconciled: %+v", notes[0].Subitems)
	}
}

func TestAddNoteBlankTitleRejectedLocally(t *testing.T) {
	f := newEngineFixture(t)

	before := atomic.LoadInt32(&f.transport.count)
	var validation domain.ValidationError
	if err := f.engine.AddNote(context.Background(), domain.NewNote{Title: "  ", Type: domain.NoteTypeFreetext}); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if atomic.LoadInt32(&f.transport.count) != before {
		t.Fatal("rejected note reached the wire")
	}
}

func TestDeleteNoteRenumbers(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c")
	ctx := context.Background()

	if err := f.engine.DeleteNote(ctx, ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	notes := f.engine.Notes()
	assertOrder(t, f.engine.NoteIDs(), []int64{ids[0], ids[2]})
	for i, n := range notes {
		if n.DisplayOrder != i {
			t.Fatalf("local renumbering lost: %+v", notes)
		}
	}
	assertOrder(t, f.serverOrder(), []int64{ids[0], ids[2]})
}

func TestScalarEditsCommitOnSuccess(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("draft")
	ctx := context.Background()

	if err := f.engine.UpdateNoteTitle(ctx, ids[0], "final"); err != nil {
		t.Fatalf("title: %v", err)
	}
	if err := f.engine.UpdateNoteBody(ctx, ids[0], "all done"); err != nil {
		t.Fatalf("body: %v", err)
	}
	if err := f.engine.AddSubitem(ctx, ids[0], "milk"); err != nil {
		t.Fatalf("subitem: %v", err)
	}

	note := f.engine.Notes()[0]
	if note.Title != "final" || note.Body != "all done" {
		t.Fatalf("edits not committed: %+v", note)
	}
	if len(note.Subitems) != 1 || note.Subitems[0].SubitemID == 0 || note.Subitems[0].Text != "milk" {
		t.Fatalf("unexpected subitem %+v", note.Subitems)
	}

	itemID := note.Subitems[0].SubitemID
	if err := f.engine.UpdateSubitemChecked(ctx, itemID, true); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := f.engine.UpdateSubitemText(ctx, itemID, "oat milk"); err != nil {
		t.Fatalf("text: %v", err)
	}
	if err := f.engine.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	item := f.engine.Notes()[0].Subitems[0]
	if !item.IsChecked || item.Text != "oat milk" {
		t.Fatalf("server disagrees: %+v", item)
	}
}

func TestUpdateTitleFailureLeavesStateUntouched(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("keep")

	f.transport.fail = func(r *http.Request) bool {
		return r.Method == http.MethodPut && r.URL.Path == "/notes/title"
	}
	var transport *notesync.TransportError
	err := f.engine.UpdateNoteTitle(context.Background(), ids[0], "lost")
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if got := f.engine.Notes()[0].Title; got != "keep" {
		t.Fatalf("failed edit applied: %q", got)
	}
}

func TestCheckboxRevertsToPreCallValue(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("list")
	ctx := context.Background()

	if err := f.engine.AddSubitem(ctx, ids[0], "milk"); err != nil {
		t.Fatalf("subitem: %v", err)
	}
	itemID := f.engine.Notes()[0].Subitems[0].SubitemID

	f.transport.fail = func(r *http.Request) bool {
		return r.Method == http.MethodPatch
	}

	err := f.engine.UpdateSubitemChecked(ctx, itemID, true)
	var transport *notesync.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if item := f.engine.Notes()[0].Subitems[0]; item.IsChecked {
		t.Fatalf("checkbox not reverted: %+v", item)
	}

	// Reverting restores the captured value; a second failed attempt from the
	// same state must land in the same place, not toggle onward.
	err = f.engine.UpdateSubitemChecked(ctx, itemID, true)
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if item := f.engine.Notes()[0].Subitems[0]; item.IsChecked {
		t.Fatalf("double failure toggled state: %+v", item)
	}

	if err := f.engine.UpdateSubitemText(ctx, itemID, "renamed"); err == nil {
		t.Fatal("expected text failure")
	}
	if item := f.engine.Notes()[0].Subitems[0]; item.Text != "milk" {
		t.Fatalf("text not reverted: %+v", item)
	}
}

func TestAddSubitemBlankIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("list")

	before := atomic.LoadInt32(&f.transport.count)
	if err := f.engine.AddSubitem(context.Background(), ids[0], "   "); err != nil {
		t.Fatalf("blank subitem: %v", err)
	}
	if atomic.LoadInt32(&f.transport.count) != before {
		t.Fatal("blank subitem reached the wire")
	}
	if got := f.engine.Notes()[0].Subitems; len(got) != 0 {
		t.Fatalf("blank subitem appended: %+v", got)
	}
}

func TestDeleteSubitemConfirmsFirst(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("list")
	ctx := context.Background()

	if err := f.engine.AddSubitem(ctx, ids[0], "milk"); err != nil {
		t.Fatalf("subitem: %v", err)
	}
	itemID := f.engine.Notes()[0].Subitems[0].SubitemID

	f.transport.fail = func(r *http.Request) bool {
		return r.Method == http.MethodDelete
	}
	if err := f.engine.DeleteSubitem(ctx, itemID); err == nil {
		t.Fatal("expected delete failure")
	}
	if got := f.engine.Notes()[0].Subitems; len(got) != 1 {
		t.Fatalf("unconfirmed delete applied: %+v", got)
	}

	f.transport.fail = nil
	if err := f.engine.DeleteSubitem(ctx, itemID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.engine.Notes()[0].Subitems; len(got) != 0 {
		t.Fatalf("confirmed delete missing: %+v", got)
	}
}

func TestSwapNotesLocallyInvolution(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c", "d")

	f.engine.SwapNotesLocally(0, 2)
	assertOrder(t, f.engine.NoteIDs(), []int64{ids[1], ids[2], ids[0], ids[3]})
	for i, n := range f.engine.Notes() {
		if n.DisplayOrder != i {
			t.Fatalf("display order not reassigned: %+v", n)
		}
	}

	f.engine.SwapNotesLocally(2, 0)
	assertOrder(t, f.engine.NoteIDs(), ids)

	// Out-of-range and same-index swaps are no-ops.
	before := f.engine.NoteIDs()
	f.engine.SwapNotesLocally(-1, 2)
	f.engine.SwapNotesLocally(0, len(ids))
	f.engine.SwapNotesLocally(1, 1)
	assertOrder(t, f.engine.NoteIDs(), before)

	// No network traffic: the server still holds the seeded order.
	assertOrder(t, f.serverOrder(), ids)
}

func TestCommitOrderRoundTrip(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c")
	ctx := context.Background()

	f.engine.SwapNotesLocally(0, 2)
	want := f.engine.NoteIDs()
	if err := f.engine.CommitOrder(ctx, want); err != nil {
		t.Fatalf("commit: %v", err)
	}
	assertOrder(t, f.serverOrder(), want)
	assertOrder(t, want, []int64{ids[1], ids[2], ids[0]})
}

func TestCommitOrderFailureRefetchesServerTruth(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c")
	ctx := context.Background()

	f.engine.SwapNotesLocally(0, 2)
	f.transport.fail = func(r *http.Request) bool {
		return r.URL.Path == "/notes/reorder"
	}
	err := f.engine.CommitOrder(ctx, f.engine.NoteIDs())
	if err == nil {
		t.Fatal("expected commit failure")
	}
	var transport *notesync.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected joined TransportError, got %v", err)
	}
	// The refetch restored server truth, so client and server agree again.
	assertOrder(t, f.engine.NoteIDs(), ids)
	assertOrder(t, f.serverOrder(), ids)
}

func TestSessionExpiry(t *testing.T) {
	f := newEngineFixture(t)
	f.seedNotes("a")

	f.token = "revoked"
	err := f.engine.Load(context.Background())
	if !errors.Is(err, notesync.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := atomic.LoadInt32(&f.expired); got != 1 {
		t.Fatalf("expected 1 expiry callback, got %d", got)
	}

	// A failed order commit with an expired session must not refetch: that
	// request would just 401 again.
	before := atomic.LoadInt32(&f.transport.count)
	err = f.engine.CommitOrder(context.Background(), f.engine.NoteIDs())
	if !errors.Is(err, notesync.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := atomic.LoadInt32(&f.transport.count) - before; got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestServerErrorCarriesMessage(t *testing.T) {
	f := newEngineFixture(t)
	f.seedNotes("a")

	err := f.engine.UpdateNoteTitle(context.Background(), 99999, "ghost")
	var serverErr *notesync.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.Status != http.StatusNotFound || serverErr.Message != "not found or unauthorized" {
		t.Fatalf("unexpected server error %+v", serverErr)
	}
}

func TestOnChangeNotifications(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b")

	before := atomic.LoadInt32(&f.changed)
	f.engine.SwapNotesLocally(0, 1)
	if got := atomic.LoadInt32(&f.changed) - before; got != 1 {
		t.Fatalf("expected 1 notification, got %d", got)
	}

	// A failed optimistic edit notifies twice: apply, then revert.
	if err := f.engine.AddSubitem(context.Background(), ids[0], "milk"); err != nil {
		t.Fatalf("subitem: %v", err)
	}
	itemID := func() int64 {
		for _, n := range f.engine.Notes() {
			if len(n.Subitems) > 0 {
				return n.Subitems[0].SubitemID
			}
		}
		return 0
	}()
	f.transport.fail = func(r *http.Request) bool { return r.Method == http.MethodPatch }
	before = atomic.LoadInt32(&f.changed)
	_ = f.engine.UpdateSubitemChecked(context.Background(), itemID, true)
	if got := atomic.LoadInt32(&f.changed) - before; got != 2 {
		t.Fatalf("expected apply+revert notifications, got %d", got)
	}
}

func TestNotesReturnsDeepCopy(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("list")
	ctx := context.Background()

	if err := f.engine.AddSubitem(ctx, ids[0], "milk"); err != nil {
		t.Fatalf("subitem: %v", err)
	}
	snapshot := f.engine.Notes()
	snapshot[0].Title = "mutated"
	snapshot[0].Subitems[0].Text = "mutated"

	fresh := f.engine.Notes()
	if fresh[0].Title != "list" || fresh[0].Subitems[0].Text != "milk" {
		t.Fatalf("snapshot aliases engine state: %+v", fresh[0])
	}
}

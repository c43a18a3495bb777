package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jaspynotes/internal/auth"
	"jaspynotes/internal/blob"
	"jaspynotes/internal/core"
	"jaspynotes/internal/infra/persistence/memory"
	"jaspynotes/pkg/domain"
)

type apiFixture struct {
	t       *testing.T
	handler *Handler
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	service := core.NewService(store)
	handler := NewHandler(service, auth.NewService(store))
	handler.Exporter = core.NewSnapshotExporter(service, blob.NewMemory())
	return &apiFixture{t: t, handler: handler}
}

// request performs one round trip through the handler and decodes the JSON
// body into a generic map.
func (f *apiFixture) request(method, path, token string, body any) (int, map[string]any) {
	f.t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec.Code, decoded
}

func (f *apiFixture) register(username string) string {
	f.t.Helper()
	status, body := f.request(http.MethodPost, "/auth/register", "",
		map[string]string{"username": username, "password": "hunter2"})
	if status != http.StatusOK {
		f.t.Fatalf("register %s: status %d body %v", username, status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		f.t.Fatalf("register %s: no token in %v", username, body)
	}
	return token
}

func (f *apiFixture) createNote(token, title string, noteType domain.NoteType) int64 {
	f.t.Helper()
	status, body := f.request(http.MethodPost, "/notes", token,
		domain.NewNote{Title: title, Type: noteType})
	if status != http.StatusOK {
		f.t.Fatalf("create note: status %d body %v", status, body)
	}
	return int64(body["noteId"].(float64))
}

func (f *apiFixture) listNotes(token string) []domain.Note {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		f.t.Fatalf("list notes: status %d body %s", rec.Code, rec.Body)
	}
	var out struct {
		Notes []domain.Note `json:"notes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		f.t.Fatalf("decode notes: %v", err)
	}
	return out.Notes
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada")

	status, body := f.request(http.MethodGet, "/auth/me", token, nil)
	if status != http.StatusOK || body["username"] != "ada" {
		t.Fatalf("me: status %d body %v", status, body)
	}

	status, body = f.request(http.MethodPost, "/auth/login", "",
		map[string]string{"username": "ada", "password": "wrong"})
	if status != http.StatusUnauthorized || body["success"] != false {
		t.Fatalf("bad login: status %d body %v", status, body)
	}

	status, body = f.request(http.MethodPost, "/auth/login", "",
		map[string]string{"username": "ada", "password": "hunter2"})
	if status != http.StatusOK || body["token"] == "" {
		t.Fatalf("login: status %d body %v", status, body)
	}

	status, _ = f.request(http.MethodPost, "/auth/logout", token, nil)
	if status != http.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	status, body = f.request(http.MethodGet, "/auth/me", token, nil)
	if status != http.StatusUnauthorized || body["error"] != "unauthorized" {
		t.Fatalf("me after logout: status %d body %v", status, body)
	}

	status, body = f.request(http.MethodPost, "/auth/register", "",
		map[string]string{"username": "ada", "password": "pw"})
	if status != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("duplicate register: status %d body %v", status, body)
	}
}

func TestUnauthorizedIsUniform(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/notes"},
		{http.MethodPost, "/notes"},
		{http.MethodPut, "/notes/title"},
		{http.MethodPut, "/notes/reorder"},
		{http.MethodPost, "/notes/export"},
		{http.MethodPatch, "/notes/subitems/checkbox/1"},
		{http.MethodGet, "/auth/me"},
	}
	for _, tokenName := range []string{"", "bogus"} {
		for _, c := range cases {
			req := httptest.NewRequest(c.method, c.path, bytes.NewReader(nil))
			if tokenName != "" {
				req.Header.Set("Authorization", "Bearer "+tokenName)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s with token %q: status %d", c.method, c.path, tokenName, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"unauthorized"`) {
				t.Fatalf("%s %s: body %s", c.method, c.path, rec.Body)
			}
		}
	}
}

func TestNoteLifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada")

	first := f.createNote(token, "Groceries", domain.NoteTypeSubitems)
	second := f.createNote(token, "Journal", domain.NoteTypeFreetext)

	status, body := f.request(http.MethodPut, "/notes/title", token,
		map[string]any{"noteId": second, "title": "Diary"})
	if status != http.StatusOK {
		t.Fatalf("title: status %d body %v", status, body)
	}
	status, _ = f.request(http.MethodPut, "/notes/body", token,
		map[string]any{"noteId": second, "body": "dear diary"})
	if status != http.StatusOK {
		t.Fatalf("body: status %d", status)
	}

	status, body = f.request(http.MethodPost, "/notes/subitems", token,
		map[string]any{"noteId": first, "text": "milk"})
	if status != http.StatusOK {
		t.Fatalf("subitem: status %d body %v", status, body)
	}
	itemID := int64(body["subitemId"].(float64))

	status, _ = f.request(http.MethodPatch, fmt.Sprintf("/notes/subitems/checkbox/%d", itemID), token,
		map[string]any{"isChecked": true})
	if status != http.StatusOK {
		t.Fatalf("checkbox: status %d", status)
	}
	status, _ = f.request(http.MethodPatch, fmt.Sprintf("/notes/subitems/text/%d", itemID), token,
		map[string]any{"text": "oat milk"})
	if status != http.StatusOK {
		t.Fatalf("text: status %d", status)
	}

	status, _ = f.request(http.MethodPut, "/notes/reorder", token,
		map[string]any{"noteIds": []int64{second, first}})
	if status != http.StatusOK {
		t.Fatalf("reorder: status %d", status)
	}

	notes := f.listNotes(token)
	if len(notes) != 2 || notes[0].NoteID != second || notes[1].NoteID != first {
		t.Fatalf("unexpected order %+v", notes)
	}
	if notes[0].Title != "Diary" || notes[0].Body != "dear diary" {
		t.Fatalf("updates lost %+v", notes[0])
	}
	item := notes[1].Subitems[0]
	if item.Text != "oat milk" || !item.IsChecked {
		t.Fatalf("unexpected subitem %+v", item)
	}

	status, _ = f.request(http.MethodDelete, fmt.Sprintf("/notes/subitems/%d", itemID), token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete subitem: status %d", status)
	}
	status, _ = f.request(http.MethodDelete, "/notes", token, map[string]any{"noteId": first})
	if status != http.StatusOK {
		t.Fatalf("delete note: status %d", status)
	}
	notes = f.listNotes(token)
	if len(notes) != 1 || notes[0].DisplayOrder != 0 {
		t.Fatalf("renumbering lost %+v", notes)
	}
}

func TestForeignRowsLookAbsent(t *testing.T) {
	f := newFixture(t)
	owner := f.register("ada")
	intruder := f.register("eve")
	noteID := f.createNote(owner, "private", domain.NoteTypeSubitems)

	status, body := f.request(http.MethodPost, "/notes/subitems", owner,
		map[string]any{"noteId": noteID, "text": "secret"})
	if status != http.StatusOK {
		t.Fatalf("subitem: status %d", status)
	}
	itemID := int64(body["subitemId"].(float64))

	probes := []struct {
		method, path string
		payload      any
	}{
		{http.MethodPut, "/notes/title", map[string]any{"noteId": noteID, "title": "stolen"}},
		{http.MethodPut, "/notes/body", map[string]any{"noteId": noteID, "body": "stolen"}},
		{http.MethodDelete, "/notes", map[string]any{"noteId": noteID}},
		{http.MethodPost, "/notes/subitems", map[string]any{"noteId": noteID, "text": "planted"}},
		{http.MethodPatch, fmt.Sprintf("/notes/subitems/checkbox/%d", itemID), map[string]any{"isChecked": true}},
		{http.MethodPatch, fmt.Sprintf("/notes/subitems/text/%d", itemID), map[string]any{"text": "stolen"}},
		{http.MethodDelete, fmt.Sprintf("/notes/subitems/%d", itemID), nil},
	}
	for _, p := range probes {
		status, body := f.request(p.method, p.path, intruder, p.payload)
		if status != http.StatusNotFound {
			t.Fatalf("%s %s: status %d body %v", p.method, p.path, status, body)
		}
		if body["error"] != "not found or unauthorized" {
			t.Fatalf("%s %s: body %v", p.method, p.path, body)
		}
	}

	// Probing an id that does not exist at all reads identically.
	status, body = f.request(http.MethodDelete, "/notes", intruder, map[string]any{"noteId": noteID + 999})
	if status != http.StatusNotFound || body["error"] != "not found or unauthorized" {
		t.Fatalf("absent probe: status %d body %v", status, body)
	}
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada")

	status, body := f.request(http.MethodPost, "/notes", token,
		domain.NewNote{Title: "  ", Type: domain.NoteTypeFreetext})
	if status != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("blank title: status %d body %v", status, body)
	}
	status, _ = f.request(http.MethodPost, "/notes", token,
		domain.NewNote{Title: "x", Type: "markdown"})
	if status != http.StatusBadRequest {
		t.Fatalf("bad type: status %d", status)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status %d", rec.Code)
	}

	status, _ = f.request(http.MethodPatch, "/notes/subitems/checkbox/zero", token,
		map[string]any{"isChecked": true})
	if status != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", status)
	}

	status, _ = f.request(http.MethodPatch, "/notes", token, nil)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("bad method: status %d", status)
	}
	status, _ = f.request(http.MethodGet, "/nope", token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown path: status %d", status)
	}
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada")
	f.createNote(token, "Groceries", domain.NoteTypeSubitems)

	status, body := f.request(http.MethodPost, "/notes/export", token, nil)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("export: status %d body %v", status, body)
	}
	key, _ := body["key"].(string)
	if !strings.HasPrefix(key, "snapshots/user-") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("unexpected key %q", key)
	}

	// Without a configured exporter the route does not exist.
	f.handler.Exporter = nil
	status, _ = f.request(http.MethodPost, "/notes/export", token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("export without exporter: status %d", status)
	}
}

// Package httpapi adapts the note and auth services to the JSON REST surface
// consumed by the sync engine.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"jaspynotes/internal/auth"
	"jaspynotes/internal/core"
	"jaspynotes/pkg/domain"
)

// Handler serves the /notes and /auth route trees. Exporter is optional; when
// nil the export endpoint responds 404.
type Handler struct {
	Service  *core.Service
	Auth     *auth.Service
	Exporter *core.SnapshotExporter
}

// NewHandler constructs the API handler.
func NewHandler(service *core.Service, authService *auth.Service) *Handler {
	return &Handler{Service: service, Auth: authService}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Auth == nil {
		writeError(w, http.StatusInternalServerError, "api not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}
	if path == "/auth/register" || path == "/auth/login" {
		h.handleAuthOpen(w, r, path)
		return
	}

	// Everything else requires a bearer credential; 401 is uniform for
	// absent, unknown and revoked tokens.
	token, user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	switch {
	case path == "/auth/logout" && r.Method == http.MethodPost:
		h.Auth.Logout(token)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case path == "/auth/me" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"userId":   user.UserID,
			"username": user.Username,
		})
	case path == "/notes":
		h.handleNotes(w, r, user)
	case path == "/notes/title" && r.Method == http.MethodPut:
		h.handleUpdateTitle(w, r, user)
	case path == "/notes/body" && r.Method == http.MethodPut:
		h.handleUpdateBody(w, r, user)
	case path == "/notes/reorder" && r.Method == http.MethodPut:
		h.handleReorder(w, r, user)
	case path == "/notes/export" && r.Method == http.MethodPost:
		h.handleExport(w, r, user)
	case path == "/notes/subitems" && r.Method == http.MethodPost:
		h.handleCreateSubitem(w, r, user)
	case strings.HasPrefix(path, "/notes/subitems/"):
		h.handleSubitem(w, r, user, strings.TrimPrefix(path, "/notes/subitems/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, domain.User, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", domain.User{}, false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	user, err := h.Auth.Authenticate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", domain.User{}, false
	}
	return token, user, true
}

func (h *Handler) handleAuthOpen(w http.ResponseWriter, r *http.Request, path string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		token string
		user  domain.User
		err   error
	)
	if path == "/auth/register" {
		token, user, err = h.Auth.Register(r.Context(), req.Username, req.Password)
	} else {
		token, user, err = h.Auth.Login(r.Context(), req.Username, req.Password)
	}
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    token,
		"userId":   user.UserID,
		"username": user.Username,
	})
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		notes, err := h.Service.ListNotes(r.Context(), user.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "notes": notes})
	case http.MethodPost:
		var req domain.NewNote
		if !decodeBody(w, r, &req) {
			return
		}
		id, err := h.Service.CreateNote(r.Context(), user.UserID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "noteId": id})
	case http.MethodDelete:
		var req struct {
			NoteID int64 `json:"noteId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.Service.DeleteNote(r.Context(), user.UserID, req.NoteID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleUpdateTitle(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req struct {
		NoteID int64  `json:"noteId"`
		Title  string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.UpdateNoteTitle(r.Context(), user.UserID, req.NoteID, req.Title); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleUpdateBody(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req struct {
		NoteID int64  `json:"noteId"`
		Body   string `json:"body"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.UpdateNoteBody(r.Context(), user.UserID, req.NoteID, req.Body); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req struct {
		NoteIDs []int64 `json:"noteIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.ReorderNotes(r.Context(), user.UserID, req.NoteIDs); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, user domain.User) {
	if h.Exporter == nil {
		http.NotFound(w, r)
		return
	}
	key, err := h.Exporter.Export(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

func (h *Handler) handleCreateSubitem(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req struct {
		NoteID int64  `json:"noteId"`
		Text   string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.Service.CreateSubitem(r.Context(), user.UserID, req.NoteID, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "subitemId": id})
}

// handleSubitem serves the id-suffixed subitem routes:
// PATCH checkbox/:id, PATCH text/:id, DELETE :id.
func (h *Handler) handleSubitem(w http.ResponseWriter, r *http.Request, user domain.User, remainder string) {
	segments := strings.Split(remainder, "/")
	switch {
	case len(segments) == 1 && r.Method == http.MethodDelete:
		id, ok := parseID(w, segments[0])
		if !ok {
			return
		}
		if err := h.Service.DeleteSubitem(r.Context(), user.UserID, id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case len(segments) == 2 && segments[0] == "checkbox" && r.Method == http.MethodPatch:
		id, ok := parseID(w, segments[1])
		if !ok {
			return
		}
		var req struct {
			IsChecked bool `json:"isChecked"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.Service.UpdateSubitemChecked(r.Context(), user.UserID, id, req.IsChecked); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case len(segments) == 2 && segments[0] == "text" && r.Method == http.MethodPatch:
		id, ok := parseID(w, segments[1])
		if !ok {
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.Service.UpdateSubitemText(r.Context(), user.UserID, id, req.Text); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		http.NotFound(w, r)
	}
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

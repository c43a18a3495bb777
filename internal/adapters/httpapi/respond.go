package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"jaspynotes/pkg/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses. Not
// found and unauthorized stay merged, and store internals never leak into the
// response body.
func writeServiceError(w http.ResponseWriter, err error) {
	var validation domain.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error())
		return
	}
	var notFound domain.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "not found or unauthorized")
		return
	}
	var taken domain.ErrUsernameTaken
	if errors.As(err, &taken) {
		writeError(w, http.StatusBadRequest, taken.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

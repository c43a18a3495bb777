package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"jaspynotes/internal/sync"
)

// appContext holds the flags and lazily constructed engine shared by commands.
type appContext struct {
	serverURL string
	tokenPath string
}

func (a *appContext) readToken() string {
	raw, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (a *appContext) writeToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(a.tokenPath, []byte(token), 0o600)
}

func (a *appContext) clearToken() {
	_ = os.Remove(a.tokenPath)
}

// engine builds a sync engine wired to the token cache: the credential
// accessor reads the cache and a 401 clears it.
func (a *appContext) engine() *sync.Engine {
	return sync.NewEngine(sync.Config{
		BaseURL: a.serverURL,
		Token:   a.readToken,
		OnSessionExpired: func() {
			a.clearToken()
			fmt.Fprintln(os.Stderr, "session expired, please login again")
		},
	})
}

type authResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Error    string `json:"error"`
}

// postAuth drives the /auth endpoints directly; they sit outside the engine's
// note surface.
func (a *appContext) postAuth(path, username, password string) (authResponse, error) {
	raw, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return authResponse{}, err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimSuffix(a.serverURL, "/")+path, bytes.NewReader(raw))
	if err != nil {
		return authResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := a.readToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return authResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return authResponse{}, err
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = resp.Status
		}
		return out, fmt.Errorf("%s", out.Error)
	}
	return out, nil
}

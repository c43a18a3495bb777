// Package auth implements account registration, login and the opaque bearer
// credential the note API authenticates with. Passwords are stored as bcrypt
// hashes; sessions live in process memory and die with the server.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"jaspynotes/pkg/domain"
)

// ErrInvalidCredentials is returned when username/password do not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidToken is returned when a bearer token is absent, unknown or revoked.
var ErrInvalidToken = errors.New("invalid or expired token")

const maxUsernameLen = 31

// Service issues and validates bearer credentials against the user store.
type Service struct {
	store domain.Store

	mu       sync.Mutex
	sessions map[string]domain.User
}

// NewService constructs an auth service over the given store.
func NewService(store domain.Store) *Service {
	return &Service{store: store, sessions: make(map[string]domain.User)}
}

// Register creates an account and opens a session, returning the bearer token.
func (s *Service) Register(ctx context.Context, username, password string) (string, domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLen {
		return "", domain.User{}, domain.ValidationError{Field: "username", Reason: fmt.Sprintf("must be 1-%d characters", maxUsernameLen)}
	}
	if password == "" {
		return "", domain.User{}, domain.ValidationError{Field: "password", Reason: "must not be empty"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return "", domain.User{}, err
	}
	user := domain.User{UserID: id, Username: username}
	token, err := s.openSession(user)
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// Login verifies the password and opens a session, returning the bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, domain.User, error) {
	user, err := s.store.UserByName(ctx, username)
	if err != nil {
		var notFound domain.ErrNotFound
		if errors.As(err, &notFound) {
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", domain.User{}, ErrInvalidCredentials
	}
	user.PasswordHash = ""
	token, err := s.openSession(user)
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(token string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.sessions[token]
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}

// Logout revokes the token. Revoking an unknown token is not an error.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *Service) openSession(user domain.User) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(raw)
	s.mu.Lock()
	s.sessions[token] = user
	s.mu.Unlock()
	return token, nil
}

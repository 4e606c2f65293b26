package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptyIdentifier is returned when logging in with a blank identifier
var ErrEmptyIdentifier = errors.New("identifier must not be empty")

// Session holds the process-wide signed-in user. The identifier is read
// from the store once at Open and written through on Login and Logout.
type Session struct {
	store   Store
	mu      sync.RWMutex
	current string
}

// Open loads the persisted identifier from the store
func Open(store Store) (*Session, error) {
	id, _, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &Session{store: store, current: id}, nil
}

// Current returns the signed-in identifier
func (s *Session) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != ""
}

// Login persists the identifier. No format validation is applied.
func (s *Session) Login(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(id); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.current = id
	return nil
}

// Logout removes the persisted identifier
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	s.current = ""
	return nil
}

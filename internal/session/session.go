package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UserKey is where the logged in identity is kept in a Store
const UserKey = "user"

// Roles
const (
	TypeEmployee = "Employee"
	TypeAdmin    = "Admin"
)

var (
	// ErrNoSession is returned when nobody is logged in
	ErrNoSession = errors.New("no session")
	// ErrMalformedSession is returned when the stored identity cannot be decoded
	ErrMalformedSession = errors.New("malformed session")
)

// Session is the identity of the logged in user
type Session struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// Store is a key-value store scoped to one browser session
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Parse decodes a JSON encoded identity
func Parse(raw string) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if s.Type == "" {
		return Session{}, fmt.Errorf("%w: missing type", ErrMalformedSession)
	}
	return s, nil
}

// Current reads the identity stored under UserKey
func Current(store Store) (Session, error) {
	if store == nil {
		return Session{}, ErrNoSession
	}
	raw, ok := store.Get(UserKey)
	if !ok || raw == "" {
		return Session{}, ErrNoSession
	}
	return Parse(raw)
}

// Save writes s under UserKey
func Save(store Store, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return store.Set(UserKey, string(data))
}

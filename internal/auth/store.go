package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrUnknownNick is returned when the credential file has no entry
	// for the nick.
	ErrUnknownNick = errors.New("unknown nick")
	// ErrBadPassword is returned when the password does not match the
	// stored hash.
	ErrBadPassword = errors.New("wrong password")
)

// Store verifies IRC logins against a local credential file: a JSON object
// mapping nick to stored password hash.
type Store struct {
	creds map[string]string
}

// LoadStore reads the credential file at path.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds := make(map[string]string)
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &Store{creds: creds}, nil
}

// NewStore builds a store from an in-memory credential map.
func NewStore(creds map[string]string) *Store {
	if creds == nil {
		creds = make(map[string]string)
	}
	return &Store{creds: creds}
}

// Verify checks nick and password against the store.
func (s *Store) Verify(nick, password string) error {
	stored, ok := s.creds[nick]
	if !ok {
		return ErrUnknownNick
	}
	if !comparePassword(stored, password) {
		return ErrBadPassword
	}
	return nil
}

// Len returns the number of credential entries.
func (s *Store) Len() int {
	return len(s.creds)
}

// Package state remembers where each document was left: its page and zoom.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	stateFileName = "view_positions.json"
	hashBytes     = 8192 // First 8KB for content hash
)

// ViewState is the saved view of a single document.
type ViewState struct {
	Page  int     `json:"page"`
	Scale float64 `json:"scale,omitempty"`
}

// StateStore manages persistent view state, keyed by content hash so a
// renamed or moved file keeps its position.
type StateStore struct {
	path string
	data map[string]ViewState
	mu   sync.RWMutex
}

// NewStateStore creates or loads state from dir, or from DefaultDir when dir
// is empty.
func NewStateStore(dir string) (*StateStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	store := &StateStore{
		path: filepath.Join(dir, stateFileName),
		data: make(map[string]ViewState),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with empty state
		store.data = make(map[string]ViewState)
	}
	return store, nil
}

// DefaultDir returns XDG_STATE_HOME/folio or ~/.local/state/folio
func DefaultDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "folio")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "folio")
}

// ComputeHash generates content hash for file identity
func ComputeHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader hashes the first 8KB of r, for documents read from stdin.
func HashReader(r io.Reader) (string, error) {
	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	hash := sha256.Sum256(buf[:n])
	return hex.EncodeToString(hash[:16]), nil // First 16 bytes = 32 hex chars
}

// Get returns the saved view for a document.
func (s *StateStore) Get(hash string) (ViewState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[hash]
	return v, ok
}

// Set saves the view for a document.
func (s *StateStore) Set(hash string, v ViewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.data[hash]; ok && cur == v {
		return nil
	}
	s.data[hash] = v
	return s.save()
}

// Clear removes the saved view for a document
func (s *StateStore) Clear(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, hash)
	return s.save()
}

func (s *StateStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

func (s *StateStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

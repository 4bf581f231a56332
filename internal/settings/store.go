// Package settings is the plain (unencrypted) device-local key/value store:
// non-secret flags like the login state, the per-install integrity key and
// the recent search history live here.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	KeyIntegrityKey = "integrity_key"
	KeyLoggedIn     = "logged_in"

	maxSearchHistory = 20
)

type fileContent struct {
	Values        map[string]string `json:"values"`
	SearchHistory []string          `json:"search_history"`
}

// Store is a JSON-file-backed settings store. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	data fileContent
}

// Open loads (or initializes) the settings file under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("settings dir: %w", err)
	}
	s := &Store{
		path: filepath.Join(dir, "settings.json"),
		data: fileContent{Values: map[string]string{}},
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// corrupted settings reset to defaults, nothing here is critical
		s.data = fileContent{Values: map[string]string{}}
	}
	if s.data.Values == nil {
		s.data.Values = map[string]string{}
	}
	return s, nil
}

func (s *Store) flushLocked() error {
	raw, err := json.Marshal(&s.data)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.Values[key]
	return v, ok
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Values[key] = value
	return s.flushLocked()
}

// GetBool reads a boolean flag, defaulting to false.
func (s *Store) GetBool(key string) bool {
	v, ok := s.Get(key)
	return ok && v == "true"
}

// SetBool stores a boolean flag.
func (s *Store) SetBool(key string, value bool) error {
	if value {
		return s.Set(key, "true")
	}
	return s.Set(key, "false")
}

// SearchHistory returns recent search terms, newest first.
func (s *Store) SearchHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.data.SearchHistory))
	copy(out, s.data.SearchHistory)
	return out
}

// RecordSearch prepends term to the history, dropping duplicates and
// truncating to the retention cap.
func (s *Store) RecordSearch(term string) error {
	if term == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := []string{term}
	for _, t := range s.data.SearchHistory {
		if t == term {
			continue
		}
		history = append(history, t)
	}
	if len(history) > maxSearchHistory {
		history = history[:maxSearchHistory]
	}
	s.data.SearchHistory = history
	return s.flushLocked()
}

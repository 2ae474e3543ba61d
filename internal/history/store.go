// Package history keeps the most recent batch runs, newest first.
//
// The store is an in-memory list backed by a JSON file. Reads are served from
// memory; every Record rewrites the file before returning. One mutex guards
// both, so concurrent writers never interleave a prepend with a persist.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fmuoria/resume-matcher/internal/models"
	"go.uber.org/zap"
)

const (
	// MaxEntries bounds the list; recording past it evicts the oldest entry
	MaxEntries = 10
	// FileName is the history file name inside the data directory
	FileName = "history.json"
)

// PersistenceError is returned when the history file cannot be written
type PersistenceError struct {
	Message string
	Cause   error
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

type Store struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	entries []models.HistoryEntry
}

// NewStore creates a store persisted at dataDir/history.json. Call Load
// before serving requests.
func NewStore(dataDir string, logger *zap.Logger) *Store {
	return &Store{
		path:    filepath.Join(dataDir, FileName),
		logger:  logger,
		entries: []models.HistoryEntry{},
	}
}

// Path returns the history file location
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory list with the persisted one. A missing or
// unreadable file leaves the store empty.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []models.HistoryEntry{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read history, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("failed to parse history, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries

	s.logger.Info("history loaded", zap.Int("entries", len(entries)))
}

// Record prepends entry, drops anything past MaxEntries and persists the
// list. The in-memory list is updated even when persisting fails.
func (s *Store) Record(entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.HistoryEntry, 0, MaxEntries)
	entries = append(entries, entry)
	entries = append(entries, s.entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries

	return s.persist()
}

// List returns a copy of the entries, newest first
func (s *Store) List() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// persist writes the list to a temp file and renames it over the history file
func (s *Store) persist() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Message: "failed to create data directory", Cause: err}
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return &PersistenceError{Message: "failed to encode history", Cause: err}
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return &PersistenceError{Message: "failed to create temp history file", Cause: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &PersistenceError{Message: "failed to write history", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &PersistenceError{Message: "failed to write history", Cause: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &PersistenceError{Message: "failed to replace history file", Cause: err}
	}

	return nil
}

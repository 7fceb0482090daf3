// Package ledger maintains the global upload history: a newest-first, capped
// list persisted as a JSON file under the data directory. The ledger is
// advisory; it feeds the dashboard and never drives correctness decisions, so
// reads degrade to empty data and write failures are logged and swallowed.
package ledger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dverbeek/lecturecast/internal/model"
)

// maxEntries caps the persisted ledger; inserting beyond it evicts the oldest.
const maxEntries = 50

const fileName = "history.json"

// Metrics summarizes ledger entry statuses for the dashboard. Entries still
// in processing count toward neither processed nor skipped.
type Metrics struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// Store serializes every read-modify-write of the backing file through one
// in-process mutex. Cross-process locking is intentionally not attempted; a
// single server process owns the file.
type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewStore creates a ledger store persisting under dataDir.
func NewStore(dataDir string, log *slog.Logger) *Store {
	return &Store{path: filepath.Join(dataDir, fileName), log: log}
}

// Append front-inserts the entry, truncates to the cap, and persists. Failures
// are logged, never returned.
func (s *Store) Append(entry model.UploadRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.load()
	history = append([]model.UploadRecord{entry}, history...)
	if len(history) > maxEntries {
		history = history[:maxEntries]
	}
	s.persist(history)
}

// SetStatus updates the status of the entry with the given stored name. Used
// by the pipeline to record the invocation outcome after the fact.
func (s *Store) SetStatus(stored string, status model.UploadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.load()
	for i := range history {
		if history[i].Stored == stored {
			history[i].Status = status
			break
		}
	}
	s.persist(history)
}

// List returns the ledger, newest first. A missing or corrupt file yields an
// empty slice rather than an error.
func (s *Store) List() []model.UploadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// ComputeMetrics scans the ledger and tallies statuses.
func (s *Store) ComputeMetrics() Metrics {
	history := s.List()
	m := Metrics{Total: len(history)}
	for _, entry := range history {
		switch entry.Status {
		case model.UploadProcessed:
			m.Processed++
		case model.UploadSkipped:
			m.Skipped++
		}
	}
	return m
}

func (s *Store) load() []model.UploadRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("ledger unreadable, treating as empty", "path", s.path, "error", err)
		}
		return []model.UploadRecord{}
	}
	var history []model.UploadRecord
	if err := json.Unmarshal(data, &history); err != nil {
		s.log.Warn("ledger corrupt, treating as empty", "path", s.path, "error", err)
		return []model.UploadRecord{}
	}
	return history
}

func (s *Store) persist(history []model.UploadRecord) {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		s.log.Error("encode ledger failed", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		s.log.Error("create data dir failed", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Error("write ledger failed", "path", s.path, "error", err)
	}
}

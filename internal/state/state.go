// Package state persists the worker record and terminal session bindings.
//
// Both files live in the cache directory and are written atomically. Readers
// treat a missing or unreadable file as "no state" so a corrupt cache never
// blocks the CLI.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/slipstream/slip/internal/config"
	"github.com/slipstream/slip/internal/util"
)

// Record is the persisted hint of where the worker was last seen.
// It may be stale; health probes are the source of truth.
type Record struct {
	Port      int        `json:"port"`
	PID       int        `json:"pid,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// Store reads and writes the files under a Paths cache directory.
type Store struct {
	paths config.Paths
}

// NewStore returns a Store rooted at paths.
func NewStore(paths config.Paths) *Store {
	return &Store{paths: paths}
}

// LoadRecord returns the worker record, or nil when the file is missing,
// unparseable, or holds no usable port.
func (s *Store) LoadRecord() *Record {
	data, err := os.ReadFile(s.paths.StateFile())
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	if rec.Port <= 0 || rec.Port > config.MaxPort {
		return nil
	}
	return &rec
}

// SaveRecord overwrites the worker record, creating the cache directory if needed.
func (s *Store) SaveRecord(rec Record) error {
	if err := s.paths.Ensure(); err != nil {
		return err
	}
	if err := util.AtomicWriteJSON(s.paths.StateFile(), rec); err != nil {
		return fmt.Errorf("saving worker record: %w", err)
	}
	return nil
}

// ClearRecord removes the worker record. A missing file is not an error.
func (s *Store) ClearRecord() error {
	err := os.Remove(s.paths.StateFile())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing worker record: %w", err)
	}
	return nil
}

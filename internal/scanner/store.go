package scanner

import (
	"errors"
	"os"

	"futures-sentinel/internal/storage"
)

// ErrNoSnapshot means no scan has completed yet. Callers treat it as a
// valid empty state, not a failure.
var ErrNoSnapshot = errors.New("no scan snapshot available")

// LatestStore persists the single latest scan result. The orchestrator is
// the only writer; the alert engine and the API read it.
type LatestStore struct {
	path string
}

// NewLatestStore creates a store writing to path
func NewLatestStore(path string) *LatestStore {
	return &LatestStore{path: path}
}

// Save atomically replaces the latest snapshot
func (s *LatestStore) Save(result *ScanResult) error {
	return storage.WriteJSONAtomic(s.path, result)
}

// Load returns the latest snapshot, or ErrNoSnapshot when none exists
func (s *LatestStore) Load() (*ScanResult, error) {
	var result ScanResult
	if err := storage.ReadJSON(s.path, &result); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return &result, nil
}

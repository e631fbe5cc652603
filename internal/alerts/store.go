package alerts

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"futures-sentinel/internal/storage"
)

// ErrAlertNotFound is returned when acknowledging an unknown alert ID
var ErrAlertNotFound = errors.New("alert not found")

// Store is the append-only, capped, file-backed alert list. The alert
// engine is the only writer; the API reads it.
type Store struct {
	path string
	max  int

	mu     sync.RWMutex
	alerts []*Alert // append order == chronological order
}

// NewStore loads the alert list from path. max caps the stored count;
// older alerts are evicted first once the cap is exceeded.
func NewStore(path string, max int) (*Store, error) {
	s := &Store{path: path, max: max}

	var loaded []*Alert
	err := storage.ReadJSON(path, &loaded)
	switch {
	case err == nil:
		// A lowered cap takes effect immediately, not on the next append
		if len(loaded) > max {
			loaded = loaded[len(loaded)-max:]
		}
		s.alerts = loaded
	case errors.Is(err, os.ErrNotExist):
		// first run
	default:
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	return s, nil
}

// Append persists a newly created alert, evicting oldest-first beyond the cap
func (s *Store) Append(alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.max {
		s.alerts = s.alerts[len(s.alerts)-s.max:]
	}

	return s.saveLocked()
}

// FindRecent returns the most recent alert with the given dedupe key created
// within the window, or nil
func (s *Store) FindRecent(dedupeKey string, window time.Duration) *Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.CreatedAt.Before(cutoff) {
			return nil
		}
		if a.DedupeKey == dedupeKey {
			return a
		}
	}
	return nil
}

// Acknowledge sets acknowledgedAt on an alert. Acknowledgement is one-way:
// re-acknowledging keeps the original timestamp.
func (s *Store) Acknowledge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.alerts {
		if a.ID != id {
			continue
		}
		if a.AcknowledgedAt == nil {
			now := time.Now().UTC()
			a.AcknowledgedAt = &now
			return s.saveLocked()
		}
		return nil
	}

	return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
}

// List returns up to limit alerts, newest first. unackedOnly filters out
// acknowledged alerts.
func (s *Store) List(limit int, unackedOnly bool) []*Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Alert, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		a := s.alerts[i]
		if unackedOnly && a.AcknowledgedAt != nil {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out
}

// Count returns the number of stored alerts
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

func (s *Store) saveLocked() error {
	return storage.WriteJSONAtomic(s.path, s.alerts)
}

// Package watchlist maintains the file-backed symbol list the scanner reads
// at the start of each run. Edits made mid-run do not affect the in-flight
// run because the scanner snapshots the list up front.
package watchlist

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"futures-sentinel/internal/storage"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{3,20}$`)

// ErrInvalidSymbol rejects malformed watchlist entries at the boundary
var ErrInvalidSymbol = errors.New("invalid symbol")

// Store is a file-backed ordered set of symbols
type Store struct {
	path string

	mu        sync.RWMutex
	symbols   []string
	updatedAt time.Time
}

type persisted struct {
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStore loads the watchlist from path, seeding with defaults when the
// file does not exist yet
func NewStore(path string, defaults []string) (*Store, error) {
	s := &Store{path: path}

	var p persisted
	err := storage.ReadJSON(path, &p)
	switch {
	case err == nil:
		s.symbols = p.Symbols
		s.updatedAt = p.UpdatedAt
	case errors.Is(err, os.ErrNotExist):
		s.symbols = append(s.symbols, defaults...)
		s.updatedAt = time.Now().UTC()
	default:
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}

	return s, nil
}

// GetSymbols returns a snapshot copy of the current symbols
func (s *Store) GetSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// UpdatedAt returns when the list last changed
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Add appends a symbol after validation; duplicates are a no-op
func (s *Store) Add(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidSymbol, symbol, symbolPattern.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.symbols {
		if existing == symbol {
			return nil
		}
	}

	s.symbols = append(s.symbols, symbol)
	s.updatedAt = time.Now().UTC()
	return s.saveLocked()
}

// Remove drops a symbol; removing an absent symbol is a no-op
func (s *Store) Remove(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.symbols[:0]
	removed := false
	for _, existing := range s.symbols {
		if existing == symbol {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}

	s.symbols = kept
	s.updatedAt = time.Now().UTC()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	return storage.WriteJSONAtomic(s.path, persisted{Symbols: s.symbols, UpdatedAt: s.updatedAt})
}

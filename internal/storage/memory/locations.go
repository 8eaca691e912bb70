package memory

import (
	"sync"
	"time"

	"crisisrelay/internal/domain"
)

type locationEntry struct {
	sample    domain.LocationSample
	updatedAt time.Time
}

// LocationStore holds the single latest position per citizen. Last write
// wins by arrival order at the server; the sample's own timestamp is not
// consulted for ordering.
type LocationStore struct {
	mu      sync.RWMutex
	entries map[string]locationEntry
	now     func() time.Time
}

func NewLocationStore() *LocationStore {
	return &LocationStore{
		entries: make(map[string]locationEntry),
		now:     time.Now,
	}
}

func (s *LocationStore) Upsert(sample domain.LocationSample) {
	s.mu.Lock()
	s.entries[sample.UserID] = locationEntry{
		sample:    sample,
		updatedAt: s.now(),
	}
	s.mu.Unlock()
}

// AllCurrent returns a snapshot; entries are copied whole, never torn.
func (s *LocationStore) AllCurrent() []domain.LocationSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LocationSample, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.sample)
	}
	return out
}

// EvictStaleBefore removes every sample last refreshed before cutoff and
// reports how many were dropped.
func (s *LocationStore) EvictStaleBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for userID, e := range s.entries {
		if e.updatedAt.Before(cutoff) {
			delete(s.entries, userID)
			evicted++
		}
	}
	return evicted
}

// Remove drops the sample for a user whose connection just closed, so
// officials never see a marker for a citizen who is definitely gone.
func (s *LocationStore) Remove(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[userID]; !ok {
		return false
	}
	delete(s.entries, userID)
	return true
}

func (s *LocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

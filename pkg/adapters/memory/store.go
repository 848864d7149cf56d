package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/storyline/pkg/domain"
)

// Store implements ports.ProgressStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.ProgressRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.ProgressRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, rec domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.Key()] = rec
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[domain.ProgressKey(userID, missionID)]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	// Records are values; the caller gets its own copy.
	return &rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, userID, missionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, domain.ProgressKey(userID, missionID))
	return nil
}

// List returns the records of a user ordered by mission id.
func (s *Store) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]domain.ProgressRecord, 0)
	for _, rec := range s.data {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].MissionID < recs[j].MissionID })
	return recs, nil
}

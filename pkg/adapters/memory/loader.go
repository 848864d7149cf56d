package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/storyline/pkg/domain"
)

// Loader implements ports.MissionLoader using an in-memory map.
type Loader struct {
	mu       sync.RWMutex
	missions map[string]*domain.Mission
}

// NewLoader creates a new Loader holding the given missions.
func NewLoader(missions ...*domain.Mission) (*Loader, error) {
	l := &Loader{missions: make(map[string]*domain.Mission)}
	for _, m := range missions {
		if err := l.Add(m); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// NewFromYAML creates a Loader from YAML documents, one mission each.
// This improves DX for tests and fixtures.
func NewFromYAML(docs ...string) (*Loader, error) {
	l := &Loader{missions: make(map[string]*domain.Mission)}
	for i, doc := range docs {
		m, err := ParseYAML([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if err := l.Add(m); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ParseYAML decodes a single mission document.
func ParseYAML(data []byte) (*domain.Mission, error) {
	var m domain.Mission
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mission: %w", err)
	}
	return &m, nil
}

// Add registers or replaces a mission.
func (l *Loader) Add(m *domain.Mission) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("mission missing ID")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.missions[m.ID] = m
	return nil
}

// GetMission retrieves a mission by ID.
func (l *Loader) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissionNotFound, id)
	}
	return m, nil
}

// ListMissions returns all available missions.
func (l *Loader) ListMissions(ctx context.Context) ([]domain.MissionSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.MissionSummary, 0, len(l.missions))
	for _, m := range l.missions {
		out = append(out, m.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID }) // Deterministic order
	return out, nil
}

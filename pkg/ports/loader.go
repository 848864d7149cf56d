package ports

import (
	"context"

	"github.com/aretw0/storyline/pkg/domain"
)

// MissionLoader defines how the engine retrieves mission definitions.
// This allows the content layer (Loam, FS, Memory) to be decoupled.
type MissionLoader interface {
	// GetMission retrieves a mission by ID.
	// Returns domain.ErrMissionNotFound if it does not exist.
	GetMission(ctx context.Context, id string) (*domain.Mission, error)

	// ListMissions returns the summaries of every available mission, ordered by ID.
	ListMissions(ctx context.Context) ([]domain.MissionSummary, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying content changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

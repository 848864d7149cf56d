package ports

import (
	"context"

	"github.com/aretw0/storyline/pkg/domain"
)

// ProgressStore defines the interface for persisting mission progress.
// Writes are fire-and-forget from the player's perspective; callers log failures.
type ProgressStore interface {
	// Save upserts the record keyed by (UserID, MissionID).
	Save(ctx context.Context, rec domain.ProgressRecord) error

	// Load retrieves the record of a user for a mission.
	// Returns domain.ErrProgressNotFound if there is none.
	Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error)

	// Delete removes the record of a user for a mission.
	Delete(ctx context.Context, userID, missionID string) error

	// List returns every record of a user, ordered by mission id.
	List(ctx context.Context, userID string) ([]domain.ProgressRecord, error)
}

package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

// MissionLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.MissionLoader.
func MissionLoaderContractTest(t *testing.T, loader ports.MissionLoader, expected map[string]int) {
	t.Helper()
	ctx := context.Background()

	// 1. Test GetMission (Success)
	t.Run("GetMission_Success", func(t *testing.T) {
		for id, scenes := range expected {
			m, err := loader.GetMission(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error getting mission %s: %v", id, err)
			}
			if m.ID != id {
				t.Errorf("id mismatch: got %q, want %q", m.ID, id)
			}
			if len(m.Scenes) != scenes {
				t.Errorf("scene count mismatch for %s: got %d, want %d", id, len(m.Scenes), scenes)
			}
		}
	})

	// 2. Test GetMission (NotFound)
	t.Run("GetMission_NotFound", func(t *testing.T) {
		_, err := loader.GetMission(ctx, "non-existent-mission")
		if !errors.Is(err, domain.ErrMissionNotFound) {
			t.Errorf("expected ErrMissionNotFound, got %v", err)
		}
	})

	// 3. Test ListMissions
	t.Run("ListMissions", func(t *testing.T) {
		missions, err := loader.ListMissions(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing missions: %v", err)
		}

		if len(missions) != len(expected) {
			t.Errorf("expected %d missions, got %d", len(expected), len(missions))
		}

		for i := 1; i < len(missions); i++ {
			if missions[i-1].ID > missions[i].ID {
				t.Errorf("missions not sorted: %q before %q", missions[i-1].ID, missions[i].ID)
			}
		}

		for _, s := range missions {
			if want, ok := expected[s.ID]; !ok {
				t.Errorf("unexpected mission %q", s.ID)
			} else if s.Scenes != want {
				t.Errorf("summary scene count mismatch for %s: got %d, want %d", s.ID, s.Scenes, want)
			}
		}
	})
}

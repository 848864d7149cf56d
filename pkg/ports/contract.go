package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProgressStoreContract runs a suite of tests to verify that a ProgressStore
// implementation adheres to the defined interface contract.
func RunProgressStoreContract(t *testing.T, store ProgressStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a record
		rec := domain.ProgressRecord{
			UserID:    userID,
			MissionID: "m1",
			Step:      2,
			SceneID:   "s3",
			Progress:  44,
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}

		// 2. Save
		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, userID, "m1")
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.Step, loaded.Step)
		assert.Equal(t, rec.SceneID, loaded.SceneID)
		assert.Equal(t, rec.Progress, loaded.Progress)
		assert.False(t, loaded.IsComplete)
		assert.True(t, rec.UpdatedAt.Equal(loaded.UpdatedAt.UTC().Truncate(time.Second)))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		rec := domain.ProgressRecord{UserID: userID, MissionID: "m1", Step: 3, SceneID: "s4", Progress: 100, IsComplete: true}
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, userID, "m1")
		require.NoError(t, err)
		assert.Equal(t, 100, loaded.Progress)
		assert.True(t, loaded.IsComplete)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, userID, "non-existent")
		assert.ErrorIs(t, err, domain.ErrProgressNotFound)
	})

	t.Run("List", func(t *testing.T) {
		_ = store.Save(ctx, domain.ProgressRecord{UserID: userID, MissionID: "m2", Progress: 25})
		_ = store.Save(ctx, domain.ProgressRecord{UserID: userID + "-other", MissionID: "m9", Progress: 25})
		defer func() {
			_ = store.Delete(ctx, userID+"-other", "m9")
		}()

		recs, err := store.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "m1", recs[0].MissionID)
		assert.Equal(t, "m2", recs[1].MissionID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, userID, "m1"), "Delete should not return error")
		require.NoError(t, store.Delete(ctx, userID, "m2"))

		_, err := store.Load(ctx, userID, "m1")
		assert.ErrorIs(t, err, domain.ErrProgressNotFound, "Load after Delete should return ErrProgressNotFound")

		recs, err := store.List(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

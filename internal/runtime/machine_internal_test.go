package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_OutOfRangeIndexResets(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	sc := &domain.Scene{ID: "s1", Background: "park", Dialogues: []domain.Dialogue{{Text: "a"}, {Text: "b"}}}
	m := NewMachine(SceneContext{Scene: sc, SceneIndex: 1}, nil, WithScheduler(schedule.New(c)))
	m.Start(context.Background())
	c.Advance(1200 * time.Millisecond)

	// Simulates a stale index left over from a content reload.
	m.enterDialogue(7, entryStep)

	st := m.State()
	require.Equal(t, 0, st.DialogueIndex)
	assert.Equal(t, "a", st.Text)
	assert.False(t, st.CanGoBack)
}

func TestMachine_ShrunkSceneCompletesOnContinue(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	sc := &domain.Scene{ID: "s1", Background: "park", Dialogues: []domain.Dialogue{{Text: "a"}, {Text: "b"}}}
	done := 0
	m := NewMachine(SceneContext{Scene: sc, SceneIndex: 1}, func() { done++ }, WithScheduler(schedule.New(c)))
	m.Start(context.Background())
	c.Advance(1200 * time.Millisecond)
	require.True(t, m.Continue())

	sc.Dialogues = sc.Dialogues[:1]
	require.True(t, m.Continue())
	assert.Equal(t, 1, done)
}

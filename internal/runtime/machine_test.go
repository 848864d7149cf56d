package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/storyline/internal/runtime"
	"github.com/aretw0/storyline/pkg/action"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_NarratedDialogue(t *testing.T) {
	mission := &domain.Mission{
		ID: "m1",
		Scenes: []domain.Scene{{
			ID:         "s0",
			Background: "park",
			Dialogues: []domain.Dialogue{
				{Speaker: "ana", Text: "Hello there", Narration: "d0.mp3"},
				{Speaker: "ana", Text: "Second"},
				{Speaker: "ana", Text: "Third"},
			},
		}},
	}
	h := newMachine(t, mission, 0)

	// 1. Scene entry clears the background, then applies it after 50ms.
	st := h.m.State()
	assert.Equal(t, domain.PhaseBackgroundTransitioning, st.Phase)
	assert.Empty(t, st.Background)

	h.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, "park", h.m.State().Background)

	// 2. The transition completes at 1200ms; the first dialogue of the first
	// scene waits another 2000ms before characters animate.
	h.clock.Advance(1150 * time.Millisecond)
	st = h.m.State()
	assert.True(t, st.BgAnimationComplete)
	assert.False(t, st.CharactersCanAnimate)

	h.clock.Advance(2000 * time.Millisecond)
	st = h.m.State()
	assert.True(t, st.CharactersCanAnimate)
	assert.True(t, st.NarrationPlaying)
	assert.Equal(t, domain.PhaseAwaitingNarrationOrTyping, st.Phase)

	start, ok := h.rec.last(domain.EventNarrationStart)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, start.Duration)

	// 3. Typing is scoped to the narration; advance stays locked until it ends.
	h.clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, 10, h.m.State().TypedOffset)
	assert.False(t, h.m.Continue())

	h.clock.Advance(time.Millisecond)
	st = h.m.State()
	assert.Equal(t, 11, st.TypedOffset)
	assert.Equal(t, "Hello there", st.Revealed)
	assert.False(t, st.NarrationPlaying)
	assert.True(t, st.WaitingForUserInput)
	assert.False(t, st.ShowContinuePrompt)
	assert.Equal(t, domain.PhaseAwaitingUserAdvance, st.Phase)
	assert.Equal(t, 11, h.rec.count(domain.EventReveal))
	assert.Equal(t, 1, h.rec.count(domain.EventTypingDone))

	reveal, _ := h.rec.last(domain.EventReveal)
	assert.WithinDuration(t, t0.Add(5200*time.Millisecond), reveal.Timestamp, time.Millisecond)

	// 4. Same background: the next dialogue animates immediately and, without
	// narration, unlocks advance right away.
	require.True(t, h.m.Continue())
	st = h.m.State()
	assert.Equal(t, 1, st.DialogueIndex)
	assert.True(t, st.CanGoBack)
	assert.True(t, st.CharactersCanAnimate)
	assert.True(t, st.WaitingForUserInput)
}

func TestMachine_AutoplayBlockedFallsBack(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{Speaker: "ana", Text: "abc", Narration: "d0.mp3"},
		domain.Dialogue{Speaker: "ana", Text: "next"},
	)
	h := newMachine(t, mission, 1, runtime.WithAutoplayGate(audio.BlockAll))

	h.clock.Advance(1200 * time.Millisecond)

	fb, ok := h.rec.last(domain.EventFallback)
	require.True(t, ok)
	assert.Equal(t, "autoplay_blocked", fb.Reason)
	assert.Equal(t, 3*time.Second, fb.Duration)
	assert.Zero(t, h.rec.count(domain.EventNarrationStart))

	st := h.m.State()
	assert.False(t, st.NarrationPlaying)
	assert.True(t, st.WaitingForUserInput, "advance is available without any audio event")

	h.clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, 2, h.m.State().TypedOffset)
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 3, h.m.State().TypedOffset)
}

func TestMachine_MissingNarrationFallsBack(t *testing.T) {
	mission := singleScene(domain.Dialogue{Text: "abc", Narration: "missing.mp3"})
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)

	fb, ok := h.rec.last(domain.EventFallback)
	require.True(t, ok)
	assert.Equal(t, "narration_failed", fb.Reason)
	assert.True(t, h.m.State().WaitingForUserInput)
}

func TestMachine_DeclaredNarrationDuration(t *testing.T) {
	mission := singleScene(domain.Dialogue{Text: "abc", Narration: "authored.mp3", NarrationDuration: 1500 * time.Millisecond})
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)
	start, ok := h.rec.last(domain.EventNarrationStart)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, start.Duration)
	assert.Zero(t, h.rec.count(domain.EventFallback))
}

func TestMachine_NarrationOnly(t *testing.T) {
	mission := &domain.Mission{
		ID: "m1",
		Scenes: []domain.Scene{{
			ID:         "s0",
			Background: "park",
			Dialogues: []domain.Dialogue{
				{Text: "Welcome", Narration: "one.mp3", HasOnlyNarration: true},
				{Text: "Again", Narration: "one.mp3", HasOnlyNarration: true},
			},
		}},
	}
	h := newMachine(t, mission, 0)

	h.clock.Advance(3200 * time.Millisecond)
	st := h.m.State()
	assert.True(t, st.NarrationPlaying)
	assert.Zero(t, h.rec.count(domain.EventReveal), "narration-only dialogues do not type")

	h.clock.Advance(time.Second)
	st = h.m.State()
	assert.True(t, st.WaitingForUserInput)
	assert.True(t, st.ShowContinuePrompt, "opening line of the mission shows the prompt")

	require.True(t, h.m.Continue())
	h.clock.Advance(time.Second)
	st = h.m.State()
	assert.True(t, st.WaitingForUserInput)
	assert.False(t, st.ShowContinuePrompt)
}

func TestMachine_UnknownActionDoesNotAdvance(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{HasOnlyAction: true, Action: &domain.Action{Type: "unknown_type"}},
		domain.Dialogue{Speaker: "ana", Text: "after"},
	)
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)
	st := h.m.State()
	require.NotNil(t, st.Action)
	assert.False(t, st.Action.Known)
	assert.Equal(t, domain.PhaseActionActive, st.Phase)
	assert.Zero(t, h.rec.count(domain.EventReveal))

	h.clock.Advance(time.Minute)
	assert.Equal(t, 0, h.m.State().DialogueIndex)
	assert.False(t, h.m.Continue())
	assert.False(t, h.m.GoBack())

	// The host completes it explicitly.
	require.True(t, h.m.CompleteAction())
	st = h.m.State()
	assert.Equal(t, 1, st.DialogueIndex)
	assert.Nil(t, st.Action)
	assert.Equal(t, 1, h.rec.count(domain.EventActionHidden))
}

func TestMachine_DuplicateCompletionDoesNotDoubleAdvance(t *testing.T) {
	reg := action.NewRegistry()
	var completions []func()
	reg.Register("quiz", func() action.Component {
		return action.ComponentFunc(func(p action.Props) func() {
			completions = append(completions, p.OnComplete)
			return nil
		})
	})
	reg.RegisterRemote(action.TypeRemote)

	mission := singleScene(
		domain.Dialogue{HasOnlyAction: true, Action: &domain.Action{Type: "quiz"}},
		domain.Dialogue{HasOnlyAction: true, Action: &domain.Action{Type: action.TypeRemote}},
		domain.Dialogue{Text: "done"},
	)
	h := newMachine(t, mission, 1, runtime.WithActions(reg))

	h.clock.Advance(1200 * time.Millisecond)
	require.Len(t, completions, 1)

	completions[0]()
	st := h.m.State()
	assert.Equal(t, 1, st.DialogueIndex)
	require.NotNil(t, st.Action, "exclusive action after an action shows immediately")
	assert.True(t, st.BgAnimationComplete)

	completions[0]()
	assert.Equal(t, 1, h.m.State().DialogueIndex, "second onComplete is ignored")

	id := h.m.State().Action.ID
	require.True(t, h.m.CompleteActionID(id))
	assert.Equal(t, 2, h.m.State().DialogueIndex)
	assert.False(t, h.m.CompleteActionID(id))
	assert.False(t, h.m.CompleteAction())
	assert.Equal(t, 2, h.m.State().DialogueIndex)
}

func TestMachine_ActionAfterNarration(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{Text: "hi", Narration: "d0.mp3", Action: &domain.Action{Type: action.TypeRemote}},
	)
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)
	h.clock.Advance(1999 * time.Millisecond)
	assert.Nil(t, h.m.State().Action)

	h.clock.Advance(time.Millisecond)
	st := h.m.State()
	require.NotNil(t, st.Action)
	assert.True(t, st.Action.Known)
	assert.Equal(t, domain.PhaseActionActive, st.Phase)
	assert.False(t, h.m.Continue(), "advance waits for the action")

	require.True(t, h.m.CompleteAction())
	assert.Equal(t, 1, h.completed)
	assert.Equal(t, domain.PhaseSceneComplete, h.m.State().Phase)
}

func TestMachine_ActionDelayFloor(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{Text: "hi", Narration: "short.mp3", Action: &domain.Action{Type: action.TypeRemote}},
	)
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)
	h.clock.Advance(499 * time.Millisecond)
	assert.Nil(t, h.m.State().Action)

	h.clock.Advance(time.Millisecond)
	assert.NotNil(t, h.m.State().Action)
}

func TestMachine_PauseResume(t *testing.T) {
	mission := singleScene(domain.Dialogue{Text: "abcdefghij", Narration: "one.mp3"})
	h := newMachine(t, mission, 1)

	assert.False(t, h.m.Pause(), "pause is not available during the background transition")

	h.clock.Advance(1200 * time.Millisecond)
	h.clock.Advance(350 * time.Millisecond)
	require.Equal(t, 3, h.m.State().TypedOffset)

	require.True(t, h.m.Pause())
	st := h.m.State()
	assert.True(t, st.Paused)
	assert.True(t, st.TypingPausedMidWord)
	assert.False(t, h.m.Pause())

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 3, h.m.State().TypedOffset)
	assert.Zero(t, h.rec.count(domain.EventNarrationEnd))

	require.True(t, h.m.Resume())
	assert.False(t, h.m.State().TypingPausedMidWord)

	// Narration has 650ms left; typing has 7 characters at 100ms.
	h.clock.Advance(650 * time.Millisecond)
	assert.Equal(t, 1, h.rec.count(domain.EventNarrationEnd))
	assert.Equal(t, 9, h.m.State().TypedOffset)

	h.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, 10, h.m.State().TypedOffset)
	assert.Equal(t, 10, h.rec.count(domain.EventReveal), "every character revealed exactly once")
	assert.False(t, h.m.Resume())
}

func TestMachine_BackgroundTransitionsWithinScene(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{Speaker: "ana", Text: "a"},
		domain.Dialogue{Speaker: "robot", Text: "b"},
		domain.Dialogue{Speaker: "Robot", Text: "c"},
		domain.Dialogue{Speaker: "ana", Text: "d"},
	)
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)
	assert.Equal(t, 2, h.rec.count(domain.EventBackground))

	// Narrator speaks: transition to home base.
	require.True(t, h.m.Continue())
	st := h.m.State()
	assert.Equal(t, domain.PhaseBackgroundTransitioning, st.Phase)
	assert.False(t, h.m.Continue(), "advance is locked during the transition")
	h.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, "hq", h.m.State().Background)
	h.clock.Advance(1150 * time.Millisecond)
	assert.True(t, h.m.State().CharactersCanAnimate)
	assert.Equal(t, 4, h.rec.count(domain.EventBackground))

	// Same background: no transition.
	require.True(t, h.m.Continue())
	st = h.m.State()
	assert.True(t, st.CharactersCanAnimate)
	assert.Equal(t, "hq", st.Background)
	assert.Equal(t, 4, h.rec.count(domain.EventBackground))

	require.True(t, h.m.Continue())
	h.clock.Advance(1200 * time.Millisecond)
	assert.Equal(t, "park", h.m.State().Background)
	assert.Equal(t, 6, h.rec.count(domain.EventBackground))
}

func TestMachine_SceneCompletion(t *testing.T) {
	mission := singleScene(domain.Dialogue{Text: "only"})
	h := newMachine(t, mission, 1)

	h.clock.Advance(1200 * time.Millisecond)
	require.True(t, h.m.Continue())

	st := h.m.State()
	assert.Equal(t, domain.PhaseSceneComplete, st.Phase)
	assert.Equal(t, 0, st.DialogueIndex)
	assert.Equal(t, 1, h.completed)

	assert.False(t, h.m.Continue())
	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.completed)
	assert.Equal(t, 1, h.rec.count(domain.EventSceneComplete))
}

func TestMachine_EmptySceneCompletes(t *testing.T) {
	mission := singleScene()
	h := newMachine(t, mission, 1)

	assert.Equal(t, domain.PhaseSceneComplete, h.m.State().Phase)
	assert.Equal(t, 1, h.completed)
}

func TestMachine_GoBack(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{Speaker: "ana", Text: "a"},
		domain.Dialogue{Speaker: "ana", Text: "b"},
		domain.Dialogue{Speaker: "ana", Text: "c", Narration: "one.mp3"},
	)
	h := newMachine(t, mission, 1)
	h.clock.Advance(1200 * time.Millisecond)

	assert.False(t, h.m.GoBack(), "already at the first dialogue")

	require.True(t, h.m.Continue())
	require.True(t, h.m.GoBack())
	st := h.m.State()
	assert.Equal(t, 0, st.DialogueIndex)
	assert.False(t, st.CanGoBack)
	assert.Equal(t, "a", st.Text)

	require.True(t, h.m.Continue())
	require.True(t, h.m.Continue())
	assert.True(t, h.m.State().NarrationPlaying)
	assert.False(t, h.m.GoBack(), "back is ignored while narration plays")

	h.clock.Advance(time.Second)
	assert.True(t, h.m.GoBack())
}

func TestMachine_StaleTimersDoNotLeak(t *testing.T) {
	mission := singleScene(
		domain.Dialogue{Speaker: "ana", Text: "abc", Action: &domain.Action{Type: action.TypeRemote}},
		domain.Dialogue{Speaker: "ana", Text: "xyz"},
	)
	h := newMachine(t, mission, 1)
	h.clock.Advance(1200 * time.Millisecond)

	// Leave before the scheduled action and typing finish.
	require.True(t, h.m.Continue())
	h.clock.Advance(10 * time.Second)

	assert.Zero(t, h.rec.count(domain.EventActionShown))
	st := h.m.State()
	assert.Equal(t, 1, st.DialogueIndex)
	assert.Equal(t, "xyz", st.Revealed)
}

func TestMachine_GateAdvanceOnTyping(t *testing.T) {
	timings := domain.DefaultTimings()
	timings.GateAdvanceOnTyping = true

	mission := singleScene(domain.Dialogue{Text: "abc"})
	h := newMachine(t, mission, 1, runtime.WithTimings(timings))

	h.clock.Advance(1200 * time.Millisecond)
	assert.False(t, h.m.State().WaitingForUserInput)
	assert.False(t, h.m.Continue())

	h.clock.Advance(3 * time.Second)
	assert.True(t, h.m.State().WaitingForUserInput)
	assert.True(t, h.m.Continue())
}

func TestMachine_LifecycleHooks(t *testing.T) {
	var scenes, dialogues, actions int
	hooks := domain.LifecycleHooks{
		OnSceneEnter:    func(_ context.Context, _ *domain.Event) { scenes++ },
		OnDialogueEnter: func(_ context.Context, _ *domain.Event) { dialogues++ },
		OnActionShown:   func(_ context.Context, _ *domain.Event) { actions++ },
	}

	mission := singleScene(
		domain.Dialogue{Text: "a"},
		domain.Dialogue{HasOnlyAction: true, Action: &domain.Action{Type: action.TypeWait, Data: map[string]any{"ms": 100}}},
	)
	h := newMachine(t, mission, 1, runtime.WithLifecycleHooks(hooks))
	h.clock.Advance(1200 * time.Millisecond)
	require.True(t, h.m.Continue())
	h.clock.Advance(100 * time.Millisecond)

	assert.Equal(t, 1, scenes)
	assert.Equal(t, 2, dialogues)
	assert.Equal(t, 1, actions)
	assert.Equal(t, 1, h.completed, "wait action completes the scene by itself")
}

func TestMachine_ActionCompletingWhileMounting(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register("instant", func() action.Component {
		return action.ComponentFunc(func(p action.Props) func() {
			p.OnComplete()
			return nil
		})
	})

	mission := singleScene(
		domain.Dialogue{HasOnlyAction: true, Action: &domain.Action{Type: "instant"}},
		domain.Dialogue{Text: "after"},
	)
	h := newMachine(t, mission, 1, runtime.WithActions(reg))
	h.clock.Advance(1200 * time.Millisecond)

	st := h.m.State()
	assert.Equal(t, 1, st.DialogueIndex)
	assert.Nil(t, st.Action)
	assert.NotEqual(t, domain.PhaseActionActive, st.Phase)
	assert.Equal(t, 1, h.rec.count(domain.EventActionShown))
	assert.Equal(t, 1, h.rec.count(domain.EventActionHidden))

	assert.True(t, h.m.GoBack())
}

func TestMachine_ActionCompletingWhileMountingEndsScene(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register("instant", func() action.Component {
		return action.ComponentFunc(func(p action.Props) func() {
			p.OnComplete()
			p.OnComplete()
			return nil
		})
	})

	mission := singleScene(
		domain.Dialogue{Text: "before"},
		domain.Dialogue{HasOnlyAction: true, Action: &domain.Action{Type: "instant"}},
	)
	h := newMachine(t, mission, 1, runtime.WithActions(reg))
	h.clock.Advance(1200 * time.Millisecond)
	require.True(t, h.m.Continue())

	assert.Equal(t, domain.PhaseSceneComplete, h.m.State().Phase)
	assert.Equal(t, 1, h.completed)
	assert.Equal(t, 1, h.rec.count(domain.EventActionHidden))
}

func TestMachine_PauseNeedsSomethingPlaying(t *testing.T) {
	mission := singleScene(domain.Dialogue{Text: "abc"})
	h := newMachine(t, mission, 1)
	h.clock.Advance(1200 * time.Millisecond)

	// Advance is already unlocked while the fallback typewriter runs.
	st := h.m.State()
	require.Equal(t, domain.PhaseAwaitingUserAdvance, st.Phase)
	require.True(t, h.m.Pause())
	require.True(t, h.m.Resume())

	h.clock.Advance(3 * time.Second)
	assert.Equal(t, "abc", h.m.State().Revealed)
	assert.False(t, h.m.Pause())
	assert.False(t, h.m.State().Paused)
	assert.Equal(t, 1, h.rec.count(domain.EventPaused))
}

func TestMachine_CharacterStaging(t *testing.T) {
	frozen, free := false, true
	mission := singleScene(domain.Dialogue{Speaker: "ana", Text: "hi"})
	mission.Scenes[1].Characters = map[string]domain.Character{
		"rex": {Name: "Rex", CanAnimate: &frozen},
		"bip": {Name: "Bip", Position: domain.PositionRight, CanAnimate: &free},
		"ana": {Name: "Ana", Position: domain.PositionLeft},
	}

	tests := []struct {
		name   string
		forced bool
		want   []domain.StagedCharacter
	}{
		{
			name: "Scene Allows Animation",
			want: []domain.StagedCharacter{
				{ID: "ana", Position: domain.PositionLeft, Animate: true},
				{ID: "bip", Position: domain.PositionRight, Animate: true},
				{ID: "rex", Position: domain.PositionCenter, Animate: false},
			},
		},
		{
			name:   "Home Base Freezes",
			forced: true,
			want: []domain.StagedCharacter{
				{ID: "ana", Position: domain.PositionLeft, Animate: false},
				{ID: "bip", Position: domain.PositionRight, Animate: true},
				{ID: "rex", Position: domain.PositionCenter, Animate: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startMachine(t, runtime.SceneContext{
				Mission:        mission,
				Scene:          &mission.Scenes[1],
				SceneIndex:     1,
				HomeBaseForced: tt.forced,
			})
			assert.Empty(t, h.m.State().Characters, "nobody is staged before the background settles")

			h.clock.Advance(1200 * time.Millisecond)
			assert.Equal(t, tt.want, h.m.State().Characters)

			e, ok := h.rec.last(domain.EventCharacters)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Characters)
		})
	}
}

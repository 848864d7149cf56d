package storyline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/pkg/adapters/memory"
	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/dsl"
	"github.com/aretw0/storyline/pkg/ports"
)

var fastTimings = domain.Timings{
	BackgroundApply:      10 * time.Millisecond,
	BackgroundTransition: 100 * time.Millisecond,
	FallbackTyping:       50 * time.Millisecond,
	ActionDelayFloor:     10 * time.Millisecond,
}

type harness struct {
	eng      *storyline.Engine
	clk      *clock.Manual
	store    *memory.Store
	notifier *memory.Notifier
}

func newHarness(t *testing.T, loader ports.MissionLoader, opts ...storyline.Option) *harness {
	t.Helper()
	h := &harness{
		clk:      clock.NewManual(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		store:    memory.NewStore(),
		notifier: memory.NewNotifier(nil),
	}
	opts = append([]storyline.Option{
		storyline.WithLoader(loader),
		storyline.WithClock(h.clk),
		storyline.WithTimings(fastTimings),
		storyline.WithProgressStore(h.store),
		storyline.WithNotifier(h.notifier),
	}, opts...)

	eng, err := storyline.New("", opts...)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	h.eng = eng
	return h
}

// advance moves the clock in small steps, letting the session loop drain
// between steps so that timers registered by callbacks keep their spacing.
func (h *harness) advance(t *testing.T, s *storyline.Session, d time.Duration) {
	t.Helper()
	const step = 5 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		h.clk.Advance(step)
		if _, err := s.Snapshot(context.Background()); err != nil {
			return
		}
	}
}

func twoSceneLoader(t *testing.T) ports.MissionLoader {
	t.Helper()
	b := dsl.New()
	m := b.Mission("intro").Title("Welcome Aboard")
	m.Scene("s1").Background("office").Say("", "Hello.")
	m.Scene("s2").Background("lab").Say("", "Bye.")

	q := b.Mission("quiz").Title("Quiz")
	s := q.Scene("q1").Background("lab")
	s.Action("quiz", map[string]any{"question": "Safe?"})
	s.Say("", "Done.")

	r := b.Mission("relay").Title("Relay").Scene("r1").Background("lab")
	r.Action("remote", nil)
	r.Action("remote", nil)
	r.Say("", "Done.")

	loader, err := b.Build()
	require.NoError(t, err)
	return loader
}

func waitFor(t *testing.T, events <-chan domain.Event, typ domain.EventType) domain.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-events:
			require.True(t, ok, "event stream closed before %s", typ)
			if e.Type == typ {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestEngine_PlaysMissionToCompletion(t *testing.T) {
	h := newHarness(t, twoSceneLoader(t))
	ctx := context.Background()

	// 1. Start and subscribe
	sess, err := h.eng.Start(ctx, "user-1", "intro")
	require.NoError(t, err)
	events, unsubscribe, err := sess.Subscribe(ctx, 1024)
	require.NoError(t, err)
	defer unsubscribe()

	first := <-events
	assert.Equal(t, domain.EventState, first.Type)
	require.NotNil(t, first.Diff)
	require.NotNil(t, first.Diff.Phase)

	// 2. Advance is ignored until the background transition ends
	res, err := sess.Send(ctx, storyline.CmdContinue)
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	h.advance(t, sess, 150*time.Millisecond)
	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.State.WaitingForUserInput)
	assert.Equal(t, "office", snap.State.Background)

	// 3. Finish scene one
	res, err = sess.Send(ctx, storyline.CmdContinue)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, 1, res.Snapshot.SceneIndex)
	assert.Equal(t, 50, res.Snapshot.Progress)
	assert.Equal(t, 50, waitFor(t, events, domain.EventProgress).Progress)

	rec, err := h.store.Load(ctx, "user-1", "intro")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Step)
	assert.Equal(t, "s2", rec.SceneID)

	// 4. Finish scene two
	h.advance(t, sess, 150*time.Millisecond)
	res, err = sess.Send(ctx, storyline.CmdContinue)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.True(t, res.Snapshot.Complete)

	waitFor(t, events, domain.EventMissionComplete)
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after mission completion")
	}

	rec, err = h.store.Load(ctx, "user-1", "intro")
	require.NoError(t, err)
	assert.True(t, rec.IsComplete)
	assert.Equal(t, 100, rec.Progress)

	notes := h.notifier.Events()
	require.Len(t, notes, 1)
	assert.Equal(t, "Welcome Aboard", notes[0].MissionName)

	_, err = h.eng.Session(sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_ResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t, twoSceneLoader(t))
	ctx := context.Background()

	require.NoError(t, h.store.Save(ctx, domain.ProgressRecord{UserID: "u", MissionID: "intro", Step: 1, Progress: 50}))

	sess, err := h.eng.Start(ctx, "u", "intro")
	require.NoError(t, err)

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.SceneIndex)
	assert.Equal(t, 50, snap.Progress)
	assert.Equal(t, 2, snap.SceneCount)
}

func TestEngine_StartErrors(t *testing.T) {
	empty := &domain.Mission{ID: "empty"}
	loader, err := memory.NewLoader(empty)
	require.NoError(t, err)
	h := newHarness(t, loader)
	ctx := context.Background()

	_, err = h.eng.Start(ctx, "u", "ghost")
	assert.ErrorIs(t, err, domain.ErrMissionNotFound)

	_, err = h.eng.Start(ctx, "u", "empty")
	assert.ErrorIs(t, err, domain.ErrEmptyMission)
	assert.Empty(t, h.eng.Sessions())
}

func TestEngine_StopClosesSession(t *testing.T) {
	h := newHarness(t, twoSceneLoader(t))
	ctx := context.Background()

	sess, err := h.eng.Start(ctx, "u", "intro")
	require.NoError(t, err)
	assert.Equal(t, []string{sess.ID}, h.eng.Sessions())

	events, _, err := sess.Subscribe(ctx, 16)
	require.NoError(t, err)

	require.NoError(t, h.eng.Stop(sess.ID))

	_, err = sess.Send(ctx, storyline.CmdContinue)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.ErrorIs(t, h.eng.Stop(sess.ID), domain.ErrSessionNotFound)

	for range events {
		// drain until the channel is closed
	}
}

func TestSession_ActionCompletionByID(t *testing.T) {
	h := newHarness(t, twoSceneLoader(t))
	ctx := context.Background()

	sess, err := h.eng.Start(ctx, "u", "quiz")
	require.NoError(t, err)
	h.advance(t, sess, 150*time.Millisecond)

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.State.Action)
	assert.Equal(t, "quiz", snap.State.Action.Type)
	assert.False(t, snap.State.Action.Known)

	// Continue never skips a visible action
	res, err := sess.Send(ctx, storyline.CmdContinue)
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	id := snap.State.Action.ID
	res, err = sess.CompleteAction(ctx, id+100)
	require.NoError(t, err)
	assert.False(t, res.Accepted, "stale completion must be ignored")

	res, err = sess.CompleteAction(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.Snapshot.State.DialogueIndex)
	assert.Nil(t, res.Snapshot.State.Action)

	res, err = sess.CompleteAction(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Accepted, "duplicate completion must be ignored")
}

func TestSession_CompletionRetryDoesNotSkipNextAction(t *testing.T) {
	h := newHarness(t, twoSceneLoader(t))
	ctx := context.Background()

	sess, err := h.eng.Start(ctx, "u", "relay")
	require.NoError(t, err)
	h.advance(t, sess, 150*time.Millisecond)

	// Completions must name the mount
	_, err = sess.Send(ctx, storyline.CmdCompleteAction)
	assert.ErrorIs(t, err, domain.ErrActionIDRequired)

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.State.Action)
	id := snap.State.Action.ID

	res, err := sess.CompleteAction(ctx, id)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.NotNil(t, res.Snapshot.State.Action, "the next action is shown")
	assert.Equal(t, 1, res.Snapshot.State.DialogueIndex)

	// A retried completion leaves the second action in place
	res, err = sess.CompleteAction(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, 1, res.Snapshot.State.DialogueIndex)
	require.NotNil(t, res.Snapshot.State.Action)
	assert.NotEqual(t, id, res.Snapshot.State.Action.ID)
}

func TestSession_PauseResume(t *testing.T) {
	h := newHarness(t, twoSceneLoader(t))
	ctx := context.Background()

	sess, err := h.eng.Start(ctx, "u", "intro")
	require.NoError(t, err)

	res, err := sess.Send(ctx, storyline.CmdPause)
	require.NoError(t, err)
	assert.False(t, res.Accepted, "pause is ignored during the background transition")

	h.advance(t, sess, 110*time.Millisecond)

	res, err = sess.Send(ctx, storyline.CmdPause)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.True(t, res.Snapshot.State.Paused)

	res, err = sess.Send(ctx, storyline.CmdResume)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.Snapshot.State.Paused)
}

func TestParseCommand(t *testing.T) {
	cases := map[string]storyline.Command{
		"continue":        storyline.CmdContinue,
		" Next ":          storyline.CmdContinue,
		"go_back":         storyline.CmdBack,
		"PAUSE":           storyline.CmdPause,
		"resume":          storyline.CmdResume,
		"complete_action": storyline.CmdCompleteAction,
	}
	for in, want := range cases {
		got, err := storyline.ParseCommand(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := storyline.ParseCommand("jump")
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)
}

func TestNew_RequiresDirOrLoader(t *testing.T) {
	_, err := storyline.New("")
	assert.Error(t, err)
}

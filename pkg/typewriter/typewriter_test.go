package typewriter

import (
	"testing"
	"time"

	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	reveals []Reveal
	times   []time.Time
	done    int
}

func newRevealer(t *testing.T) (*Revealer, *clock.Manual, *recorder) {
	t.Helper()
	c := clock.NewManual(time.Unix(0, 0))
	rec := &recorder{}
	r := New(schedule.New(c),
		WithRevealHandler(func(rv Reveal) {
			rec.reveals = append(rec.reveals, rv)
			rec.times = append(rec.times, c.Now())
		}),
		WithDoneHandler(func() { rec.done++ }),
	)
	return r, c, rec
}

func (rec *recorder) text() string {
	s := ""
	for _, rv := range rec.reveals {
		s += rv.Char
	}
	return s
}

func TestRevealer_FinishesWithinDuration(t *testing.T) {
	r, c, rec := newRevealer(t)

	r.Start("Hello there", 2200*time.Millisecond)
	assert.True(t, r.Typing())

	c.Advance(2199 * time.Millisecond)
	assert.Equal(t, 10, r.Progress())
	assert.Zero(t, rec.done)

	c.Advance(time.Millisecond)
	assert.Equal(t, 11, r.Progress())
	assert.Equal(t, "Hello there", rec.text())
	assert.Equal(t, 1, rec.done)
	assert.True(t, r.Done())
	assert.False(t, r.Typing())
	assert.Equal(t, time.Unix(0, 0).Add(2200*time.Millisecond), rec.times[len(rec.times)-1])
}

func TestRevealer_PauseResumeKeepsPace(t *testing.T) {
	r, c, rec := newRevealer(t)

	r.Start("abcdefghij", time.Second)
	require.Equal(t, 100*time.Millisecond, r.Interval())

	c.Advance(350 * time.Millisecond)
	require.Equal(t, 3, r.Progress())

	r.Pause()
	c.Advance(5 * time.Second)
	assert.Equal(t, 3, r.Progress(), "no reveal while paused")

	r.Resume()
	c.Advance(699 * time.Millisecond)
	assert.Equal(t, 9, r.Progress())
	c.Advance(time.Millisecond)
	assert.Equal(t, 10, r.Progress())

	assert.Equal(t, "abcdefghij", rec.text())
	assert.Len(t, rec.reveals, 10, "each character revealed exactly once")
	for i, rv := range rec.reveals {
		assert.Equal(t, i, rv.Index)
	}
}

func TestRevealer_StartFromOffsetUsesRemaining(t *testing.T) {
	r, c, _ := newRevealer(t)

	r.Start("abcd", 400*time.Millisecond)
	c.Advance(200 * time.Millisecond)
	require.Equal(t, 2, r.Progress())

	// Restarting the same text only spreads the remaining characters.
	r.Start("abcd", 1000*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, r.Interval())
	c.Advance(time.Second)
	assert.True(t, r.Done())
}

func TestRevealer_ZeroRemainingIsNoop(t *testing.T) {
	r, c, rec := newRevealer(t)

	r.Start("ab", 0)
	require.True(t, r.Done())
	require.Equal(t, 1, rec.done)

	r.Start("ab", time.Second)
	c.Advance(2 * time.Second)
	assert.Equal(t, 1, rec.done)
	assert.Len(t, rec.reveals, 2)

	r.Start("", time.Second)
	assert.False(t, r.Typing())
	assert.Equal(t, 1, rec.done)
}

func TestRevealer_StartWhilePausedWaitsForResume(t *testing.T) {
	r, c, _ := newRevealer(t)

	r.Pause()
	r.Start("xyz", 300*time.Millisecond)
	c.Advance(time.Second)
	assert.Zero(t, r.Progress())

	r.Resume()
	c.Advance(300 * time.Millisecond)
	assert.True(t, r.Done())
}

func TestRevealer_RunesNotBytes(t *testing.T) {
	r, c, rec := newRevealer(t)

	r.Start("olá!", 400*time.Millisecond)
	c.Advance(400 * time.Millisecond)
	assert.Equal(t, 4, r.Progress())
	assert.Equal(t, "á", rec.reveals[2].Char)
	assert.Equal(t, "olá!", r.Revealed())
}

func TestRevealer_Reset(t *testing.T) {
	r, c, rec := newRevealer(t)

	r.Start("abc", 300*time.Millisecond)
	c.Advance(100 * time.Millisecond)
	r.Reset()
	c.Advance(time.Second)

	assert.Len(t, rec.reveals, 1)
	assert.Zero(t, r.Progress())
	assert.False(t, r.Done())
}

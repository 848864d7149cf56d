// Package audio keeps the timeline of a single narration track.
//
// The engine is headless: a Channel does not decode or output sound. It measures
// the asset, tracks the play position against the scheduler's clock, and fires
// end-of-playback when the measured duration elapses. Clients play the actual
// file in sync with the events the engine emits.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/schedule"
)

// Phase is the default scheduler phase for end-of-playback timers.
const Phase schedule.Phase = "audio"

var (
	// ErrNotLoaded is returned by Play when no asset has been loaded.
	ErrNotLoaded = errors.New("no audio loaded")
	// ErrAutoplayBlocked is returned by Play when the gate refuses playback.
	ErrAutoplayBlocked = errors.New("autoplay blocked")
)

// Gate decides whether playback may start without a user gesture.
type Gate interface {
	Allow() error
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func() error

// Allow calls f.
func (f GateFunc) Allow() error { return f() }

// AllowAll is a Gate that never blocks.
var AllowAll Gate = GateFunc(func() error { return nil })

// BlockAll is a Gate that always blocks, as a browser does before any interaction.
var BlockAll Gate = GateFunc(func() error { return ErrAutoplayBlocked })

// Channel is a single narration track. Loop is always off.
// It is not safe for concurrent use.
type Channel struct {
	sched  *schedule.Scheduler
	phase  schedule.Phase
	source Source
	gate   Gate
	logger *slog.Logger

	path     string
	duration time.Duration
	loadErr  error
	loaded   bool

	playing  bool
	paused   bool
	started  time.Time
	position time.Duration

	listeners []func()
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger for load and play failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithGate sets the autoplay gate.
func WithGate(g Gate) Option {
	return func(c *Channel) {
		c.gate = g
	}
}

// WithPhase overrides the scheduler phase used for end timers.
func WithPhase(p schedule.Phase) Option {
	return func(c *Channel) {
		c.phase = p
	}
}

// NewChannel creates a Channel measuring assets through src.
func NewChannel(s *schedule.Scheduler, src Source, opts ...Option) *Channel {
	c := &Channel{
		sched:  s,
		phase:  Phase,
		source: src,
		gate:   AllowAll,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load stops playback, resets the position, detaches every end listener and
// measures the new asset. A failed load is logged and remembered; Play then
// returns the same error.
func (c *Channel) Load(ctx context.Context, path string) error {
	c.Stop()
	c.listeners = nil
	c.path = path
	c.duration = 0
	c.loaded = false
	c.loadErr = nil

	if c.source == nil {
		c.loadErr = fmt.Errorf("failed to load %q: %w", path, ErrAssetNotFound)
		c.logger.Warn("narration unavailable", "path", path, "err", c.loadErr)
		return c.loadErr
	}

	d, err := c.source.Measure(ctx, path)
	if err != nil {
		c.loadErr = fmt.Errorf("failed to load %q: %w", path, err)
		c.logger.Warn("narration unavailable", "path", path, "err", err)
		return c.loadErr
	}

	c.duration = d
	c.loaded = true
	return nil
}

// Play starts playback from the current position and returns the measured
// duration once playback has started.
func (c *Channel) Play() (time.Duration, error) {
	if c.loadErr != nil {
		return 0, c.loadErr
	}
	if !c.loaded {
		return 0, ErrNotLoaded
	}
	if err := c.gate.Allow(); err != nil {
		c.logger.Warn("narration play rejected", "path", c.path, "err", err)
		if !errors.Is(err, ErrAutoplayBlocked) {
			err = fmt.Errorf("%w: %v", ErrAutoplayBlocked, err)
		}
		return 0, err
	}
	if c.playing {
		return c.duration, nil
	}
	if c.position >= c.duration {
		c.position = 0
	}
	c.start()
	return c.duration, nil
}

// Pause stops the timeline and keeps the position. End listeners do not fire.
func (c *Channel) Pause() {
	if !c.playing {
		return
	}
	c.position = c.Position()
	c.playing = false
	c.paused = true
	c.sched.Cancel(c.phase)
}

// Resume continues from the paused position.
func (c *Channel) Resume() {
	if !c.paused {
		return
	}
	c.start()
}

// Stop halts playback and rewinds to zero without firing end listeners.
func (c *Channel) Stop() {
	c.sched.Cancel(c.phase)
	c.playing = false
	c.paused = false
	c.position = 0
}

// OnEnded registers fn to run when playback reaches the end naturally.
// Listeners are detached by the next Load.
func (c *Channel) OnEnded(fn func()) {
	c.listeners = append(c.listeners, fn)
}

// Position returns the current play position.
func (c *Channel) Position() time.Duration {
	if !c.playing {
		return c.position
	}
	pos := c.position + c.sched.Now().Sub(c.started)
	if pos > c.duration {
		pos = c.duration
	}
	return pos
}

// Duration returns the measured duration of the loaded asset.
func (c *Channel) Duration() time.Duration {
	return c.duration
}

// Path returns the loaded asset path.
func (c *Channel) Path() string {
	return c.path
}

// Playing reports whether the timeline is running.
func (c *Channel) Playing() bool {
	return c.playing
}

// Paused reports whether playback is paused mid-track.
func (c *Channel) Paused() bool {
	return c.paused
}

func (c *Channel) start() {
	c.playing = true
	c.paused = false
	c.started = c.sched.Now()
	c.sched.Cancel(c.phase)
	c.sched.After(c.phase, c.duration-c.position, c.ended)
}

func (c *Channel) ended() {
	if !c.playing {
		return
	}
	c.playing = false
	c.position = c.duration
	listeners := append([]func(){}, c.listeners...)
	for _, fn := range listeners {
		fn()
	}
}

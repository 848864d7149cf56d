package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/action"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
	"github.com/aretw0/storyline/pkg/schedule"
)

// DefaultPersistTimeout bounds a single progress write.
const DefaultPersistTimeout = 5 * time.Second

type config struct {
	sched          *schedule.Scheduler
	source         audio.Source
	gate           audio.Gate
	actions        *action.Registry
	timings        domain.Timings
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	onEvent        func(domain.Event)
	store          ports.ProgressStore
	notifier       ports.CompletionNotifier
	persistTimeout time.Duration
	sessionID      string
	userID         string
	assetRoot      string
}

// Option configures a Machine or a Sequencer.
type Option func(*config)

// WithScheduler sets the scheduler every timer is registered on.
func WithScheduler(s *schedule.Scheduler) Option {
	return func(c *config) {
		c.sched = s
	}
}

// WithAudioSource sets how narration durations are measured.
func WithAudioSource(src audio.Source) Option {
	return func(c *config) {
		c.source = src
	}
}

// WithAutoplayGate sets the autoplay gate of the narration channel.
func WithAutoplayGate(g audio.Gate) Option {
	return func(c *config) {
		c.gate = g
	}
}

// WithActions sets the mini-game registry.
func WithActions(r *action.Registry) Option {
	return func(c *config) {
		c.actions = r
	}
}

// WithTimings overrides the playback delays.
func WithTimings(t domain.Timings) Option {
	return func(c *config) {
		c.timings = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// WithEventHandler receives every event emitted during playback.
func WithEventHandler(fn func(domain.Event)) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}

// WithProgressStore sets where checkpoints are persisted.
func WithProgressStore(s ports.ProgressStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithNotifier sets the mission-completion collaborator.
func WithNotifier(n ports.CompletionNotifier) Option {
	return func(c *config) {
		c.notifier = n
	}
}

// WithPersistTimeout bounds each progress write.
func WithPersistTimeout(d time.Duration) Option {
	return func(c *config) {
		c.persistTimeout = d
	}
}

// WithSessionID tags emitted events with the session id.
func WithSessionID(id string) Option {
	return func(c *config) {
		c.sessionID = id
	}
}

// WithAssetRoot sets the public root prefixed to narration paths in events.
func WithAssetRoot(root string) Option {
	return func(c *config) {
		c.assetRoot = root
	}
}

func newConfig(opts []Option) config {
	c := config{
		gate:           audio.AllowAll,
		timings:        domain.DefaultTimings(),
		logger:         logging.NewNop(),
		onEvent:        func(domain.Event) {},
		persistTimeout: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.sched == nil {
		c.sched = schedule.New(clock.Real())
	}
	if c.actions == nil {
		c.actions = action.DefaultRegistry()
	}
	if c.onEvent == nil {
		c.onEvent = func(domain.Event) {}
	}
	return c
}

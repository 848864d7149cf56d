package storyline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/internal/runtime"
	"github.com/aretw0/storyline/pkg/action"
	loamAdapter "github.com/aretw0/storyline/pkg/adapters/loam"
	"github.com/aretw0/storyline/pkg/adapters/memory"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/observability"
	"github.com/aretw0/storyline/pkg/ports"
	"github.com/aretw0/storyline/pkg/session"
)

// Engine is the high-level entry point of the library.
// It loads missions, opens playback sessions and tracks them by id.
type Engine struct {
	loader   ports.MissionLoader
	store    ports.ProgressStore
	locker   ports.DistributedLocker
	notifier ports.CompletionNotifier
	source   audio.Source
	gate     audio.Gate
	actions  *action.Registry
	timings  domain.Timings
	hooks    domain.LifecycleHooks
	metrics  *observability.Metrics
	clock    clock.Clock
	logger   *slog.Logger

	assetDir  string
	assetRoot string

	// Name labels the content source, usually the mission directory.
	Name string

	progress *session.Manager

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom MissionLoader, bypassing the default Loam initialization.
func WithLoader(l ports.MissionLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithProgressStore sets where checkpoints are persisted (default: in memory).
func WithProgressStore(s ports.ProgressStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker serializes progress writes across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithNotifier sets the mission-completion collaborator (default: log only).
func WithNotifier(n ports.CompletionNotifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithAudioSource sets how narration durations are measured.
func WithAudioSource(src audio.Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithAssetDir measures narration from files under dir.
func WithAssetDir(dir string) Option {
	return func(e *Engine) {
		e.assetDir = dir
	}
}

// WithAssetRoot sets the public URL prefix of narration assets in events.
func WithAssetRoot(root string) Option {
	return func(e *Engine) {
		e.assetRoot = root
	}
}

// WithAutoplayGate sets the autoplay policy of narration.
func WithAutoplayGate(g audio.Gate) Option {
	return func(e *Engine) {
		e.gate = g
	}
}

// WithActions sets the mini-game registry.
func WithActions(r *action.Registry) Option {
	return func(e *Engine) {
		e.actions = r
	}
}

// WithTimings overrides the playback delays.
func WithTimings(t domain.Timings) Option {
	return func(e *Engine) {
		e.timings = t
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMetrics records playback metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a new Engine.
// By default, it loads missions from a Loam repository at dir.
// If WithLoader option is provided, dir can be empty and Loam is skipped.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		timings:  domain.DefaultTimings(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	if eng.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("mission directory is required when no custom loader is provided")
		}
		loader, err := loamAdapter.Open(dir)
		if err != nil {
			return nil, err
		}
		eng.loader = loader
	}
	if dir != "" {
		eng.Name = filepath.Base(filepath.Clean(dir))
	}
	eng.logger = eng.logger.With("engine", eng.Name)

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	var mopts []session.Option
	mopts = append(mopts, session.WithLogger(eng.logger))
	if eng.locker != nil {
		mopts = append(mopts, session.WithLocker(eng.locker))
	}
	eng.progress = session.NewManager(eng.store, mopts...)

	if eng.notifier == nil {
		eng.notifier = memory.NewNotifier(eng.logger)
	}
	if eng.source == nil && eng.assetDir != "" {
		eng.source = audio.NewFileSource(eng.assetDir)
	}
	if eng.gate == nil {
		eng.gate = audio.AllowAll
	}
	if eng.actions == nil {
		eng.actions = action.DefaultRegistry()
	}
	if eng.clock == nil {
		eng.clock = clock.Real()
	}
	if eng.metrics != nil {
		eng.hooks = observability.Combine(eng.hooks, eng.metrics.Hooks())
	}

	return eng, nil
}

// Start loads missionID and opens a playback session for userID, resuming
// from the user's checkpoint when there is one.
func (e *Engine) Start(ctx context.Context, userID, missionID string) (*Session, error) {
	m, err := e.loader.GetMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if len(m.Scenes) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyMission, missionID)
	}

	s := newSession(e, uuid.NewString(), userID, m)

	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.SessionOpened()
	}

	go s.loop()

	var startErr error
	if err := s.submit(ctx, func() { startErr = s.seq.Start(s.ctx) }); err != nil {
		s.Close()
		return nil, err
	}
	if startErr != nil {
		s.Close()
		return nil, startErr
	}

	e.logger.Info("session started", "session_id", s.ID, "user_id", userID, "mission_id", missionID)
	return s, nil
}

func (e *Engine) runtimeOptions(s *Session) []runtime.Option {
	opts := []runtime.Option{
		runtime.WithScheduler(s.sched),
		runtime.WithAutoplayGate(e.gate),
		runtime.WithActions(e.actions),
		runtime.WithTimings(e.timings),
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithEventHandler(s.onEvent),
		runtime.WithProgressStore(e.progress),
		runtime.WithNotifier(e.notifier),
		runtime.WithSessionID(s.ID),
		runtime.WithAssetRoot(e.assetRoot),
	}
	if e.source != nil {
		opts = append(opts, runtime.WithAudioSource(e.source))
	}
	return opts
}

// Session returns a live session by id.
func (e *Engine) Session(id string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Sessions returns the ids of the live sessions, sorted.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop closes a live session.
func (e *Engine) Stop(id string) error {
	s, err := e.Session(id)
	if err != nil {
		return err
	}
	s.Close()
	return nil
}

// Close stops every live session.
func (e *Engine) Close() {
	e.mu.Lock()
	live := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	_, ok := e.sessions[s.ID]
	delete(e.sessions, s.ID)
	e.mu.Unlock()
	if ok && e.metrics != nil {
		e.metrics.SessionClosed()
	}
}

// Missions lists the available missions.
func (e *Engine) Missions(ctx context.Context) ([]domain.MissionSummary, error) {
	return e.loader.ListMissions(ctx)
}

// Mission returns a mission definition.
func (e *Engine) Mission(ctx context.Context, id string) (*domain.Mission, error) {
	return e.loader.GetMission(ctx, id)
}

// Progress returns the checkpoint of a user for a mission.
func (e *Engine) Progress(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	return e.progress.Load(ctx, userID, missionID)
}

// ListProgress returns every checkpoint of a user.
func (e *Engine) ListProgress(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	return e.progress.List(ctx, userID)
}

// ResetProgress deletes a checkpoint so the next start begins from scratch.
func (e *Engine) ResetProgress(ctx context.Context, userID, missionID string) error {
	return e.progress.Delete(ctx, userID, missionID)
}

// Watch returns a channel that signals when the mission content changes.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return nil, errors.New("loader does not support watching")
	}
	return w.Watch(ctx)
}

// Loader returns the underlying MissionLoader used by the engine.
func (e *Engine) Loader() ports.MissionLoader {
	return e.loader
}

// Actions returns the mini-game registry.
func (e *Engine) Actions() *action.Registry {
	return e.actions
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

package runtime

import (
	"context"
	"errors"

	"github.com/aretw0/storyline/pkg/domain"
)

// Sequencer plays the scenes of a mission in order, one Machine per scene,
// and checkpoints progress after every scene advance.
type Sequencer struct {
	cfg     config
	opts    []Option
	mission *domain.Mission
	userID  string
	ctx     context.Context

	sceneIndex int
	progress   int
	complete   bool

	// recorded is true when a previous playthrough already completed the mission.
	recorded bool
	notified bool

	machine *Machine
}

// NewSequencer creates a Sequencer playing mission for userID.
func NewSequencer(mission *domain.Mission, userID string, opts ...Option) *Sequencer {
	cfg := newConfig(opts)
	// Every scene shares the sequencer's scheduler and registry.
	shared := append(append([]Option{}, opts...), WithScheduler(cfg.sched), WithActions(cfg.actions))
	return &Sequencer{
		cfg:     cfg,
		opts:    shared,
		mission: mission,
		userID:  userID,
		ctx:     context.Background(),
	}
}

// Start resumes from the stored checkpoint, if any, and enters the current scene.
// A completed checkpoint restarts at the first scene without lowering progress.
func (q *Sequencer) Start(ctx context.Context) error {
	if q.mission == nil || len(q.mission.Scenes) == 0 {
		return domain.ErrEmptyMission
	}
	q.ctx = ctx

	rec, err := q.load(ctx)
	switch {
	case err == nil:
		q.progress = rec.Progress
		q.recorded = rec.IsComplete
		if !rec.IsComplete && rec.Step > 0 && rec.Step < len(q.mission.Scenes) {
			q.sceneIndex = rec.Step
		}
		q.cfg.logger.Debug("resuming mission", "mission", q.mission.ID, "user", q.userID,
			"step", q.sceneIndex, "progress", q.progress)
	case errors.Is(err, domain.ErrProgressNotFound):
		q.persist(ctx)
	default:
		q.cfg.logger.Error("failed to load progress", "mission", q.mission.ID, "user", q.userID, "err", err)
	}

	q.startScene()
	return nil
}

// AdvanceScene moves to the next scene, or completes the mission after the last one.
// Machines call it on scene completion.
func (q *Sequencer) AdvanceScene(ctx context.Context) {
	if q.complete {
		return
	}

	total := len(q.mission.Scenes)
	if q.sceneIndex+1 < total {
		q.sceneIndex++
		q.progress = domain.NextProgress(q.progress, total)
		q.persist(ctx)
		q.publishProgress()
		q.startScene()
		return
	}

	q.progress = 100
	q.complete = true
	q.persist(ctx)
	q.publishProgress()

	e := q.event(domain.EventMissionComplete)
	e.Progress = q.progress
	e.Text = q.mission.Title
	q.publish(e)

	q.notify(ctx)
}

// Machine returns the machine of the current scene.
func (q *Sequencer) Machine() *Machine {
	return q.machine
}

// Mission returns the mission being played.
func (q *Sequencer) Mission() *domain.Mission {
	return q.mission
}

// SceneIndex returns the index of the current scene.
func (q *Sequencer) SceneIndex() int {
	return q.sceneIndex
}

// Progress returns the current completion percentage.
func (q *Sequencer) Progress() int {
	return q.progress
}

// Complete reports whether this playthrough reached the end of the mission.
func (q *Sequencer) Complete() bool {
	return q.complete
}

// Record returns the checkpoint that reflects the current position.
func (q *Sequencer) Record() domain.ProgressRecord {
	rec := domain.ProgressRecord{
		UserID:     q.userID,
		MissionID:  q.mission.ID,
		Step:       q.sceneIndex,
		Progress:   q.progress,
		IsComplete: q.complete || q.recorded,
		UpdatedAt:  q.cfg.sched.Now().UTC(),
	}
	if sc, ok := q.mission.Scene(q.sceneIndex); ok {
		rec.SceneID = sc.ID
	}
	return rec
}

func (q *Sequencer) startScene() {
	sc, _ := q.mission.Scene(q.sceneIndex)
	q.machine = NewMachine(SceneContext{
		Mission:        q.mission,
		Scene:          sc,
		SceneIndex:     q.sceneIndex,
		HomeBaseForced: q.mission.Intro && q.sceneIndex == 0,
	}, func() { q.AdvanceScene(q.ctx) }, q.opts...)
	q.machine.Start(q.ctx)
}

func (q *Sequencer) load(ctx context.Context) (*domain.ProgressRecord, error) {
	if q.cfg.store == nil {
		return nil, domain.ErrProgressNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, q.cfg.persistTimeout)
	defer cancel()
	return q.cfg.store.Load(ctx, q.userID, q.mission.ID)
}

// persist writes the checkpoint. Failures are logged and never block playback.
func (q *Sequencer) persist(ctx context.Context) {
	if q.cfg.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.persistTimeout)
	defer cancel()

	rec := q.Record()
	if err := q.cfg.store.Save(ctx, rec); err != nil {
		q.cfg.logger.Error("failed to persist progress",
			"mission", rec.MissionID, "user", rec.UserID, "step", rec.Step, "err", err)
	}
}

func (q *Sequencer) notify(ctx context.Context) {
	if q.notified {
		return
	}
	q.notified = true
	if q.cfg.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.persistTimeout)
	defer cancel()

	evt := domain.MissionCompleted{
		UserID:      q.userID,
		MissionID:   q.mission.ID,
		MissionName: q.mission.Title,
		CompletedAt: q.cfg.sched.Now().UTC(),
	}
	if err := q.cfg.notifier.NotifyMissionCompleted(ctx, evt); err != nil {
		q.cfg.logger.Error("failed to notify mission completion", "mission", q.mission.ID, "user", q.userID,
			"err", err)
	}
}

func (q *Sequencer) publishProgress() {
	e := q.event(domain.EventProgress)
	e.Progress = q.progress
	q.publish(e)
}

func (q *Sequencer) event(typ domain.EventType) domain.Event {
	return domain.Event{
		Type:       typ,
		SessionID:  q.cfg.sessionID,
		MissionID:  q.mission.ID,
		SceneIndex: q.sceneIndex,
	}
}

func (q *Sequencer) publish(e domain.Event) {
	e.Timestamp = q.cfg.sched.Now()
	q.cfg.hooks.Fire(q.ctx, &e)
	q.cfg.onEvent(e)
}

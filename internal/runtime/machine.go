package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/storyline/pkg/action"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/background"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/schedule"
	"github.com/aretw0/storyline/pkg/typewriter"
)

const (
	phaseBackground  schedule.Phase = "background"
	phaseCharacters  schedule.Phase = "characters"
	phaseActionDelay schedule.Phase = "action_delay"
)

// entry describes how a dialogue was reached.
type entry int

const (
	entryScene entry = iota
	entryStep
	entryAfterAction
)

// SceneContext is the scene a Machine plays and where it sits in its mission.
type SceneContext struct {
	Mission    *domain.Mission
	Scene      *domain.Scene
	SceneIndex int

	// HomeBaseForced pins the background to the home base (intro mode).
	HomeBaseForced bool
}

// Machine is the dialogue state machine of a single scene.
//
// It owns the scene's PlaybackState and is its only writer; every other
// component reaches it through the transition methods. Machine is not safe for
// concurrent use: callers serialize commands and scheduler callbacks on one
// goroutine.
type Machine struct {
	cfg   config
	scene SceneContext
	ctx   context.Context

	audio   *audio.Channel
	typer   *typewriter.Revealer
	actions *action.Dispatcher
	tracker background.Tracker

	state   domain.PlaybackState
	mounted *action.Mounted

	// gen identifies the current dialogue; callbacks captured under an older
	// generation are ignored.
	gen uint64

	// advanceOnTyped unlocks advance when the typewriter finishes.
	advanceOnTyped bool

	onComplete func()
}

// NewMachine creates a Machine for sc. onComplete runs when the scene completes.
func NewMachine(sc SceneContext, onComplete func(), opts ...Option) *Machine {
	m := &Machine{
		cfg:        newConfig(opts),
		scene:      sc,
		ctx:        context.Background(),
		onComplete: onComplete,
	}
	m.audio = audio.NewChannel(m.cfg.sched,
		audio.FirstOf(m.cfg.source, audio.SourceFunc(m.declaredDuration)),
		audio.WithGate(m.cfg.gate),
		audio.WithLogger(m.cfg.logger),
	)
	m.typer = typewriter.New(m.cfg.sched,
		typewriter.WithRevealHandler(m.onReveal),
		typewriter.WithDoneHandler(m.onTyped),
	)
	m.actions = action.NewDispatcher(m.cfg.actions, m.cfg.sched, action.WithLogger(m.cfg.logger))
	return m
}

// Start enters the scene at its first dialogue.
func (m *Machine) Start(ctx context.Context) {
	m.ctx = ctx
	m.state = domain.PlaybackState{
		MissionID:  m.missionID(),
		SceneIndex: m.scene.SceneIndex,
		Phase:      domain.PhaseSceneEntering,
	}
	if m.scene.Scene != nil {
		m.state.SceneID = m.scene.Scene.ID
	}
	m.tracker.Reset()

	e := m.event(domain.EventSceneEnter)
	if m.scene.Scene != nil {
		e.Background = m.scene.Scene.Background
	}
	m.publish(e)

	m.enterDialogue(0, entryScene)
}

// State returns a snapshot of the playback state.
func (m *Machine) State() *domain.PlaybackState {
	return m.state.Snapshot()
}

// Scene returns the scene being played.
func (m *Machine) Scene() SceneContext {
	return m.scene
}

// Continue advances to the next dialogue, or completes the scene at the last one.
// It is ignored while narration plays, while an action is shown, and before
// advance has been unlocked.
func (m *Machine) Continue() bool {
	s := &m.state
	switch {
	case s.Phase == domain.PhaseSceneComplete:
		return m.ignore("continue", "scene complete")
	case s.NarrationPlaying:
		return m.ignore("continue", "narration playing")
	case m.mounted != nil:
		return m.ignore("continue", "action visible")
	case !s.WaitingForUserInput:
		return m.ignore("continue", "not waiting for input")
	}

	if s.DialogueIndex >= m.lastIndex() {
		m.finishScene()
		return true
	}
	m.enterDialogue(s.DialogueIndex+1, entryStep)
	return true
}

// GoBack returns to the previous dialogue.
func (m *Machine) GoBack() bool {
	s := &m.state
	switch {
	case s.Phase == domain.PhaseSceneComplete:
		return m.ignore("back", "scene complete")
	case s.NarrationPlaying:
		return m.ignore("back", "narration playing")
	case m.mounted != nil:
		return m.ignore("back", "action visible")
	case s.DialogueIndex == 0:
		return m.ignore("back", "first dialogue")
	}

	m.enterDialogue(s.DialogueIndex-1, entryStep)
	return true
}

// Pause halts narration and the typewriter together. It is ignored once
// the dialogue has finished playing.
func (m *Machine) Pause() bool {
	s := &m.state
	if s.Paused {
		return m.ignore("pause", "already paused")
	}
	switch s.Phase {
	case domain.PhaseSceneEntering, domain.PhaseBackgroundTransitioning,
		domain.PhaseCharactersRevealing, domain.PhaseSceneComplete:
		return m.ignore("pause", string(s.Phase))
	case domain.PhaseAwaitingUserAdvance:
		if !m.audio.Playing() && !m.typer.Typing() {
			return m.ignore("pause", "nothing playing")
		}
	}

	s.Paused = true
	if m.audio.Playing() {
		m.audio.Pause()
	}
	if m.typer.Typing() {
		m.typer.Pause()
		s.TypingPausedMidWord = true
	}
	m.cfg.sched.Pause(phaseActionDelay)
	m.cfg.sched.Pause(action.Phase)

	m.publish(m.event(domain.EventPaused))
	return true
}

// Resume restarts narration from its paused position and the typewriter at its
// original pace.
func (m *Machine) Resume() bool {
	s := &m.state
	if !s.Paused {
		return m.ignore("resume", "not paused")
	}

	s.Paused = false
	if m.audio.Paused() {
		m.audio.Resume()
	}
	if s.TypingPausedMidWord {
		s.TypingPausedMidWord = false
		m.typer.Resume()
	}
	m.cfg.sched.Resume(phaseActionDelay)
	m.cfg.sched.Resume(action.Phase)

	m.publish(m.event(domain.EventResumed))
	return true
}

// CompleteAction hides the current action and moves on. Repeated or stale
// completions are ignored.
func (m *Machine) CompleteAction() bool {
	return m.completeAction(m.gen)
}

// CompleteActionID completes the action mounted under id, as reported in
// PlaybackState.Action. A client retrying a completion cannot skip the next action.
func (m *Machine) CompleteActionID(id uint64) bool {
	return m.completeAction(id)
}

func (m *Machine) completeAction(gen uint64) bool {
	if gen != m.gen || m.mounted == nil {
		return m.ignore("complete_action", "no action visible")
	}

	m.mounted.Unmount()
	m.mounted = nil
	m.state.Action = nil
	m.publish(m.event(domain.EventActionHidden))

	if m.state.DialogueIndex >= m.lastIndex() {
		m.finishScene()
		return true
	}
	m.enterDialogue(m.state.DialogueIndex+1, entryAfterAction)
	return true
}

// enterDialogue tears down the previous dialogue and sets up dialogue i.
func (m *Machine) enterDialogue(i int, how entry) {
	m.teardown()

	sc := m.scene.Scene
	if sc == nil || len(sc.Dialogues) == 0 {
		m.cfg.logger.Warn("scene has no dialogues", "mission", m.missionID(), "scene", m.scene.SceneIndex)
		m.finishScene()
		return
	}
	if i < 0 || i >= len(sc.Dialogues) {
		m.cfg.logger.Debug("dialogue index out of range, resetting", "index", i, "dialogues", len(sc.Dialogues))
		i = 0
	}
	d := sc.Dialogues[i]

	s := &m.state
	s.DialogueIndex = i
	s.Speaker = d.Speaker
	s.Text = d.Text
	s.Revealed = ""
	s.TypedOffset = 0
	s.BgAnimationComplete = false
	s.CharactersCanAnimate = false
	s.Characters = nil
	s.WaitingForUserInput = false
	s.ShowContinuePrompt = false
	s.NarrationPlaying = false
	s.Paused = false
	s.TypingPausedMidWord = false
	s.CanGoBack = i > 0
	s.Action = nil

	e := m.event(domain.EventDialogueEnter)
	e.Speaker = d.Speaker
	e.Text = d.Text
	e.Narration = audio.AssetURL(m.cfg.assetRoot, d.Narration)
	m.publish(e)

	target := background.Resolve(background.For(m.scene.Mission, sc, d.Speaker, m.scene.HomeBaseForced))
	switch {
	case how == entryAfterAction && d.Exclusive():
		m.applyBackground(target)
		s.BgAnimationComplete = true
		m.charactersReady()
	case how == entryScene || m.tracker.NeedsTransition(target):
		m.transitionBackground(target, how == entryScene && i == 0 && m.firstScene())
	default:
		s.BgAnimationComplete = true
		m.charactersReady()
	}
}

// teardown cancels everything owned by the current dialogue.
func (m *Machine) teardown() {
	m.gen++
	m.cfg.sched.CancelAll()
	m.audio.Stop()
	m.typer.Reset()
	m.advanceOnTyped = false
	if m.mounted != nil {
		m.mounted.Unmount()
		m.mounted = nil
	}
}

func (m *Machine) transitionBackground(target string, firstDelay bool) {
	s := &m.state
	s.Phase = domain.PhaseBackgroundTransitioning
	s.Background = ""
	m.publish(m.event(domain.EventBackground))

	t := m.cfg.timings
	m.cfg.sched.After(phaseBackground, t.BackgroundApply, func() {
		m.applyBackground(target)
	})
	m.cfg.sched.After(phaseBackground, t.BackgroundTransition, func() {
		s.BgAnimationComplete = true
		if firstDelay {
			s.Phase = domain.PhaseCharactersRevealing
			m.cfg.sched.After(phaseCharacters, t.FirstCharacterDelay, m.charactersReady)
			return
		}
		m.charactersReady()
	})
}

func (m *Machine) applyBackground(target string) {
	m.tracker.Apply(target)
	m.state.Background = target
	e := m.event(domain.EventBackground)
	e.Background = target
	m.publish(e)
}

// charactersReady stages the scene's characters. They stay frozen while the
// home base is forced unless a character overrides it.
func (m *Machine) charactersReady() {
	m.state.CharactersCanAnimate = true
	m.state.Characters = m.scene.Scene.Stage(!m.scene.HomeBaseForced)
	m.state.Phase = domain.PhaseCharactersRevealing

	e := m.event(domain.EventCharacters)
	e.Characters = m.state.Characters
	m.publish(e)
	m.startPlayback()
}

func (m *Machine) finishScene() {
	s := &m.state
	if s.Phase == domain.PhaseSceneComplete {
		return
	}
	m.teardown()

	s.Phase = domain.PhaseSceneComplete
	s.DialogueIndex = 0
	s.CanGoBack = false
	s.WaitingForUserInput = false
	s.ShowContinuePrompt = false
	s.NarrationPlaying = false
	s.Paused = false
	s.TypingPausedMidWord = false
	s.Action = nil
	m.publish(m.event(domain.EventSceneComplete))

	if m.onComplete != nil {
		m.onComplete()
	}
}

func (m *Machine) current() domain.Dialogue {
	d, _ := m.scene.Scene.Dialogue(m.state.DialogueIndex)
	return d
}

func (m *Machine) lastIndex() int {
	if m.scene.Scene == nil {
		return 0
	}
	return len(m.scene.Scene.Dialogues) - 1
}

// firstScene reports whether the scene counts as a first scene for pacing.
func (m *Machine) firstScene() bool {
	return m.scene.SceneIndex == 0 || (m.scene.Scene != nil && m.scene.Scene.FirstScene)
}

func (m *Machine) missionID() string {
	if m.scene.Mission == nil {
		return ""
	}
	return m.scene.Mission.ID
}

func (m *Machine) ignore(cmd, reason string) bool {
	m.cfg.logger.Debug("command ignored", "command", cmd, "reason", reason,
		"scene", m.state.SceneIndex, "dialogue", m.state.DialogueIndex)
	return false
}

func (m *Machine) event(typ domain.EventType) domain.Event {
	return domain.Event{
		Type:          typ,
		SessionID:     m.cfg.sessionID,
		MissionID:     m.state.MissionID,
		SceneIndex:    m.state.SceneIndex,
		DialogueIndex: m.state.DialogueIndex,
	}
}

func (m *Machine) publish(e domain.Event) {
	e.Timestamp = m.cfg.sched.Now()
	m.cfg.hooks.Fire(m.ctx, &e)
	m.cfg.onEvent(e)
}

// declaredDuration serves the authored narration duration when the asset
// cannot be measured.
func (m *Machine) declaredDuration(_ context.Context, path string) (time.Duration, error) {
	d := m.current()
	if d.Narration == path && d.NarrationDuration > 0 {
		return d.NarrationDuration, nil
	}
	return 0, fmt.Errorf("%w: %s", audio.ErrAssetNotFound, path)
}

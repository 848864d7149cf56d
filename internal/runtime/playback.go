package runtime

import (
	"errors"
	"time"

	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/typewriter"
)

// startPlayback selects how the current dialogue plays once characters may animate.
func (m *Machine) startPlayback() {
	d := m.current()
	m.state.Phase = domain.PhaseAwaitingNarrationOrTyping

	switch {
	case d.HasOnlyAction && d.HasAction():
		m.showAction()
	case d.HasOnlyNarration && d.HasNarration():
		m.playNarrationOnly(d)
	default:
		m.playStandard(d)
	}
}

func (m *Machine) playNarrationOnly(d domain.Dialogue) {
	// Only the opening line of the mission shows the continue prompt.
	prompt := m.scene.SceneIndex == 0 && m.state.DialogueIndex == 0

	if _, err := m.playNarration(d, func() { m.awaitAdvance(prompt) }); err != nil {
		m.fallback(err)
		m.awaitAdvance(prompt)
	}
}

func (m *Machine) playStandard(d domain.Dialogue) {
	t := m.cfg.timings

	if d.HasNarration() {
		dur, err := m.playNarration(d, func() { m.awaitAdvance(false) })
		if err == nil {
			// Typing starts only once playback has started, scoped to the measured duration.
			m.typer.Start(d.Text, dur)
			if d.HasAction() {
				m.scheduleAction(dur)
			}
			return
		}
		m.fallback(err)
	}

	m.typer.Start(d.Text, t.FallbackTyping)
	if d.HasAction() {
		m.scheduleAction(t.FallbackTyping)
	}
	if t.GateAdvanceOnTyping && m.typer.Typing() {
		m.advanceOnTyped = true
		return
	}
	m.awaitAdvance(false)
}

// playNarration loads and plays the dialogue's narration. onEnd runs when it
// ends naturally.
func (m *Machine) playNarration(d domain.Dialogue, onEnd func()) (time.Duration, error) {
	_ = m.audio.Load(m.ctx, d.Narration)

	gen := m.gen
	m.audio.OnEnded(func() {
		if gen != m.gen {
			return
		}
		m.state.NarrationPlaying = false
		m.publish(m.event(domain.EventNarrationEnd))
		onEnd()
	})

	dur, err := m.audio.Play()
	if err != nil {
		return 0, err
	}

	m.state.NarrationPlaying = true
	e := m.event(domain.EventNarrationStart)
	e.Narration = audio.AssetURL(m.cfg.assetRoot, d.Narration)
	e.Duration = dur
	m.publish(e)
	return dur, nil
}

func (m *Machine) fallback(err error) {
	reason := "narration_failed"
	if errors.Is(err, audio.ErrAutoplayBlocked) {
		reason = "autoplay_blocked"
	}
	m.cfg.logger.Warn("narration fallback", "reason", reason, "err", err,
		"scene", m.state.SceneIndex, "dialogue", m.state.DialogueIndex)

	e := m.event(domain.EventFallback)
	e.Reason = reason
	e.Duration = m.cfg.timings.FallbackTyping
	m.publish(e)
}

func (m *Machine) awaitAdvance(prompt bool) {
	s := &m.state
	s.WaitingForUserInput = true
	s.ShowContinuePrompt = prompt
	if s.Phase != domain.PhaseActionActive {
		s.Phase = domain.PhaseAwaitingUserAdvance
	}
	e := m.event(domain.EventAdvanceReady)
	e.Prompt = prompt
	m.publish(e)
}

// scheduleAction shows the dialogue's action after delay, never sooner than
// the configured floor.
func (m *Machine) scheduleAction(delay time.Duration) {
	if floor := m.cfg.timings.ActionDelayFloor; delay < floor {
		delay = floor
	}
	gen := m.gen
	m.cfg.sched.After(phaseActionDelay, delay, func() {
		if gen == m.gen {
			m.showAction()
		}
	})
}

func (m *Machine) showAction() {
	if m.mounted != nil {
		return
	}
	d := m.current()
	if !d.HasAction() {
		return
	}

	// A component may complete while it mounts; that completion is applied
	// once the overlay is shown.
	gen := m.gen
	mounting, early := true, false
	m.mounted = m.actions.Mount(*d.Action, func() {
		if mounting {
			early = true
			return
		}
		m.completeAction(gen)
	})
	mounting = false

	m.state.Action = m.mounted.View()
	m.state.Action.ID = gen
	m.state.Phase = domain.PhaseActionActive

	e := m.event(domain.EventActionShown)
	e.Action = m.state.Action
	m.publish(e)

	if early {
		m.completeAction(gen)
	}
}

func (m *Machine) onReveal(r typewriter.Reveal) {
	m.state.TypedOffset = r.Index + 1
	m.state.Revealed = m.typer.Revealed()

	e := m.event(domain.EventReveal)
	e.Index = r.Index
	e.Char = r.Char
	m.publish(e)
}

func (m *Machine) onTyped() {
	m.publish(m.event(domain.EventTypingDone))
	if m.advanceOnTyped {
		m.advanceOnTyped = false
		m.awaitAdvance(false)
	}
}

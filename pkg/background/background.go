// Package background decides which background image a dialogue shows.
package background

import (
	"strings"

	"github.com/aretw0/storyline/pkg/domain"
)

// Input is everything the resolution rules look at.
type Input struct {
	HomeBaseForced  bool
	SceneBackground string
	SpeakerID       string
	HomeBase        string
	NarratorID      string
}

// Resolve applies the rules in priority order: forced home base, a scene that
// already shows the home base, the narrator speaking, and finally the scene's own
// background.
func Resolve(in Input) string {
	home := in.HomeBase
	if home == "" {
		home = domain.DefaultHomeBase
	}
	narrator := in.NarratorID
	if narrator == "" {
		narrator = domain.DefaultNarratorID
	}

	switch {
	case in.HomeBaseForced:
		return home
	case in.SceneBackground == home:
		return home
	case in.SpeakerID != "" && strings.EqualFold(in.SpeakerID, narrator):
		return home
	default:
		return in.SceneBackground
	}
}

// For builds the Input for a dialogue of a mission scene.
func For(m *domain.Mission, s *domain.Scene, speaker string, forced bool) Input {
	in := Input{HomeBaseForced: forced, SpeakerID: speaker}
	if s != nil {
		in.SceneBackground = s.Background
	}
	if m != nil {
		in.HomeBase = m.HomeBaseImage()
		in.NarratorID = m.NarratorID()
	}
	return in
}

// Tracker remembers the background currently shown.
type Tracker struct {
	current string
	shown   bool
}

// NeedsTransition reports whether showing next requires a transition animation.
// Nothing shown yet always needs one.
func (t *Tracker) NeedsTransition(next string) bool {
	return !t.shown || t.current != next
}

// Apply records next as the shown background.
func (t *Tracker) Apply(next string) {
	t.current = next
	t.shown = true
}

// Current returns the shown background.
func (t *Tracker) Current() string {
	return t.current
}

// Reset forgets the shown background, as at scene entry.
func (t *Tracker) Reset() {
	t.current = ""
	t.shown = false
}

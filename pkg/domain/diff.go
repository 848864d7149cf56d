package domain

import "slices"

// StateDiff represents the changes between two playback snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	SessionID string `json:"session_id"`

	Phase         *Phase  `json:"phase,omitempty"`
	SceneIndex    *int    `json:"scene_index,omitempty"`
	DialogueIndex *int    `json:"dialogue_index,omitempty"`
	Background    *string `json:"background,omitempty"`
	Revealed      *string `json:"revealed,omitempty"`

	Characters []StagedCharacter `json:"characters,omitempty"`

	// Flags contains only the boolean flags whose value changed.
	Flags map[string]bool `json:"flags,omitempty"`

	// Action is set when the overlay changed; ActionCleared marks it hidden.
	Action        *MountedAction `json:"action,omitempty"`
	ActionCleared bool           `json:"action_cleared,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(sessionID string, oldState, newState *PlaybackState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: sessionID}

	if oldState == nil || oldState.Phase != newState.Phase {
		diff.Phase = &newState.Phase
	}
	if oldState == nil || oldState.SceneIndex != newState.SceneIndex {
		diff.SceneIndex = &newState.SceneIndex
	}
	if oldState == nil || oldState.DialogueIndex != newState.DialogueIndex {
		diff.DialogueIndex = &newState.DialogueIndex
	}
	if oldState == nil || oldState.Background != newState.Background {
		diff.Background = &newState.Background
	}
	if oldState == nil || oldState.Revealed != newState.Revealed {
		diff.Revealed = &newState.Revealed
	}

	if oldState == nil || !slices.Equal(oldState.Characters, newState.Characters) {
		diff.Characters = newState.Characters
	}

	diff.Flags = diffFlags(oldState, newState)

	switch {
	case newState.Action != nil && (oldState == nil || oldState.Action == nil || oldState.Action.ID != newState.Action.ID):
		diff.Action = newState.Action
	case newState.Action == nil && oldState != nil && oldState.Action != nil:
		diff.ActionCleared = true
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func flagsOf(s *PlaybackState) map[string]bool {
	return map[string]bool{
		"bg_animation_complete":  s.BgAnimationComplete,
		"characters_can_animate": s.CharactersCanAnimate,
		"waiting_for_user_input": s.WaitingForUserInput,
		"show_continue_prompt":   s.ShowContinuePrompt,
		"narration_playing":      s.NarrationPlaying,
		"paused":                 s.Paused,
		"typing_paused_mid_word": s.TypingPausedMidWord,
		"can_go_back":            s.CanGoBack,
	}
}

func diffFlags(old, new *PlaybackState) map[string]bool {
	newFlags := flagsOf(new)
	if old == nil {
		return newFlags
	}
	oldFlags := flagsOf(old)
	delta := make(map[string]bool)
	for k, v := range newFlags {
		if oldFlags[k] != v {
			delta[k] = v
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Phase == nil &&
		d.SceneIndex == nil &&
		d.DialogueIndex == nil &&
		d.Background == nil &&
		d.Revealed == nil &&
		d.Characters == nil &&
		len(d.Flags) == 0 &&
		d.Action == nil &&
		!d.ActionCleared
}

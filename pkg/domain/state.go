package domain

import (
	"maps"
	"slices"
)

// Phase is the logical phase of the dialogue state machine.
type Phase string

const (
	PhaseSceneEntering             Phase = "scene_entering"
	PhaseBackgroundTransitioning   Phase = "background_transitioning"
	PhaseCharactersRevealing       Phase = "characters_revealing"
	PhaseAwaitingNarrationOrTyping Phase = "awaiting_narration_or_typing"
	PhaseActionActive              Phase = "action_active"
	PhaseAwaitingUserAdvance       Phase = "awaiting_user_advance"
	PhaseSceneComplete             Phase = "scene_complete"
)

// PlaybackState is the ephemeral per-scene state owned by the dialogue state machine.
// It is created at scene entry and discarded at scene exit; it is never persisted.
type PlaybackState struct {
	MissionID     string `json:"mission_id"`
	SceneID       string `json:"scene_id"`
	SceneIndex    int    `json:"scene_index"`
	DialogueIndex int    `json:"dialogue_index"`
	Phase         Phase  `json:"phase"`

	// Background is the applied background key; empty while a transition clears it.
	Background string `json:"background"`

	Speaker  string `json:"speaker,omitempty"`
	Text     string `json:"text"`
	Revealed string `json:"revealed"`

	// TypedOffset is the number of characters revealed so far.
	TypedOffset int `json:"typed_offset"`

	BgAnimationComplete  bool `json:"bg_animation_complete"`
	CharactersCanAnimate bool `json:"characters_can_animate"`
	WaitingForUserInput  bool `json:"waiting_for_user_input"`
	ShowContinuePrompt   bool `json:"show_continue_prompt"`
	NarrationPlaying     bool `json:"narration_playing"`
	Paused               bool `json:"paused"`
	TypingPausedMidWord  bool `json:"typing_paused_mid_word"`
	CanGoBack            bool `json:"can_go_back"`

	// Characters is the stage once characters may animate.
	Characters []StagedCharacter `json:"characters,omitempty"`

	// Action is the mounted mini-game, nil when the overlay is hidden.
	Action *MountedAction `json:"action,omitempty"`
}

// MountedAction describes the action overlay as clients render it.
type MountedAction struct {
	// ID identifies this mount; completions carrying another ID are stale.
	ID   uint64         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`

	// Known is false for action types without a registered component; the overlay stays empty.
	Known bool `json:"known"`
}

// Snapshot returns a copy of the state that shares no mutable references.
func (s *PlaybackState) Snapshot() *PlaybackState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Characters = slices.Clone(s.Characters)
	if s.Action != nil {
		a := *s.Action
		a.Data = maps.Clone(s.Action.Data)
		cp.Action = &a
	}
	return &cp
}

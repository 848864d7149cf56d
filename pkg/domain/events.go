package domain

import (
	"context"
	"time"
)

// EventType defines the category of a playback event.
type EventType string

const (
	EventSceneEnter      EventType = "scene_enter"
	EventDialogueEnter   EventType = "dialogue_enter"
	EventBackground      EventType = "background"
	EventCharacters      EventType = "characters"
	EventNarrationStart  EventType = "narration_start"
	EventNarrationEnd    EventType = "narration_end"
	EventReveal          EventType = "reveal"
	EventTypingDone      EventType = "typing_done"
	EventAdvanceReady    EventType = "advance_ready"
	EventActionShown     EventType = "action_shown"
	EventActionHidden    EventType = "action_hidden"
	EventPaused          EventType = "paused"
	EventResumed         EventType = "resumed"
	EventFallback        EventType = "fallback"
	EventSceneComplete   EventType = "scene_complete"
	EventProgress        EventType = "progress"
	EventMissionComplete EventType = "mission_complete"
	EventState           EventType = "state"
)

// Event is a single notification emitted by the playback engine.
// Only the fields relevant to the Type are populated.
type Event struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id,omitempty"`
	MissionID     string    `json:"mission_id,omitempty"`
	SceneIndex    int       `json:"scene_index"`
	DialogueIndex int       `json:"dialogue_index"`

	Background string         `json:"background,omitempty"`
	Speaker    string         `json:"speaker,omitempty"`
	Text       string         `json:"text,omitempty"`
	Narration  string         `json:"narration,omitempty"`
	Index      int            `json:"index,omitempty"`
	Char       string         `json:"char,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Action     *MountedAction `json:"action,omitempty"`
	Progress   int            `json:"progress,omitempty"`
	Prompt     bool           `json:"prompt,omitempty"`
	Reason     string         `json:"reason,omitempty"`

	// Characters carries the stage of a characters event.
	Characters []StagedCharacter `json:"characters,omitempty"`

	// Diff carries the state changes of a state event.
	Diff *StateDiff `json:"diff,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSceneEnter      func(context.Context, *Event)
	OnDialogueEnter   func(context.Context, *Event)
	OnActionShown     func(context.Context, *Event)
	OnFallback        func(context.Context, *Event)
	OnSceneComplete   func(context.Context, *Event)
	OnMissionComplete func(context.Context, *Event)
}

// Fire routes the event to the matching hook, if any.
func (h LifecycleHooks) Fire(ctx context.Context, e *Event) {
	var fn func(context.Context, *Event)
	switch e.Type {
	case EventSceneEnter:
		fn = h.OnSceneEnter
	case EventDialogueEnter:
		fn = h.OnDialogueEnter
	case EventActionShown:
		fn = h.OnActionShown
	case EventFallback:
		fn = h.OnFallback
	case EventSceneComplete:
		fn = h.OnSceneComplete
	case EventMissionComplete:
		fn = h.OnMissionComplete
	}
	if fn != nil {
		fn(ctx, e)
	}
}

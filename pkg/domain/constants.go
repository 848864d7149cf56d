package domain

import "time"

// DefaultNarratorID is the reserved character id whose lines force the home-base background.
const DefaultNarratorID = "robot"

// DefaultHomeBase is the image key used for the home-base background when a mission does not set one.
const DefaultHomeBase = "homeBase"

// Timings holds every delay the dialogue state machine uses.
// The zero value is not useful; start from DefaultTimings.
type Timings struct {
	// BackgroundApply is the delay between clearing and applying a new background,
	// so that a CSS transition is observable on the client.
	BackgroundApply time.Duration `yaml:"background_apply" json:"background_apply"`

	// BackgroundTransition is the delay after which the background transition is complete.
	BackgroundTransition time.Duration `yaml:"background_transition" json:"background_transition"`

	// FirstCharacterDelay is the extra delay before characters animate on the
	// first dialogue of the first scene.
	FirstCharacterDelay time.Duration `yaml:"first_character_delay" json:"first_character_delay"`

	// FallbackTyping is the typewriter duration used when there is no narration or it failed.
	FallbackTyping time.Duration `yaml:"fallback_typing" json:"fallback_typing"`

	// ActionDelayFloor is the minimum delay before a non-exclusive action is shown.
	ActionDelayFloor time.Duration `yaml:"action_delay_floor" json:"action_delay_floor"`

	// GateAdvanceOnTyping, when true, unlocks user advance only after the
	// typewriter finishes on dialogues without narration.
	GateAdvanceOnTyping bool `yaml:"gate_advance_on_typing" json:"gate_advance_on_typing"`
}

// DefaultTimings returns the timings the web client was authored against.
func DefaultTimings() Timings {
	return Timings{
		BackgroundApply:      50 * time.Millisecond,
		BackgroundTransition: 1200 * time.Millisecond,
		FirstCharacterDelay:  2000 * time.Millisecond,
		FallbackTyping:       3000 * time.Millisecond,
		ActionDelayFloor:     500 * time.Millisecond,
	}
}

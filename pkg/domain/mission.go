package domain

import (
	"maps"
	"slices"
	"time"
)

// Position is the default stage position of a character.
type Position string

const (
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
	PositionCenter Position = "center"
)

// Character is a speaker that can appear in a scene.
type Character struct {
	Name     string   `json:"name" yaml:"name" mapstructure:"name"`
	Image    string   `json:"image" yaml:"image" mapstructure:"image"`
	Position Position `json:"position,omitempty" yaml:"position,omitempty" mapstructure:"position"`

	// CanAnimate overrides whether the character may move or fade.
	// Nil means the scene decides; false freezes the character (e.g. in home-base mode).
	CanAnimate *bool `json:"can_animate,omitempty" yaml:"can_animate,omitempty" mapstructure:"can_animate"`
}

// Animates reports whether the character may move or fade when the scene
// allows it by default. CanAnimate, when set, wins.
func (c Character) Animates(sceneDefault bool) bool {
	if c.CanAnimate != nil {
		return *c.CanAnimate
	}
	return sceneDefault
}

// StagedCharacter is a character as placed for the current dialogue.
type StagedCharacter struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Animate  bool     `json:"animate"`
}

// Dialogue is one turn of a scene.
type Dialogue struct {
	// Speaker is a character id, or empty for an unattributed line.
	Speaker string `json:"speaker,omitempty" yaml:"speaker,omitempty" mapstructure:"speaker"`
	Text    string `json:"text" yaml:"text" mapstructure:"text"`

	// Narration is the asset path of the narration audio, relative to the asset root.
	Narration string `json:"narration,omitempty" yaml:"narration,omitempty" mapstructure:"narration"`

	// NarrationDuration is an optional authored duration used when the asset cannot be measured.
	NarrationDuration time.Duration `json:"narration_duration,omitempty" yaml:"narration_duration,omitempty" mapstructure:"narration_duration"`

	Action *Action `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`

	HasOnlyNarration bool `json:"has_only_narration,omitempty" yaml:"has_only_narration,omitempty" mapstructure:"has_only_narration"`
	HasOnlyAction    bool `json:"has_only_action,omitempty" yaml:"has_only_action,omitempty" mapstructure:"has_only_action"`
}

// HasNarration reports whether the dialogue declares a narration asset.
func (d Dialogue) HasNarration() bool {
	return d.Narration != ""
}

// HasAction reports whether the dialogue declares an action with a type.
func (d Dialogue) HasAction() bool {
	return d.Action != nil && d.Action.Type != ""
}

// Exclusive reports whether the dialogue skips the standard text/typewriter path.
func (d Dialogue) Exclusive() bool {
	return (d.HasOnlyAction && d.HasAction()) || (d.HasOnlyNarration && d.HasNarration())
}

// Scene is a background plus an ordered list of dialogues.
type Scene struct {
	ID         string               `json:"id" yaml:"id" mapstructure:"id"`
	Background string               `json:"background,omitempty" yaml:"background,omitempty" mapstructure:"background"`
	Characters map[string]Character `json:"characters,omitempty" yaml:"characters,omitempty" mapstructure:"characters"`
	Dialogues  []Dialogue           `json:"dialogues" yaml:"dialogues" mapstructure:"dialogues"`
	FirstScene bool                 `json:"first_scene,omitempty" yaml:"first_scene,omitempty" mapstructure:"first_scene"`
}

// Dialogue returns the dialogue at index i, if it exists.
func (s *Scene) Dialogue(i int) (Dialogue, bool) {
	if s == nil || i < 0 || i >= len(s.Dialogues) {
		return Dialogue{}, false
	}
	return s.Dialogues[i], true
}

// Stage places the scene's characters, sorted by id. Characters without a
// position stand in the center.
func (s *Scene) Stage(animate bool) []StagedCharacter {
	if s == nil || len(s.Characters) == 0 {
		return nil
	}
	out := make([]StagedCharacter, 0, len(s.Characters))
	for _, id := range slices.Sorted(maps.Keys(s.Characters)) {
		c := s.Characters[id]
		pos := c.Position
		if pos == "" {
			pos = PositionCenter
		}
		out = append(out, StagedCharacter{ID: id, Position: pos, Animate: c.Animates(animate)})
	}
	return out
}

// Mission is an ordered list of scenes.
type Mission struct {
	ID     string  `json:"id" yaml:"id" mapstructure:"id"`
	Title  string  `json:"title" yaml:"title" mapstructure:"title"`
	Scenes []Scene `json:"scenes" yaml:"scenes" mapstructure:"scenes"`

	// Intro runs the first scene with the home-base background forced.
	Intro bool `json:"intro,omitempty" yaml:"intro,omitempty" mapstructure:"intro"`

	// HomeBase is the image key of the home-base background.
	HomeBase string `json:"home_base,omitempty" yaml:"home_base,omitempty" mapstructure:"home_base"`

	// Narrator is the character id that forces the home-base background when speaking.
	Narrator string `json:"narrator,omitempty" yaml:"narrator,omitempty" mapstructure:"narrator"`

	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// Scene returns the scene at index i, if it exists.
func (m *Mission) Scene(i int) (*Scene, bool) {
	if m == nil || i < 0 || i >= len(m.Scenes) {
		return nil, false
	}
	return &m.Scenes[i], true
}

// HomeBaseImage returns the configured home-base key or the default.
func (m *Mission) HomeBaseImage() string {
	if m.HomeBase != "" {
		return m.HomeBase
	}
	return DefaultHomeBase
}

// NarratorID returns the configured narrator id or the default.
func (m *Mission) NarratorID() string {
	if m.Narrator != "" {
		return m.Narrator
	}
	return DefaultNarratorID
}

// MissionSummary is the listing view of a mission.
type MissionSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Scenes int    `json:"scenes"`
}

// Summary returns the listing view of the mission.
func (m *Mission) Summary() MissionSummary {
	return MissionSummary{ID: m.ID, Title: m.Title, Scenes: len(m.Scenes)}
}

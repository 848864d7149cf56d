package dsl

import (
	"maps"
	"time"

	"github.com/aretw0/storyline/pkg/domain"
)

// SceneBuilder provides a fluent API for configuring a scene.
type SceneBuilder struct {
	scene     domain.Scene
	dialogues []*DialogueBuilder
}

// Background sets the scene background key.
func (s *SceneBuilder) Background(key string) *SceneBuilder {
	s.scene.Background = key
	return s
}

// First marks the scene as a first scene, enabling the character entrance delay.
func (s *SceneBuilder) First() *SceneBuilder {
	s.scene.FirstScene = true
	return s
}

// Character adds a speaker to the scene.
func (s *SceneBuilder) Character(id, name, image string, pos domain.Position) *SceneBuilder {
	if s.scene.Characters == nil {
		s.scene.Characters = make(map[string]domain.Character)
	}
	s.scene.Characters[id] = domain.Character{Name: name, Image: image, Position: pos}
	return s
}

// Say appends a dialogue spoken by speaker. An empty speaker is unattributed.
func (s *SceneBuilder) Say(speaker, text string) *DialogueBuilder {
	db := &DialogueBuilder{dialogue: domain.Dialogue{Speaker: speaker, Text: text}}
	s.dialogues = append(s.dialogues, db)
	return db
}

// Narrate appends a narration-only dialogue.
func (s *SceneBuilder) Narrate(speaker, path string, duration time.Duration) *DialogueBuilder {
	return s.Say(speaker, "").Narration(path, duration).OnlyNarration()
}

// Action appends an action-only dialogue.
func (s *SceneBuilder) Action(actionType string, data map[string]any) *DialogueBuilder {
	return s.Say("", "").Action(actionType, data).OnlyAction()
}

// Build returns a fresh domain.Scene.
func (s *SceneBuilder) Build() domain.Scene {
	out := s.scene
	out.Characters = maps.Clone(s.scene.Characters)
	out.Dialogues = make([]domain.Dialogue, 0, len(s.dialogues))
	for _, db := range s.dialogues {
		out.Dialogues = append(out.Dialogues, db.Build())
	}
	return out
}

// DialogueBuilder provides a fluent API for configuring a dialogue.
type DialogueBuilder struct {
	dialogue domain.Dialogue
}

// Narration attaches a narration asset. A positive duration is used when the
// asset cannot be measured.
func (d *DialogueBuilder) Narration(path string, duration ...time.Duration) *DialogueBuilder {
	d.dialogue.Narration = path
	if len(duration) > 0 {
		d.dialogue.NarrationDuration = duration[0]
	}
	return d
}

// Action attaches a mini-game.
func (d *DialogueBuilder) Action(actionType string, data map[string]any) *DialogueBuilder {
	d.dialogue.Action = &domain.Action{Type: actionType, Data: maps.Clone(data)}
	return d
}

// OnlyNarration plays the narration without text or typewriter.
func (d *DialogueBuilder) OnlyNarration() *DialogueBuilder {
	d.dialogue.HasOnlyNarration = true
	return d
}

// OnlyAction shows the action right away, skipping text and narration.
func (d *DialogueBuilder) OnlyAction() *DialogueBuilder {
	d.dialogue.HasOnlyAction = true
	return d
}

// Build returns the underlying domain.Dialogue.
func (d *DialogueBuilder) Build() domain.Dialogue {
	out := d.dialogue
	if d.dialogue.Action != nil {
		a := *d.dialogue.Action
		a.Data = maps.Clone(a.Data)
		out.Action = &a
	}
	return out
}

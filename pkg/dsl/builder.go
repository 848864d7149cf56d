package dsl

import (
	"fmt"

	"github.com/aretw0/storyline/pkg/adapters/memory"
	"github.com/aretw0/storyline/pkg/domain"
)

// Builder manages the construction of a set of missions.
type Builder struct {
	order    []string
	missions map[string]*MissionBuilder
}

// New creates a new mission library builder.
func New() *Builder {
	return &Builder{
		missions: make(map[string]*MissionBuilder),
	}
}

// Mission creates a new mission.
// If the mission already exists, it returns the existing builder.
func (b *Builder) Mission(id string) *MissionBuilder {
	if mb, ok := b.missions[id]; ok {
		return mb
	}
	mb := &MissionBuilder{mission: domain.Mission{ID: id}}
	b.missions[id] = mb
	b.order = append(b.order, id)
	return mb
}

// Build compiles the missions into a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	missions := make([]*domain.Mission, 0, len(b.order))
	for _, id := range b.order {
		missions = append(missions, b.missions[id].Build())
	}

	loader, err := memory.NewLoader(missions...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

// MissionBuilder provides a fluent API for configuring a mission.
type MissionBuilder struct {
	mission domain.Mission
	scenes  []*SceneBuilder
}

// Title sets the display title.
func (m *MissionBuilder) Title(title string) *MissionBuilder {
	m.mission.Title = title
	return m
}

// Description sets the mission description.
func (m *MissionBuilder) Description(text string) *MissionBuilder {
	m.mission.Description = text
	return m
}

// Intro marks the mission as the onboarding mission; its first scene forces the home base.
func (m *MissionBuilder) Intro() *MissionBuilder {
	m.mission.Intro = true
	return m
}

// HomeBase sets the home-base image key.
func (m *MissionBuilder) HomeBase(key string) *MissionBuilder {
	m.mission.HomeBase = key
	return m
}

// Narrator sets the character id whose lines force the home base.
func (m *MissionBuilder) Narrator(id string) *MissionBuilder {
	m.mission.Narrator = id
	return m
}

// Scene appends a scene. Scenes play in the order they are added.
func (m *MissionBuilder) Scene(id string) *SceneBuilder {
	sb := &SceneBuilder{scene: domain.Scene{ID: id}}
	m.scenes = append(m.scenes, sb)
	return sb
}

// Build returns a fresh domain.Mission.
func (m *MissionBuilder) Build() *domain.Mission {
	out := m.mission
	out.Scenes = make([]domain.Scene, 0, len(m.scenes))
	for _, sb := range m.scenes {
		out.Scenes = append(out.Scenes, sb.Build())
	}
	return &out
}

package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/storyline/internal/presentation/graph"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/dsl"
)

func sampleMission() *domain.Mission {
	b := dsl.New()
	m := b.Mission("intro")
	s1 := m.Scene("arrival").Background("office")
	s1.Narrate("narrator", "audio/a.mp3", time.Second).OnlyNarration()
	s1.Say("ana", "Welcome to the \"team\"!")
	s2 := m.Scene("desk-2")
	s2.Say("ana", "Try this.").Action("quiz", nil)
	s2.Action("wait", map[string]any{"ms": 100}).OnlyAction()
	s2.Say("ana", strings.Repeat("long line ", 10))
	return m.Build()
}

func TestGenerateMermaid(t *testing.T) {
	m := sampleMission()

	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Scene Subgraphs",
			contains: []string{
				"graph TD",
				"subgraph s0_arrival[\"arrival <br/> 🖼️ office\"]",
				"subgraph s1_desk_2[\"desk-2\"]",
			},
		},
		{
			name: "Dialogue Shapes",
			contains: []string{
				"s0_arrival_d0([\"🔊 narrator: ",
				"s0_arrival_d1[\"ana: Welcome to the 'team'!\"]",
				"s1_desk_2_d0{{\"ana: Try this. <br/> 🎮 quiz\"}}",
				"s1_desk_2_d1[[\"🎮 wait\"]]",
				"…\"]",
			},
		},
		{
			name: "Playback Order",
			contains: []string{
				"s0_arrival_d0 --> s0_arrival_d1",
				"s0_arrival_d1 -.-> s1_desk_2_d0",
				"s1_desk_2_d1 --> s1_desk_2_d2",
			},
		},
		{
			name:    "Checkpoint Overlay",
			overlay: &graph.Overlay{Step: 1},
			contains: []string{
				"classDef visited",
				"class s0_arrival visited;",
				"class s1_desk_2 current;",
			},
		},
		{
			name:     "Completed Overlay",
			overlay:  &graph.Overlay{Step: 1, Complete: true},
			contains: []string{"class s1_desk_2 visited;"},
			excludes: []string{"current;"},
		},
		{
			name:     "No Overlay",
			excludes: []string{"classDef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(m, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() unexpectedly contains %q\nGot:\n%s", unwanted, got)
				}
			}
		})
	}
}

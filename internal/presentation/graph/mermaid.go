package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/storyline/pkg/domain"
)

// Overlay contains a player's position to highlight on the graph.
type Overlay struct {
	// Step is the index of the current scene.
	Step     int
	Complete bool
}

// GenerateMermaid produces a Mermaid flowchart of a mission: one subgraph per
// scene, one node per dialogue, in playback order.
// Dialogue shapes:
// - Narration only: ([Stadium])
// - Action only: [[Subroutine]]
// - Text with an action: {{Hexagon}}
// - Default: [Rectangle]
// Scene changes are drawn as dotted arrows. The overlay, when provided, marks
// finished scenes as visited and the checkpoint scene as current.
func GenerateMermaid(m *domain.Mission, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var prev string
	for si, sc := range m.Scenes {
		sceneID := sceneNodeID(si, sc)
		title := sc.ID
		if sc.Background != "" {
			title = fmt.Sprintf("%s <br/> 🖼️ %s", sc.ID, sc.Background)
		}
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sceneID, escape(title))

		for di, d := range sc.Dialogues {
			id := fmt.Sprintf("%s_d%d", sceneID, di)
			opener, closer := "[", "]"
			label := dialogueLabel(d)

			switch {
			case d.HasOnlyNarration && d.HasNarration():
				opener, closer = "([", "])"
			case d.HasOnlyAction && d.HasAction():
				opener, closer = "[[", "]]"
				label = "🎮 " + d.Action.Type
			case d.HasAction():
				opener, closer = "{{", "}}"
				label += " <br/> 🎮 " + d.Action.Type
			}
			if d.HasNarration() && !d.HasOnlyAction {
				label = "🔊 " + label
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", id, opener, escape(label), closer)

			if prev != "" {
				arrow := "-->"
				if di == 0 {
					arrow = "-.->"
				}
				fmt.Fprintf(&sb, "        %s %s %s\n", prev, arrow, id)
			}
			prev = id
		}
		sb.WriteString("    end\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both light and dark themes
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for si, sc := range m.Scenes {
			switch {
			case overlay.Complete || si < overlay.Step:
				fmt.Fprintf(&sb, "    class %s visited;\n", sceneNodeID(si, sc))
			case si == overlay.Step:
				fmt.Fprintf(&sb, "    class %s current;\n", sceneNodeID(si, sc))
			}
		}
	}

	return sb.String()
}

func dialogueLabel(d domain.Dialogue) string {
	text := d.Text
	if r := []rune(text); len(r) > 40 {
		text = string(r[:39]) + "…"
	}
	if d.Speaker != "" {
		return d.Speaker + ": " + text
	}
	return text
}

func sceneNodeID(index int, sc domain.Scene) string {
	if sc.ID == "" {
		return fmt.Sprintf("scene_%d", index)
	}
	return fmt.Sprintf("s%d_%s", index, sanitizeMermaidID(sc.ID))
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

package tui

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/aretw0/storyline/pkg/domain"
)

// Player renders playback events as a terminal transcript. Reveal events
// print one character at a time so the typewriter pacing is preserved.
type Player struct {
	mu       sync.Mutex
	out      io.Writer
	profile  termenv.Profile
	markdown func(string) (string, error)

	mission *domain.Mission
	pending string
	midLine bool
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithProfile forces a color profile, termenv.Ascii disables styling.
func WithProfile(p termenv.Profile) PlayerOption {
	return func(pl *Player) {
		pl.profile = p
	}
}

// WithMarkdown sets the renderer used for mission descriptions.
func WithMarkdown(render func(string) (string, error)) PlayerOption {
	return func(pl *Player) {
		pl.markdown = render
	}
}

// NewPlayer creates a Player writing to out.
func NewPlayer(out io.Writer, opts ...PlayerOption) *Player {
	p := &Player{
		out:     out,
		profile: termenv.ColorProfile(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Intro prints the mission header and sets the mission used to resolve speaker names.
func (p *Player) Intro(m *domain.Mission) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mission = m
	title := m.Title
	if title == "" {
		title = m.ID
	}
	fmt.Fprintln(p.out, p.style(title).Bold().Foreground(p.profile.Color("#818cf8")))
	if m.Description == "" {
		return
	}
	desc := m.Description
	if p.markdown != nil {
		if rendered, err := p.markdown(desc); err == nil {
			desc = strings.TrimRight(rendered, "\n")
		}
	}
	fmt.Fprintln(p.out, desc)
}

// Render prints a single event.
func (p *Player) Render(e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case domain.EventSceneEnter:
		p.line(p.style(fmt.Sprintf("── Scene %d ──", e.SceneIndex+1)).Bold().String())
	case domain.EventBackground:
		if e.Background != "" {
			p.line(p.style("[" + e.Background + "]").Faint().String())
		}
	case domain.EventDialogueEnter:
		p.endLine()
		p.pending = p.speakerName(e.SceneIndex, e.Speaker)
	case domain.EventNarrationStart:
		p.line(p.style(fmt.Sprintf("♪ %s (%s)", e.Narration, e.Duration)).Faint().String())
	case domain.EventFallback:
		p.line(p.style("(narration unavailable: " + e.Reason + ")").Faint().String())
	case domain.EventReveal:
		if !p.midLine {
			if p.pending != "" {
				fmt.Fprint(p.out, p.style(p.pending+": ").Bold().Foreground(p.profile.Color("#38bdf8")))
			}
			p.midLine = true
		}
		fmt.Fprint(p.out, e.Char)
	case domain.EventTypingDone:
		p.endLine()
	case domain.EventAdvanceReady:
		if e.Prompt {
			p.line(p.style("Press Enter to continue").Italic().String())
		}
	case domain.EventActionShown:
		p.line(p.actionBox(e.Action))
	case domain.EventActionHidden:
		p.line(p.style("[action complete]").Faint().String())
	case domain.EventPaused:
		p.line(p.style("‖ paused").Faint().String())
	case domain.EventResumed:
		p.line(p.style("▶ resumed").Faint().String())
	case domain.EventProgress:
		p.line(p.style(fmt.Sprintf("progress %d%%", e.Progress)).Foreground(p.profile.Color("#22c55e")).String())
	case domain.EventMissionComplete:
		p.line(p.style("Mission complete: " + e.Text).Bold().Foreground(p.profile.Color("#22c55e")).String())
	}
}

// Notice prints a system message on its own line.
func (p *Player) Notice(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.line(">>> " + fmt.Sprintf(format, args...))
}

func (p *Player) actionBox(a *domain.MountedAction) string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "┌ action: %s (id %d)", a.Type, a.ID)
	if !a.Known {
		b.WriteString(" [no component]")
	}
	for _, k := range slices.Sorted(maps.Keys(a.Data)) {
		fmt.Fprintf(&b, "\n│ %s: %v", k, a.Data[k])
	}
	b.WriteString("\n└ type 'done' when finished")
	return p.style(b.String()).Foreground(p.profile.Color("#f472b6")).String()
}

func (p *Player) speakerName(sceneIndex int, id string) string {
	if id == "" {
		return ""
	}
	if p.mission != nil {
		if sc, ok := p.mission.Scene(sceneIndex); ok {
			if c, ok := sc.Characters[id]; ok && c.Name != "" {
				return c.Name
			}
		}
	}
	return id
}

func (p *Player) line(s string) {
	p.endLine()
	fmt.Fprintln(p.out, s)
}

func (p *Player) endLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

func (p *Player) style(s string) termenv.Style {
	return p.profile.String(s)
}

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/internal/presentation/tui"
	"github.com/aretw0/storyline/pkg/domain"
)

// PlayOptions configures a terminal playthrough.
type PlayOptions struct {
	UserID    string
	MissionID string

	// Auto advances every dialogue once it is fully shown and completes actions.
	Auto bool
	// JSON writes events as NDJSON instead of a transcript.
	JSON bool
	// Watch restarts the session from its checkpoint when content changes.
	Watch bool
	// Fresh deletes the checkpoint before starting.
	Fresh bool

	In  io.Reader
	Out io.Writer
}

var errQuit = errors.New("quit")

// Play runs a mission in the terminal until it completes, the user quits or
// ctx is cancelled. Input lines are commands; an empty line continues.
func Play(ctx context.Context, eng *storyline.Engine, opts PlayOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if opts.Fresh {
		if err := eng.ResetProgress(ctx, opts.UserID, opts.MissionID); err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
	}

	var player *tui.Player
	if !opts.JSON {
		player = tui.NewPlayer(opts.Out, tui.WithMarkdown(tui.NewRenderer(TerminalWidth(opts.Out))))
	}
	lines := readLines(ctx, opts.In)

	for {
		m, err := eng.Mission(ctx, opts.MissionID)
		if err != nil {
			return err
		}
		if player != nil {
			player.Intro(m)
		}

		err = playOnce(ctx, eng, m, player, lines, opts)
		if errors.Is(err, errReload) {
			if player != nil {
				player.Notice("Content changed, resuming from checkpoint...")
			}
			continue
		}
		if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

var errReload = errors.New("reload")

type playback struct {
	sess    *storyline.Session
	mission *domain.Mission
	auto    bool

	ready  bool
	typed  bool
	action uint64
}

func playOnce(ctx context.Context, eng *storyline.Engine, m *domain.Mission, player *tui.Player,
	lines <-chan string, opts PlayOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := eng.Start(ctx, opts.UserID, opts.MissionID)
	if err != nil {
		return err
	}
	defer sess.Close()

	events, unsubscribe, err := sess.Subscribe(ctx, 1024)
	if err != nil {
		return err
	}
	defer unsubscribe()

	var changes <-chan struct{}
	if opts.Watch {
		if changes, err = eng.Watch(ctx); err != nil {
			return err
		}
	}

	pb := &playback{sess: sess, mission: m, auto: opts.Auto}
	enc := json.NewEncoder(opts.Out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			return errReload
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if player != nil {
				player.Render(e)
			} else if err := enc.Encode(e); err != nil {
				return err
			}
			if err := pb.observe(ctx, e); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				if opts.Auto {
					lines = nil
					continue
				}
				return errQuit
			}
			if err := pb.command(ctx, line, player); err != nil {
				return err
			}
		}
	}
}

// observe tracks what the current dialogue still needs and drives auto mode.
func (pb *playback) observe(ctx context.Context, e domain.Event) error {
	switch e.Type {
	case domain.EventDialogueEnter:
		pb.ready = false
		pb.typed = !expectsTyping(pb.mission, e.SceneIndex, e.DialogueIndex)
	case domain.EventTypingDone:
		pb.typed = true
	case domain.EventAdvanceReady:
		pb.ready = true
	case domain.EventActionShown:
		if e.Action != nil {
			pb.action = e.Action.ID
		}
	case domain.EventActionHidden:
		pb.action = 0
	}

	if !pb.auto {
		return nil
	}
	if pb.action != 0 {
		_, err := pb.sess.CompleteAction(ctx, pb.action)
		pb.action = 0
		return ignoreClosed(err)
	}
	if pb.ready && pb.typed {
		res, err := pb.sess.Send(ctx, storyline.CmdContinue)
		if res.Accepted {
			pb.ready = false
		}
		return ignoreClosed(err)
	}
	return nil
}

func (pb *playback) command(ctx context.Context, line string, player *tui.Player) error {
	input := strings.ToLower(strings.TrimSpace(line))
	switch input {
	case "q", "quit", "exit":
		return errQuit
	case "":
		input = string(storyline.CmdContinue)
	case "b":
		input = string(storyline.CmdBack)
	case "p":
		input = string(storyline.CmdPause)
	case "r":
		input = string(storyline.CmdResume)
	case "d":
		input = string(storyline.CmdCompleteAction)
	}

	cmd, err := storyline.ParseCommand(input)
	if err != nil {
		if player != nil {
			player.Notice("Unknown command %q (enter, b, p, r, d, q)", line)
		}
		return nil
	}
	var res storyline.Result
	if cmd == storyline.CmdCompleteAction {
		res, err = pb.sess.CompleteAction(ctx, pb.action)
	} else {
		res, err = pb.sess.Send(ctx, cmd)
	}
	if err != nil {
		return ignoreClosed(err)
	}
	if !res.Accepted && player != nil {
		player.Notice("Not now.")
	}
	return nil
}

// expectsTyping reports whether the dialogue reveals its text with the typewriter.
func expectsTyping(m *domain.Mission, sceneIndex, dialogueIndex int) bool {
	sc, ok := m.Scene(sceneIndex)
	if !ok {
		return false
	}
	d, ok := sc.Dialogue(dialogueIndex)
	if !ok || d.Text == "" {
		return false
	}
	return !(d.HasOnlyNarration && d.HasNarration()) && !(d.HasOnlyAction && d.HasAction())
}

func ignoreClosed(err error) error {
	if errors.Is(err, domain.ErrSessionClosed) {
		return nil
	}
	return err
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// TerminalWidth returns the column count of w when it is a terminal, else 0.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

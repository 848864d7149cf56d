package storyline

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/storyline/pkg/domain"
)

// Command is a user intent sent to a session.
type Command string

const (
	CmdContinue       Command = "continue"
	CmdBack           Command = "back"
	CmdPause          Command = "pause"
	CmdResume         Command = "resume"
	CmdCompleteAction Command = "complete_action"
)

var aliases = map[string]Command{
	"continue":        CmdContinue,
	"next":            CmdContinue,
	"back":            CmdBack,
	"go_back":         CmdBack,
	"previous":        CmdBack,
	"pause":           CmdPause,
	"resume":          CmdResume,
	"complete_action": CmdCompleteAction,
	"done":            CmdCompleteAction,
}

// ParseCommand resolves a command name, accepting a few aliases.
func ParseCommand(name string) (Command, error) {
	cmd, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}
	return cmd, nil
}

// Result reports whether a command was applied and the view after it.
type Result struct {
	Accepted bool      `json:"accepted"`
	Snapshot *Snapshot `json:"snapshot"`
}

// Send applies cmd. Commands that are not valid in the current phase are
// ignored and reported with Accepted=false. CmdCompleteAction must go through
// CompleteAction, which names the mount being completed.
func (s *Session) Send(ctx context.Context, cmd Command) (Result, error) {
	var res Result
	var cmdErr error
	err := s.submit(ctx, func() {
		m := s.seq.Machine()
		switch cmd {
		case CmdContinue:
			res.Accepted = m.Continue()
		case CmdBack:
			res.Accepted = m.GoBack()
		case CmdPause:
			res.Accepted = m.Pause()
		case CmdResume:
			res.Accepted = m.Resume()
		case CmdCompleteAction:
			cmdErr = domain.ErrActionIDRequired
			return
		default:
			cmdErr = fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd)
			return
		}
		res.Snapshot = s.snapshot()
	})
	if err != nil {
		return Result{}, err
	}
	return res, cmdErr
}

// CompleteAction completes the action mounted with id. Completions for an
// action that is no longer mounted are ignored.
func (s *Session) CompleteAction(ctx context.Context, id uint64) (Result, error) {
	var res Result
	err := s.submit(ctx, func() {
		res.Accepted = s.seq.Machine().CompleteActionID(id)
		res.Snapshot = s.snapshot()
	})
	return res, err
}

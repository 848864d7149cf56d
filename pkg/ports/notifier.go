package ports

import (
	"context"

	"github.com/aretw0/storyline/pkg/domain"
)

// CompletionNotifier receives the mission-completed notification.
// The engine calls it exactly once per completed playthrough.
type CompletionNotifier interface {
	NotifyMissionCompleted(ctx context.Context, evt domain.MissionCompleted) error
}

// NotifierFunc adapts a function to the CompletionNotifier interface.
type NotifierFunc func(ctx context.Context, evt domain.MissionCompleted) error

// NotifyMissionCompleted calls f.
func (f NotifierFunc) NotifyMissionCompleted(ctx context.Context, evt domain.MissionCompleted) error {
	return f(ctx, evt)
}

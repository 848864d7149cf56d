package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

var _ ports.CompletionNotifier = (*Notifier)(nil)

// Notifier records mission-completed notifications and logs each one.
// It is the default notifier for local runs and a spy in tests.
type Notifier struct {
	logger *slog.Logger

	mu     sync.Mutex
	events []domain.MissionCompleted
}

// NewNotifier creates a Notifier. A nil logger disables logging.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Notifier{logger: logger}
}

// NotifyMissionCompleted records evt.
func (n *Notifier) NotifyMissionCompleted(ctx context.Context, evt domain.MissionCompleted) error {
	n.mu.Lock()
	n.events = append(n.events, evt)
	n.mu.Unlock()

	n.logger.InfoContext(ctx, "Mission completed",
		"user_id", evt.UserID,
		"mission_id", evt.MissionID,
		"mission_name", evt.MissionName,
	)
	return nil
}

// Events returns a copy of the recorded notifications.
func (n *Notifier) Events() []domain.MissionCompleted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.MissionCompleted(nil), n.events...)
}

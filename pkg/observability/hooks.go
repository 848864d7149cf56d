package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/storyline/pkg/domain"
)

// Combine merges several hook sets into one that calls each in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	join := func(pick func(domain.LifecycleHooks) func(context.Context, *domain.Event)) func(context.Context, *domain.Event) {
		var fns []func(context.Context, *domain.Event)
		for _, s := range sets {
			if fn := pick(s); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, e *domain.Event) {
			for _, fn := range fns {
				fn(ctx, e)
			}
		}
	}

	return domain.LifecycleHooks{
		OnSceneEnter:      join(func(h domain.LifecycleHooks) func(context.Context, *domain.Event) { return h.OnSceneEnter }),
		OnDialogueEnter:   join(func(h domain.LifecycleHooks) func(context.Context, *domain.Event) { return h.OnDialogueEnter }),
		OnActionShown:     join(func(h domain.LifecycleHooks) func(context.Context, *domain.Event) { return h.OnActionShown }),
		OnFallback:        join(func(h domain.LifecycleHooks) func(context.Context, *domain.Event) { return h.OnFallback }),
		OnSceneComplete:   join(func(h domain.LifecycleHooks) func(context.Context, *domain.Event) { return h.OnSceneComplete }),
		OnMissionComplete: join(func(h domain.LifecycleHooks) func(context.Context, *domain.Event) { return h.OnMissionComplete }),
	}
}

// LoggingHooks logs every lifecycle event at info level, fallbacks at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	attrs := func(e *domain.Event) []any {
		return []any{
			"session_id", e.SessionID,
			"mission_id", e.MissionID,
			"scene_index", e.SceneIndex,
			"dialogue_index", e.DialogueIndex,
		}
	}

	return domain.LifecycleHooks{
		OnSceneEnter: func(ctx context.Context, e *domain.Event) {
			logger.InfoContext(ctx, "scene_enter", append(attrs(e), "background", e.Background)...)
		},
		OnDialogueEnter: func(ctx context.Context, e *domain.Event) {
			logger.DebugContext(ctx, "dialogue_enter", append(attrs(e), "speaker", e.Speaker)...)
		},
		OnActionShown: func(ctx context.Context, e *domain.Event) {
			var typ string
			if e.Action != nil {
				typ = e.Action.Type
			}
			logger.InfoContext(ctx, "action_shown", append(attrs(e), "action_type", typ)...)
		},
		OnFallback: func(ctx context.Context, e *domain.Event) {
			logger.WarnContext(ctx, "narration_fallback", append(attrs(e), "reason", e.Reason)...)
		},
		OnSceneComplete: func(ctx context.Context, e *domain.Event) {
			logger.InfoContext(ctx, "scene_complete", attrs(e)...)
		},
		OnMissionComplete: func(ctx context.Context, e *domain.Event) {
			logger.InfoContext(ctx, "mission_complete", attrs(e)...)
		},
	}
}

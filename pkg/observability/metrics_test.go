package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.Fire(ctx, &domain.Event{Type: domain.EventSceneEnter, MissionID: "intro"})
	hooks.Fire(ctx, &domain.Event{Type: domain.EventSceneEnter, MissionID: "intro"})
	hooks.Fire(ctx, &domain.Event{Type: domain.EventActionShown, Action: &domain.MountedAction{Type: "quiz"}})
	hooks.Fire(ctx, &domain.Event{Type: domain.EventActionShown})
	hooks.Fire(ctx, &domain.Event{Type: domain.EventFallback, Reason: "autoplay_blocked"})
	hooks.Fire(ctx, &domain.Event{Type: domain.EventMissionComplete, MissionID: "intro"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SceneEnters.WithLabelValues("intro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsShown.WithLabelValues("quiz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsShown.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("autoplay_blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MissionsComplete.WithLabelValues("intro")))

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnSceneEnter: func(context.Context, *domain.Event) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnSceneEnter:    func(context.Context, *domain.Event) { calls = append(calls, "b") },
		OnSceneComplete: func(context.Context, *domain.Event) { calls = append(calls, "b-done") },
	}

	h := observability.Combine(a, domain.LifecycleHooks{}, b)
	h.Fire(context.Background(), &domain.Event{Type: domain.EventSceneEnter})
	h.Fire(context.Background(), &domain.Event{Type: domain.EventSceneComplete})

	assert.Equal(t, []string{"a", "b", "b-done"}, calls)
	assert.Nil(t, h.OnFallback)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := observability.LoggingHooks(logger)
	h.Fire(context.Background(), &domain.Event{Type: domain.EventFallback, MissionID: "m", Reason: "narration_failed"})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "reason=narration_failed")
	assert.Contains(t, out, "mission_id=m")
}

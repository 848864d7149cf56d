package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/storyline/pkg/domain"
)

// Metrics holds the Prometheus collectors of the playback engine.
type Metrics struct {
	SceneEnters      *prometheus.CounterVec
	DialogueEnters   *prometheus.CounterVec
	ActionsShown     *prometheus.CounterVec
	Fallbacks        *prometheus.CounterVec
	ScenesCompleted  *prometheus.CounterVec
	MissionsComplete *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SceneEnters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_scene_enters_total",
			Help: "Total number of scenes entered",
		}, []string{"mission_id"}),
		DialogueEnters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_dialogue_enters_total",
			Help: "Total number of dialogues entered",
		}, []string{"mission_id"}),
		ActionsShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_actions_shown_total",
			Help: "Total number of action overlays mounted",
		}, []string{"action_type"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_narration_fallbacks_total",
			Help: "Total number of dialogues that fell back to silent typing",
		}, []string{"reason"}),
		ScenesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_scenes_completed_total",
			Help: "Total number of scenes played to the end",
		}, []string{"mission_id"}),
		MissionsComplete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_missions_completed_total",
			Help: "Total number of missions completed",
		}, []string{"mission_id"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storyline_active_sessions",
			Help: "Number of live playback sessions",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SceneEnters,
			m.DialogueEnters,
			m.ActionsShown,
			m.Fallbacks,
			m.ScenesCompleted,
			m.MissionsComplete,
			m.ActiveSessions,
		)
	}
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSceneEnter: func(_ context.Context, e *domain.Event) {
			m.SceneEnters.WithLabelValues(e.MissionID).Inc()
		},
		OnDialogueEnter: func(_ context.Context, e *domain.Event) {
			m.DialogueEnters.WithLabelValues(e.MissionID).Inc()
		},
		OnActionShown: func(_ context.Context, e *domain.Event) {
			typ := "unknown"
			if e.Action != nil && e.Action.Type != "" {
				typ = e.Action.Type
			}
			m.ActionsShown.WithLabelValues(typ).Inc()
		},
		OnFallback: func(_ context.Context, e *domain.Event) {
			m.Fallbacks.WithLabelValues(e.Reason).Inc()
		},
		OnSceneComplete: func(_ context.Context, e *domain.Event) {
			m.ScenesCompleted.WithLabelValues(e.MissionID).Inc()
		},
		OnMissionComplete: func(_ context.Context, e *domain.Event) {
			m.MissionsComplete.WithLabelValues(e.MissionID).Inc()
		},
	}
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() { m.ActiveSessions.Inc() }

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.ActiveSessions.Dec() }

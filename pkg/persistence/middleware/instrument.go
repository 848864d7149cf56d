package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

// StoreMetrics holds the collectors of an instrumented store.
type StoreMetrics struct {
	Duration *prometheus.HistogramVec
}

// NewStoreMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyline_store_operation_duration_seconds",
			Help:    "Latency of progress store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Duration)
	}
	return m
}

type instrumented struct {
	next    ports.ProgressStore
	metrics *StoreMetrics
	logger  *slog.Logger
}

// NewInstrumentMiddleware records the latency of every store call and logs
// failures. A missing checkpoint is a normal outcome and is not logged.
func NewInstrumentMiddleware(metrics *StoreMetrics, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next ports.ProgressStore) ports.ProgressStore {
		return &instrumented{next: next, metrics: metrics, logger: logger}
	}
}

func (s *instrumented) observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProgressNotFound):
		result = "not_found"
	default:
		result = "error"
		s.logger.ErrorContext(ctx, "progress store failed", append(attrs, "op", op, "err", err)...)
	}
	if s.metrics != nil {
		s.metrics.Duration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
	}
}

func (s *instrumented) Save(ctx context.Context, rec domain.ProgressRecord) error {
	start := time.Now()
	err := s.next.Save(ctx, rec)
	s.observe(ctx, "save", start, err, "mission_id", rec.MissionID, "step", rec.Step)
	return err
}

func (s *instrumented) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	start := time.Now()
	rec, err := s.next.Load(ctx, userID, missionID)
	s.observe(ctx, "load", start, err, "mission_id", missionID)
	return rec, err
}

func (s *instrumented) Delete(ctx context.Context, userID, missionID string) error {
	start := time.Now()
	err := s.next.Delete(ctx, userID, missionID)
	s.observe(ctx, "delete", start, err, "mission_id", missionID)
	return err
}

func (s *instrumented) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	start := time.Now()
	recs, err := s.next.List(ctx, userID)
	s.observe(ctx, "list", start, err)
	return recs, err
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/internal/config"
	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/adapters/amqp"
	"github.com/aretw0/storyline/pkg/adapters/file"
	"github.com/aretw0/storyline/pkg/adapters/firestore"
	"github.com/aretw0/storyline/pkg/adapters/memory"
	"github.com/aretw0/storyline/pkg/adapters/postgres"
	"github.com/aretw0/storyline/pkg/adapters/redis"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/observability"
	"github.com/aretw0/storyline/pkg/persistence/middleware"
	"github.com/aretw0/storyline/pkg/ports"
)

// NewLogger builds the application logger from the log section.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)
	if cfg.Format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// Runtime is an engine together with the backends it owns.
type Runtime struct {
	Engine   *storyline.Engine
	Registry *prometheus.Registry

	closers []func() error
}

// MetricsHandler serves the runtime's metrics registry.
func (rt *Runtime) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})
}

// Close stops every session and releases the backends.
func (rt *Runtime) Close() error {
	if rt.Engine != nil {
		rt.Engine.Close()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires an engine from cfg. Extra options are applied last.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...storyline.Option) (rt *Runtime, err error) {
	rt = &Runtime{Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend, err := rt.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	mws := []middleware.Middleware{
		middleware.NewInstrumentMiddleware(middleware.NewStoreMetrics(rt.Registry), logger),
	}
	if cfg.Store.PseudonymKey != "" {
		pii, err := middleware.NewPIIMiddleware([]byte(cfg.Store.PseudonymKey))
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	store := middleware.Chain(backend, mws...)
	notifier, err := rt.openNotifier(cfg.Notifier, logger)
	if err != nil {
		return nil, err
	}

	opts := []storyline.Option{
		storyline.WithLogger(logger),
		storyline.WithProgressStore(store),
		storyline.WithNotifier(notifier),
		storyline.WithAssetDir(cfg.Audio.AssetDir),
		storyline.WithAssetRoot(cfg.Audio.AssetRoot),
		storyline.WithTimings(cfg.Timings()),
		storyline.WithMetrics(observability.NewMetrics(rt.Registry)),
		storyline.WithLifecycleHooks(observability.LoggingHooks(logger)),
	}
	if !cfg.Audio.Autoplay {
		opts = append(opts, storyline.WithAutoplayGate(audio.BlockAll))
	}
	if cfg.Store.Lock {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		rt.closers = append(rt.closers, client.Close)
		opts = append(opts, storyline.WithLocker(redis.NewLocker(client, "")))
	}
	opts = append(opts, extra...)

	eng, err := storyline.New(cfg.Missions.Dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = eng
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg config.StoreConfig) (ports.ProgressStore, error) {
	switch cfg.Driver {
	case config.StoreFile:
		return file.New(cfg.Path), nil
	case config.StoreRedis:
		s := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.RedisTTL))
		rt.closers = append(rt.closers, s.Close)
		return s, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		s := postgres.New(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreFirestore:
		s, err := firestore.New(ctx, cfg.FirebaseProject, cfg.FirebaseCredentials)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, s.Close)
		return s, nil
	default:
		return memory.NewStore(), nil
	}
}

func (rt *Runtime) openNotifier(cfg config.NotifierConfig, logger *slog.Logger) (ports.CompletionNotifier, error) {
	if cfg.Driver != config.NotifierAMQP {
		return memory.NewNotifier(logger), nil
	}
	n, err := amqp.Dial(cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, n.Close)
	return n, nil
}

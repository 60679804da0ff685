package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"registro/internal/notify/email"
	"registro/internal/notify/sms"
	"registro/internal/platform/config"
	"registro/internal/platform/database"
	"registro/internal/platform/hostaddr"
	"registro/internal/platform/metrics"
	redisclient "registro/internal/platform/redis"
	"registro/internal/platform/tracing"
	"registro/internal/registration/cache"
	"registro/internal/registration/handler"
	"registro/internal/registration/service"
	"registro/internal/registration/store"
	httptransport "registro/internal/transport/http"
)

// app owns every long-lived resource so Close can release them in reverse
// order of construction.
type app struct {
	Handler http.Handler

	tracing *tracing.Provider
	gateway *database.Gateway
	redis   *redisclient.Client
}

type appOption func(*appOptions)

type appOptions struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

func withRegistry(reg *prometheus.Registry) appOption {
	return func(o *appOptions) {
		o.registerer = reg
		o.gatherer = reg
	}
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...appOption) (*app, error) {
	o := appOptions{registerer: prometheus.DefaultRegisterer, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&o)
	}

	a := &app{}
	var err error
	a.tracing, err = tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	m := metrics.NewWithRegisterer(o.registerer)
	a.gateway = database.New(cfg.Database, log)

	emailSender := email.New(cfg.SMTP, log)
	smsSender := sms.New(cfg.SMS, log)
	warnMissing(log, "database", cfg.Database.Missing())
	warnMissing(log, "email", emailSender.Missing())
	warnMissing(log, "sms", smsSender.Missing())

	if cfg.Cache.Backend == config.CacheBackendRedis {
		a.redis, err = redisclient.New(ctx, cfg.Redis)
		if err != nil {
			a.Close(log)
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}
	listCache, err := cache.New(cfg.Cache, a.redis)
	if err != nil {
		a.Close(log)
		return nil, fmt.Errorf("init list cache: %w", err)
	}

	svc, err := service.New(
		store.NewPostgresProvider(a.gateway),
		emailSender,
		smsSender,
		hostaddr.New(cfg.Server.ServerAddress),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithListCache(listCache),
		service.WithSecretKey(cfg.Server.SecretKey),
		service.WithTracer(tracing.Tracer("registro/registration")),
	)
	if err != nil {
		a.Close(log)
		return nil, err
	}

	a.Handler = httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        m,
		Gatherer:       o.gatherer,
		RequestTimeout: cfg.Server.RequestTimeout,
		Registration:   handler.New(svc, log),
	})
	return a, nil
}

// Close releases resources; errors are logged since nothing can act on them.
func (a *app) Close(log *slog.Logger) {
	ctx := context.Background()
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			log.Warn("database pool close failed", "error", err)
		}
	}
}

func warnMissing(log *slog.Logger, component string, missing []string) {
	if len(missing) == 0 {
		return
	}
	log.Warn(component+" not configured; requests that need it will fail",
		"missing", strings.Join(missing, ", "),
	)
}

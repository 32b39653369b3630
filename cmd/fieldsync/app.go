package main

import (
	"context"
	"log/slog"

	"github.com/c0deZ3R0/fieldsync/config"
	"github.com/c0deZ3R0/fieldsync/connectivity"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/offline"
	"github.com/c0deZ3R0/fieldsync/storage"
	"github.com/c0deZ3R0/fieldsync/storage/backend"
	"github.com/c0deZ3R0/fieldsync/synckit"
	"github.com/c0deZ3R0/fieldsync/transport/httpapi"
)

// app is the wired sync stack for one invocation.
type app struct {
	cfg     config.Config
	logger  *logging.Logger
	level   *logging.DynamicLevelVar
	store   storage.Backend
	repo    *offline.Repository
	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	client  *httpapi.Client
	metrics *synckit.CounterMetrics
	engine  *synckit.Engine
}

func newApp(cfg config.Config, logger *logging.Logger, level *logging.DynamicLevelVar) (*app, error) {
	store, err := backend.Open(backend.Options{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Table:  cfg.Storage.Table,
		Logger: logger.WithComponent(logging.Component("storage")),
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		level:   level,
		store:   store,
		metrics: synckit.NewCounterMetrics(),
	}
	a.repo = offline.New(store,
		offline.WithStorageKey(cfg.Storage.Key),
		offline.WithLogger(logger.WithComponent(logging.Component("offline-store"))),
	)
	a.monitor = connectivity.NewMonitor(connectivity.InterfacesUp(), logger.WithComponent(logging.Component("connectivity")))
	a.prober = connectivity.NewProber(cfg.Server.URL, a.monitor,
		connectivity.WithHealthPath(cfg.Server.HealthPath),
		connectivity.WithDefaultTimeout(cfg.ProbeTimeout()),
		connectivity.WithProberLogger(logger.WithComponent(logging.Component("prober"))),
	)

	limits := httpapi.DefaultLimits
	limits.EnableGzip = cfg.Server.Compression
	if cfg.Server.GzipMinBytes > 0 {
		limits.GzipMinBytes = cfg.Server.GzipMinBytes
	}
	if cfg.Server.MaxResponseBytes > 0 {
		limits.MaxBodyBytes = cfg.Server.MaxResponseBytes
	}
	a.client = httpapi.NewClient(cfg.Server.URL,
		httpapi.WithLimits(limits),
		httpapi.WithTokenSource(httpapi.StaticToken(cfg.Server.Token)),
		httpapi.WithLogger(logger.WithComponent(logging.Component("httpapi"))),
	)

	a.engine, err = synckit.NewEngine(a.repo, a.client, a.prober,
		synckit.WithLogger(logger.WithComponent(logging.Component("sync-engine"))),
		synckit.WithNotifier(synckit.LogNotifier{Logger: logger}),
		synckit.WithMetricsCollector(a.metrics),
		synckit.WithSettleDelay(cfg.SettleDelay()),
		synckit.WithSubmitTimeout(cfg.SubmitTimeout()),
		synckit.WithProbeTimeout(cfg.ProbeTimeout()),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.LogError(context.Background(), err, "failed to close storage",
			slog.String("driver", a.cfg.Storage.Driver))
	}
}

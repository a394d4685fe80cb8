package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jobmatch/internal/application/handler"
	"jobmatch/internal/application/service"
	appstore "jobmatch/internal/application/store"
	"jobmatch/internal/catalog/cache"
	"jobmatch/internal/catalog/httpclient"
	catalogmemory "jobmatch/internal/catalog/memory"
	httpapi "jobmatch/internal/http"
	"jobmatch/internal/platform/config"
	"jobmatch/internal/platform/metrics"
	"jobmatch/internal/platform/postgres"
	platformredis "jobmatch/internal/platform/redis"
	"jobmatch/pkg/platform/audit"
	auditkafka "jobmatch/pkg/platform/audit/kafka"
	"jobmatch/pkg/platform/audit/outbox"
	"jobmatch/pkg/platform/audit/sink/logstore"
	sinkmemory "jobmatch/pkg/platform/audit/sink/memory"
	outboxmemory "jobmatch/pkg/platform/audit/store/memory"
	outboxpostgres "jobmatch/pkg/platform/audit/store/postgres"
)

const (
	auditTopicPartitions  = 6
	auditTopicReplication = 1
)

// logSink is a sink the service can read back for the applicant log.
type logSink interface {
	audit.Sink
	service.LogReader
}

type pendingCounter interface {
	Pending(ctx context.Context, maxAttempts int) (int, error)
}

// app is the assembled process: an HTTP handler plus background workers.
type app struct {
	router  httpapi.Deps
	workers []worker
	closers []func()
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{router: httpapi.Deps{
		Logger:  logger,
		Metrics: metrics.New(),
		Health:  map[string]httpapi.HealthCheck{},
	}}

	var (
		store       service.Store
		jobTx       service.JobTx
		outboxStore interface {
			outbox.Store
			audit.Outbox
			pendingCounter
		}
		logs logSink
	)
	if cfg.InMemory() {
		logger.WarnContext(ctx, "DATABASE_URL not set: running with in-memory storage")
		store = appstore.NewInMemory()
		jobTx = service.NewShardedJobTx(cfg.Server.TxTimeout)
		outboxStore = outboxmemory.NewInMemoryStore(nil)
		logs = sinkmemory.New()
	} else {
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.DefaultOptions())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			a.close()
			return nil, err
		}
		a.router.Health["postgres"] = db.PingContext
		store = appstore.NewPostgres(db)
		jobTx = newJobPostgresTx(db, cfg.Server.TxTimeout)
		outboxStore = outboxpostgres.New(db)
		logs = logstore.New(db)
	}

	var relaySink audit.Sink = logs
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := auditkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		if err := auditkafka.EnsureTopic(ctx, producer.Client(), cfg.Kafka.AuditTopic, auditTopicPartitions, auditTopicReplication); err != nil {
			a.close()
			return nil, err
		}
		consumer, err := auditkafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.ConsumerGroup, logs,
			auditkafka.WithConsumerLogger(logger))
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, consumer.Close)
		a.workers = append(a.workers, worker{name: "audit-consumer", run: consumer.Run})
		a.router.Health["kafka"] = producer.Ping
		relaySink = producer
	}

	relay := outbox.NewRelay(outboxStore, relaySink,
		outbox.WithLogger(logger),
		outbox.WithMetrics(outbox.NewMetrics()),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
	)
	a.workers = append(a.workers, worker{name: "outbox-relay", run: relay.Run})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "jobmatch_outbox_pending",
		Help: "Outbox entries waiting for delivery, excluding parked ones",
	}, func() float64 {
		n, err := outboxStore.Pending(context.Background(), cfg.Outbox.MaxAttempts)
		if err != nil {
			return -1
		}
		return float64(n)
	})

	catalogClient, err := buildCatalog(ctx, cfg, logger, a)
	if err != nil {
		a.close()
		return nil, err
	}

	policy, err := service.ParseOverlapPolicy(cfg.Overlap.SiblingPolicy)
	if err != nil {
		a.close()
		return nil, err
	}
	emitter := audit.NewEmitter(outboxStore,
		audit.WithLogger(logger),
		audit.WithMetrics(audit.NewMetrics()))
	svc := service.New(store, catalogClient, emitter, jobTx,
		service.WithLogger(logger),
		service.WithMetrics(service.NewMetrics()),
		service.WithLogReader(logs),
		service.WithOverlapPolicy(policy),
		service.WithOverlapConcurrency(cfg.Overlap.MaxConcurrency),
	)
	a.router.Routes = []httpapi.Registrar{handler.New(svc, logger)}
	return a, nil
}

func buildCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger, a *app) (service.CatalogClient, error) {
	if cfg.Catalog.URL == "" {
		logger.WarnContext(ctx, "CATALOG_URL not set: using an empty in-memory catalog")
		return catalogmemory.New(), nil
	}
	var client service.CatalogClient = httpclient.New(cfg.Catalog.URL,
		httpclient.WithTimeout(cfg.Catalog.Timeout),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(httpclient.NewMetrics()),
	)

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb == nil {
		return client, nil
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.router.Health["redis"] = rdb.Health
	return cache.New(client, rdb.Client,
		cache.WithTTL(cfg.Catalog.CacheTTL),
		cache.WithLogger(logger),
	), nil
}

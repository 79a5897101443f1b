package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"chimera/internal/access"
	"chimera/internal/creature/handler"
	creaturemetrics "chimera/internal/creature/metrics"
	"chimera/internal/creature/service"
	"chimera/internal/creature/store"
	jwttoken "chimera/internal/jwt_token"
	"chimera/internal/ledger"
	"chimera/internal/ownership"
	"chimera/internal/platform/config"
	"chimera/internal/platform/httpserver"
	"chimera/internal/platform/logger"
	"chimera/internal/platform/metrics"
	"chimera/internal/platform/migrate"
	platformredis "chimera/internal/platform/redis"
	httptransport "chimera/internal/transport/http"
	id "chimera/pkg/domain"
	"chimera/pkg/platform/circuit"
	"chimera/pkg/platform/events"
	"chimera/pkg/platform/events/kafka"
	"chimera/pkg/platform/events/publisher"
	eventstore "chimera/pkg/platform/events/store/memory"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// components holds what run must close on the way out.
type components struct {
	closers []func()
	health  map[string]httptransport.HealthCheck
}

func (c *components) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	comps := &components{health: map[string]httptransport.HealthCheck{}}
	defer comps.close()

	records, tx, err := buildStore(ctx, cfg, comps)
	if err != nil {
		return err
	}
	owners, err := buildOwnership(ctx, cfg, comps)
	if err != nil {
		return err
	}
	book, err := buildLedger(ctx, cfg, comps)
	if err != nil {
		return err
	}
	sink, err := buildEventStore(ctx, cfg, log, comps)
	if err != nil {
		return err
	}

	admins, err := access.ParseAdmins(cfg.Auth.Admins)
	if err != nil {
		return fmt.Errorf("parse admins: %w", err)
	}

	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Events.BufferSize),
		publisher.WithLogger(log),
	)
	comps.onClose(func() {
		if err := pub.Close(); err != nil {
			log.Error("event publisher close failed", "error", err)
		}
	})

	registryMetrics := creaturemetrics.New(reg)
	svc := service.New(records, tx, owners, book,
		service.WithLogger(log),
		service.WithMetrics(registryMetrics),
		service.WithEventPublisher(pub),
		service.WithAccessControl(admins),
		service.WithMetadataCacheTTL(cfg.Registry.MetadataCacheTTL),
	)
	if fee, err := svc.MergeFee(ctx); err == nil {
		registryMetrics.SetMergeFee(uint64(fee))
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Handler:        handler.New(svc, log),
		Validator:      jwttoken.NewJWTServiceAdapter(tokens),
		Access:         admins,
		Latency:        metrics.New(reg),
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   comps.health,
	})

	api := httpserver.New(cfg.Addr, router, log)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsMux, log)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{api, metricsSrv} {
		g.Go(func() error {
			log.Info("listening", "addr", srv.Addr, "store", cfg.Store.Backend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(api.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func buildStore(ctx context.Context, cfg config.Server, comps *components) (service.Store, service.StoreTx, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		db, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		comps.onClose(func() { _ = db.Close() })
		if err := migrate.Up(db, migrate.SQLite); err != nil {
			return nil, nil, err
		}
		comps.health["store"] = db.PingContext
		s := store.NewSQLite(db)
		return s, s, nil
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		comps.onClose(func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := migrate.Up(db, migrate.Postgres); err != nil {
			return nil, nil, err
		}
		comps.health["store"] = db.PingContext
		s := store.NewPostgres(db)
		return s, s, nil
	default:
		s := store.NewInMemory(
			store.WithMergeFee(id.Amount(cfg.Registry.InitialMergeFee)),
			store.WithTxTimeout(cfg.Registry.TxTimeout),
		)
		return s, s, nil
	}
}

func buildOwnership(ctx context.Context, cfg config.Server, comps *components) (service.Ownership, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return ownership.NewInMemory(), nil
	}
	comps.onClose(func() { _ = client.Close() })
	comps.health["ownership"] = client.Health
	return ownership.NewRedis(client.Client, ownership.WithKeyPrefix(cfg.Redis.KeyPrefix)), nil
}

func buildLedger(ctx context.Context, cfg config.Server, comps *components) (service.Ledger, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		db, err := store.OpenSQLite(cfg.Store.SQLiteLedgerPath)
		if err != nil {
			return nil, err
		}
		comps.onClose(func() { _ = db.Close() })
		if err := migrate.Up(db, migrate.SQLiteLedger); err != nil {
			return nil, err
		}
		comps.health["ledger"] = db.PingContext
		return ledger.NewSQLite(db), nil
	case config.StorePostgres:
	default:
		return ledger.NewInMemory(), nil
	}
	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open ledger pool: %w", err)
	}
	comps.onClose(pool.Close)
	comps.health["ledger"] = pool.Ping
	return ledger.NewPostgres(pool), nil
}

func buildEventStore(ctx context.Context, cfg config.Server, log *slog.Logger, comps *components) (events.Store, error) {
	local := eventstore.NewInMemoryStore()
	if len(cfg.Events.KafkaBrokers) == 0 {
		return local, nil
	}
	producer, err := kafka.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic,
		kafka.WithLogger(log),
		kafka.WithBreaker(circuit.New("kafka")),
	)
	if err != nil {
		return nil, err
	}
	comps.onClose(producer.Close)
	if err := producer.EnsureTopic(ctx, cfg.Events.ReplicationFactor); err != nil {
		return nil, err
	}
	comps.health["events"] = producer.Ping
	return events.Tee(local, producer), nil
}

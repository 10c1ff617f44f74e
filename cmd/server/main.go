package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"procureflow/internal/jwttoken"
	"procureflow/internal/platform/config"
	"procureflow/internal/platform/httpserver"
	"procureflow/internal/platform/kafka"
	"procureflow/internal/platform/logger"
	"procureflow/internal/platform/metrics"
	platformredis "procureflow/internal/platform/redis"
	"procureflow/internal/workflow/definition"
	"procureflow/internal/workflow/gates"
	"procureflow/internal/workflow/handler"
	wfmetrics "procureflow/internal/workflow/metrics"
	"procureflow/internal/workflow/roles"
	"procureflow/internal/workflow/service"
	auditstore "procureflow/internal/workflow/store/audit"
	recordstore "procureflow/internal/workflow/store/record"
	"procureflow/internal/workflow/store/schema"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal workflow packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := definition.Default()
	if err != nil {
		log.Error("failed to build transition tables", "error", err)
		os.Exit(1)
	}
	evaluator, err := gates.DefaultEvaluator()
	if err != nil {
		log.Error("failed to build gates", "error", err)
		os.Exit(1)
	}

	engineOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(wfmetrics.New()),
	}

	var records service.RecordStore
	var audit service.AuditStore
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetConnMaxIdleTime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}

		if cfg.Migrate {
			if _, err := db.ExecContext(ctx, schema.DDL); err != nil {
				log.Error("failed to apply schema", "error", err)
				os.Exit(1)
			}
			log.Info("schema applied")
		}

		records = recordstore.NewPostgres(db)
		audit = auditstore.NewPostgres(db)

		var storeTx service.StoreTx = newWorkflowPostgresTx(db)

		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		if redisClient != nil {
			defer redisClient.Close()
			storeTx = newLockingStoreTx(storeTx, platformredis.NewLocker(redisClient, 0))
			log.Info("redis record locking enabled")
		}
		engineOpts = append(engineOpts, service.WithStoreTx(storeTx))
	} else {
		log.Warn("POSTGRES_DSN not set; using in-memory stores")
		records = recordstore.NewMemoryStore()
		audit = auditstore.NewMemoryStore()
	}

	notifier, err := kafka.NewNotifier(cfg.Kafka)
	if err != nil {
		log.Error("failed to create kafka notifier", "error", err)
		os.Exit(1)
	}
	if notifier != nil {
		defer notifier.Close()
		engineOpts = append(engineOpts, service.WithNotifier(notifier))
		log.Info("kafka transition events enabled", "topic", cfg.Kafka.Topic)
	}

	engine := service.NewEngine(registry, roles.NewResolver(), evaluator, records, audit, engineOpts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "procureflow", "procureflow-api")
	httpMetrics := metrics.New()

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	workflowHandler := handler.New(engine, log, httpMetrics, jwttoken.NewJWTServiceAdapter(jwtService))
	workflowHandler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting procureflow", "addr", cfg.Addr)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("procureflow stopped")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/eventrelay/internal/infrastructure/configs"
	"github.com/hilthontt/eventrelay/internal/infrastructure/env"
	"github.com/hilthontt/eventrelay/internal/infrastructure/events"
	"github.com/hilthontt/eventrelay/internal/infrastructure/json"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/messaging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/metrics"
	"github.com/hilthontt/eventrelay/internal/infrastructure/tracing"
	"github.com/hilthontt/eventrelay/internal/persistence/db"
	"github.com/hilthontt/eventrelay/internal/persistence/repository"
	"github.com/joho/godotenv"
)

const serviceName = "event-auditor"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(logging.NewDefaultConfig(serviceName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(tracing.NewDefaultConfig(serviceName))
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	mongoCfg := db.NewMongoDefaultConfig()
	client, err := db.NewMongoClient(ctx, mongoCfg)
	if err != nil {
		logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	repo := repository.NewEventAuditLogRepository(db.GetDatabase(client, mongoCfg))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Fatal(logging.MongoDB, logging.Startup, "failed to create indexes", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	m := metrics.New(serviceName)

	broker := messaging.New(messaging.ConfigFromSettings(serviceName, cfg.RabbitMQ), messaging.WithLogger(logger), messaging.WithMetrics(m))

	connectCtx, cancel := context.WithTimeout(ctx, cfg.RabbitMQ.DialTimeout)
	if err := broker.Connect(connectCtx); err != nil {
		logger.Warn(logging.RabbitMQ, logging.Connection, "broker unavailable at startup, consumers start on reconnect", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	cancel()

	auditor := events.NewAuditConsumer(broker, repo, logger)
	if err := auditor.Listen(ctx); err != nil {
		logger.Warn(logging.RabbitMQ, logging.Consume, "audit subscriptions pending", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	srv := &http.Server{
		Addr:              env.GetString("AUDITOR_HTTP_ADDR", ":9100"),
		Handler:           routes(broker, m),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(logging.General, logging.Startup, "auditor http server failed", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}()

	logger.Info(logging.General, logging.Startup, "auditor started", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := broker.Disconnect(); err != nil {
		logger.Error(logging.RabbitMQ, logging.Shutdown, "broker disconnect failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	if err := db.DisconnectMongo(shutdownCtx, client); err != nil {
		logger.Error(logging.MongoDB, logging.Shutdown, "mongodb disconnect failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	_ = shutdownTracer(shutdownCtx)

	logger.Info(logging.General, logging.Shutdown, "auditor stopped", nil)
}

func routes(broker *messaging.Client, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !broker.Connected() {
			status = http.StatusServiceUnavailable
		}
		json.Write(w, status, map[string]any{
			"connected":     broker.Connected(),
			"subscriptions": len(broker.Subscriptions()),
		})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}

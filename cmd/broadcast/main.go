package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hilthontt/eventrelay/internal/infrastructure/configs"
	"github.com/hilthontt/eventrelay/internal/infrastructure/events"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/messaging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/metrics"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/eventrelay/internal/infrastructure/tracing"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
	"github.com/hilthontt/eventrelay/internal/presentation/api"
	healthHandler "github.com/hilthontt/eventrelay/internal/presentation/handler/health"
	realtimeHandler "github.com/hilthontt/eventrelay/internal/presentation/handler/realtime"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(logging.NewDefaultConfig(cfg.Service.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(tracing.NewDefaultConfig(cfg.Service.Name))
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	m := metrics.New(cfg.Service.Name)
	manager := ws.NewManager(logger, m)

	broker := messaging.New(messaging.ConfigFromSettings(cfg.Service.Name, cfg.RabbitMQ), messaging.WithLogger(logger), messaging.WithMetrics(m))

	// the server keeps serving sockets while the broker is unreachable
	connectCtx, cancel := context.WithTimeout(ctx, cfg.RabbitMQ.DialTimeout)
	if err := broker.Connect(connectCtx); err != nil {
		logger.Warn(logging.RabbitMQ, logging.Connection, "broker unavailable at startup, consumers start on reconnect", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	cancel()

	bridge := events.NewSocketBridge(broker, manager, logger)
	if err := bridge.Listen(ctx); err != nil {
		logger.Warn(logging.RabbitMQ, logging.Consume, "bridge subscriptions pending", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	limiter, err := newRateLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init rate limiter", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	app := api.NewApplication(
		*cfg,
		healthHandler.NewHandler(cfg.Service.Name, broker, manager),
		realtimeHandler.NewHandler(manager, cfg.WebSocket, logger),
		logger,
		m,
		limiter,
	)
	app.ReleaseSocketLimits(manager)

	runErr := app.Run(ctx, app.Mount())

	manager.Close()
	if err := broker.Disconnect(); err != nil {
		logger.Error(logging.RabbitMQ, logging.Shutdown, "broker disconnect failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	_ = limiter.Close()

	tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tracerCancel()
	_ = shutdownTracer(tracerCtx)

	if runErr != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: runErr.Error(),
		})
	}
}

func newRateLimiter(ctx context.Context, cfg *configs.Config, logger logging.Logger) (*ratelimiter.RateLimiter, error) {
	var cache ratelimiter.GetterSetter

	switch cfg.RateLimiter.Backend {
	case "redis":
		store := ratelimiter.NewRedisFromAddr(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := store.Ping(ctx); err != nil {
			logger.Warn(logging.Redis, logging.Connection, "redis unreachable, falling back to in-memory rate limiting", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			_ = store.Close()
			cache = ratelimiter.NewInMemory()
		} else {
			cache = store
		}
	default:
		cache = ratelimiter.NewInMemory()
	}

	return ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            cache,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
}

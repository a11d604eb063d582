package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/eventrelay/internal/infrastructure/configs"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/metrics"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/eventrelay/internal/presentation/handler/health"
	realtimeHandler "github.com/hilthontt/eventrelay/internal/presentation/handler/realtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 5 * time.Second

type Application struct {
	config          configs.Config
	healthHandler   *healthHandler.Handler
	realtimeHandler *realtimeHandler.Handler
	logger          logging.Logger
	metrics         *metrics.Metrics
	ratelimiter     ratelimiter.Limiter
}

// NewApplication wires the broadcast server's HTTP surface. limiter and m may
// be nil.
func NewApplication(
	config configs.Config,
	healthHandler *healthHandler.Handler,
	realtimeHandler *realtimeHandler.Handler,
	logger logging.Logger,
	m *metrics.Metrics,
	limiter ratelimiter.Limiter,
) *Application {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Application{
		config:          config,
		healthHandler:   healthHandler,
		realtimeHandler: realtimeHandler,
		logger:          logger,
		metrics:         m,
		ratelimiter:     limiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)

	r.Get("/health", app.healthHandler.GetHealth)
	r.Get("/healthz", app.healthHandler.GetHealth)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	// sockets are long lived and must not inherit the request timeout
	r.With(app.socketRateLimiterMiddleware).Get("/ws/{userId}", app.realtimeHandler.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(app.rateLimiterMiddleware)

		r.Get("/", app.healthHandler.GetRoot)
		r.Get("/rooms", app.realtimeHandler.GetRooms)
		r.Get("/rooms/{roomId}", app.realtimeHandler.GetRoom)
		r.Get("/connections", app.realtimeHandler.GetConnections)
	})

	return otelhttp.NewHandler(r, app.config.Service.Name,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/ws/") && r.URL.Path != "/metrics"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves mux until ctx is cancelled, then shuts the server down.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "shutting down http server", map[logging.ExtraKey]any{
			logging.HostIp: srv.Addr,
		})

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	return nil
}

package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/eventrelay/internal/infrastructure/json"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
)

func (app *Application) rateLimiterMiddleware(next http.Handler) http.Handler {
	if app.ratelimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := app.ratelimiter.GetSourceKey(r)
		if !app.ratelimiter.Allow(key) {
			app.logger.Warn(logging.General, logging.RateLimiting, "request rate limited", map[logging.ExtraKey]any{
				logging.ClientIp: key,
				logging.Path:     r.URL.Path,
			})
			json.WriteRateLimitError(w, 1)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// socketLimitKey scopes socket upgrades to the user rather than the source
// address, so one user cannot reconnect in a loop from many addresses.
func socketLimitKey(userID string) string {
	return "ws:user:" + userID
}

func (app *Application) socketRateLimiterMiddleware(next http.Handler) http.Handler {
	if app.ratelimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		key := socketLimitKey(userID)
		if !app.ratelimiter.Allow(key) {
			app.logger.Warn(logging.WebSocket, logging.RateLimiting, "socket upgrade rate limited", map[logging.ExtraKey]any{
				logging.UserID:   userID,
				logging.ClientIp: app.ratelimiter.GetSourceKey(r),
			})
			json.WriteRateLimitError(w, 1)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ReleaseSocketLimits releases a user's upgrade bucket once manager drops the
// user's socket.
func (app *Application) ReleaseSocketLimits(manager *ws.Manager) {
	if app.ratelimiter == nil || manager == nil {
		return
	}
	manager.OnDisconnect(func(userID string) {
		app.ratelimiter.Release(socketLimitKey(userID))
	})
}

func (app *Application) enableCors(next http.Handler) http.Handler {
	origins := app.config.HTTP.AllowedOrigins
	headers := strings.Join(app.config.HTTP.AllowedHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(origins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", headers)

		// allow preflight requests from the browser
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request and records its latency by route pattern.
func (app *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		took := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		app.metrics.HTTPRequest(r.Method, route, status, took)
		app.logger.Info(logging.RequestResponse, logging.ExternalService, "http request", map[logging.ExtraKey]any{
			logging.Method:     r.Method,
			logging.Path:       route,
			logging.StatusCode: status,
			logging.BodySize:   ww.BytesWritten(),
			logging.Latency:    took.String(),
			logging.ClientIp:   r.RemoteAddr,
		})
	})
}

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
)

// NewRouter builds the chi router with every route registered. A nil events
// source disables the event stream and a nil gatherer disables /metrics.
func NewRouter(log *slog.Logger, cmds Commands, events EventSource, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, log, cmds, events, gatherer)
	return r
}

// RegisterRoutes installs the middleware stack, the /api/v1 routes and /metrics.
func RegisterRoutes(r chi.Router, log *slog.Logger, cmds Commands, events EventSource, gatherer prometheus.Gatherer) {
	log = logger.Or(log)
	h := New(log, cmds)

	r.Use(
		middleware.RequestID,
		requestLogger(log),
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/status", h.Status)
		r.Get("/usage", h.Usage)

		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.AddAccount)
		r.Put("/accounts/{id}", h.UpdateAccount)
		r.Delete("/accounts/{id}", h.DeleteAccount)

		r.Get("/schedule", h.GetSchedule)
		r.Put("/schedule", h.UpdateSchedule)

		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.UpdatePreferences)

		r.Post("/reset", h.ManualReset)

		r.Get("/logs", h.GetLogs)
		r.Delete("/logs", h.ClearLogs)

		r.Get("/history", h.GetHistory)

		if events != nil {
			r.Get("/events", NewEventStream(log, events).ServeHTTP)
		}
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

// requestLogger logs one line per request through slog, so the API can share
// the log file used in TUI mode.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Debug("http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

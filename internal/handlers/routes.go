package handlers

import (
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"db-schema-sync/internal/middleware"
)

//go:embed web/sync-db.html
var syncPage []byte

type RouterConfig struct {
	AllowedOrigins []string
	AdminToken     string
	RequireAdmin   bool // set in production
	Logger         *slog.Logger
}

// NewRouter mounts every route of the service on a chi router.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		middleware.RequestLogger(logger),
		chimw.Recoverer,
		middleware.CORS(cfg.AllowedOrigins),
	)

	r.Get("/", h.RootHandler)
	r.Get("/health", h.HealthHandler)
	// The page is a static shell; its data calls carry the admin token.
	r.Get("/sync-db", SyncPageHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminOnly(cfg.AdminToken, cfg.RequireAdmin))

		// Paths the first admin page used.
		r.Get("/db-models", h.ListEntitiesHandler)
		r.Post("/sync-db", h.SyncHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/entities", h.ListEntitiesHandler)

			r.Post("/sync", h.SyncHandler)
			r.Get("/sync/order", h.OrderHandler)
			r.Get("/sync/check", h.CheckHandler)
			r.Get("/sync/runs", h.RunsHandler)
			r.Get("/sync/runs/{id}", h.RunHandler)

			r.Route("/schedule", func(r chi.Router) {
				r.Post("/start", h.StartScheduleHandler)
				r.Post("/stop", h.StopScheduleHandler)
				r.Get("/status", h.ScheduleStatusHandler)
				r.Put("/config", h.ScheduleConfigHandler)
				r.Post("/trigger", h.TriggerScheduleHandler)
			})
		})
	})

	return r
}

func SyncPageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(syncPage)
}

package app

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"grantflow/internal/app/observability"
	"grantflow/internal/collection"
	"grantflow/internal/export"
	"grantflow/internal/submission"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	collectionSvc := collection.NewService(db)
	collectionHandler := collection.NewHandler(collectionSvc)

	submissionSvc := submission.NewService(db, collectionSvc)
	submissionHandler := submission.NewHandler(submissionSvc)

	exportSvc := export.NewService(db, collectionSvc, export.ServiceOptions{
		Delimiter:  cfg.ExportDelimiter,
		TrimUnused: cfg.ExportTrimUnused,
		Observer:   collector,
	})
	exportHandler := export.NewHandler(exportSvc)

	exportLimiter := NewIPRateLimiter(cfg.ExportRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/internal/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/grants", collectionHandler.CreateGrant)
		api.Get("/grants/{id}", collectionHandler.GetGrant)
		api.Post("/grants/{id}/collections", collectionHandler.CreateCollection)

		api.Get("/collections/{id}", collectionHandler.GetCollection)
		api.Get("/collections/{id}/schema", collectionHandler.GetSchema)
		api.Post("/collections/{id}/submissions", submissionHandler.Create)
		api.With(RateLimitMiddleware(exportLimiter)).Get("/collections/{id}/export", exportHandler.Download)

		api.Get("/submissions/{id}", submissionHandler.Get)
		api.Put("/submissions/{id}/answers/{questionKey}", submissionHandler.SaveAnswer)
		api.Post("/submissions/{id}/submit", submissionHandler.Submit)
	})

	return r
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/sherpa/internal/infra/http/middleware"
)

type Handlers struct {
	Leads    *LeadHandler
	Examples *ExampleHandler
	Passes   *PassHandler
	Report   *ReportHandler
	Health   *HealthHandler

	AllowedOrigins []string
}

func NewRouter(h Handlers) http.Handler {
	origins := h.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", h.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/leads", func(r chi.Router) {
		r.Post("/", h.Leads.Create)
		r.Get("/", h.Leads.List)
		r.Post("/approve", h.Leads.BulkApprove)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Leads.Get)
			r.Patch("/draft", h.Leads.EditDraft)
			r.Post("/approve", h.Leads.Approve)
			r.Post("/reject", h.Leads.Reject)
			r.Post("/regenerate", h.Leads.Regenerate)
			r.Post("/reactivate", h.Leads.Reactivate)
		})
	})

	r.Get("/passes", h.Passes.List)
	r.Post("/passes/{name}", h.Passes.Run)

	r.Get("/examples", h.Examples.List)
	r.Post("/examples", h.Examples.Create)
	r.Delete("/examples/{id}", h.Examples.Delete)

	r.Get("/report", h.Report.Handle)

	return r
}

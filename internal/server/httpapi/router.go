package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxBodyBytes caps request bodies; sync batches carry base64 attachments.
const MaxBodyBytes = 64 << 20

func NewRouter(log logging.Logger, us UserService, ss SyncService, cs CatalogService, es ExportService) http.Handler {
	h := &handlers{users: us, sync: ss, catalog: cs, exports: es, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger(log))
	r.Use(middleware.RequestSize(MaxBodyBytes))

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(us))

		r.Post("/sync", h.syncSubmissions)
		r.Get("/sync/pending", h.pending)
		r.Get("/submissions", h.listSubmissions)
		r.Get("/forms", h.listForms)
		r.Post("/exports/submissions/{id}", h.exportSubmission)

		r.With(requireAdmin).Put("/forms", h.putForms)
		r.With(requireAdmin).Put("/sites", h.putSites)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondStatus(w, r, http.StatusNotFound, "no such endpoint")
	})

	return r
}

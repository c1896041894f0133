package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Backend resources, proxied
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		r.HandleFunc("/auth/login", h.Proxy)
		r.HandleFunc("/users/me", h.Proxy)

		r.HandleFunc("/notebooks", h.Proxy)
		r.HandleFunc("/notebooks/{notebookID}", h.Proxy)
		r.HandleFunc("/notebooks/{notebookID}/sources", h.Proxy)
		r.Get("/notebooks/{notebookID}/sources/watch", h.WatchSources)
		r.HandleFunc("/notebooks/{notebookID}/sources/{sourceID}", h.Proxy)

		r.HandleFunc("/sources", h.Proxy)
		r.HandleFunc("/sources/{sourceID}", h.Proxy)

		r.HandleFunc("/uploads/files", h.Proxy)
		r.HandleFunc("/uploads/cleanup/{kind}", h.Proxy)
	})

	// Server actions
	r.Route("/actions", func(r chi.Router) {
		r.Post("/auth/login", h.LoginAction)
		r.Post("/auth/register", h.RegisterAction)
		r.Post("/auth/logout", h.LogoutAction)

		r.Group(func(r chi.Router) {
			r.Use(h.SessionMiddleware)

			r.Post("/notebooks", h.CreateNotebookAction)
			r.Patch("/notebooks/{notebookID}", h.UpdateNotebookAction)
			r.Delete("/notebooks/{notebookID}", h.DeleteNotebookAction)
			r.Post("/notebooks/{notebookID}/sources", h.AddSourceToNotebookAction)
			r.Post("/notebooks/{notebookID}/sources/url", h.AddURLSourceAction)
			r.Post("/notebooks/{notebookID}/sources/documents", h.AddDocumentSourcesAction)
			r.Delete("/notebooks/{notebookID}/sources/{sourceID}", h.RemoveSourceFromNotebookAction)

			r.Post("/sources", h.CreateSourceAction)
			r.Patch("/sources/{sourceID}", h.UpdateSourceAction)
			r.Delete("/sources/{sourceID}", h.DeleteSourceAction)
		})
	})

	return r
}

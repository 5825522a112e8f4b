package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	projectH *ProjectHandler,
	credentialH *CredentialHandler,
	backupH *BackupHandler,
	apiToken string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(apiToken))

		// Projects
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectH.Create)
			r.Get("/", projectH.List)
			r.Route("/{project}", func(r chi.Router) {
				r.Get("/", projectH.Get)
				r.Put("/", projectH.Update)
				r.Delete("/", projectH.Delete)
				r.Post("/status", projectH.RefreshStatus)
				r.Post("/start", projectH.Start)
				r.Post("/stop", projectH.Stop)
				r.Get("/logs", projectH.GetLogs)
				r.Post("/message", projectH.SendMessage)
				r.Get("/agent-status", projectH.AgentStatus)
			})
		})

		// Git credentials
		r.Route("/credentials", func(r chi.Router) {
			r.Post("/", credentialH.Create)
			r.Get("/", credentialH.List)
			r.Route("/{credential}", func(r chi.Router) {
				r.Get("/", credentialH.Get)
				r.Delete("/", credentialH.Delete)
			})
		})

		// Topology backups
		r.Route("/backups", func(r chi.Router) {
			r.Post("/", backupH.Create)
			r.Get("/", backupH.List)
			r.Post("/{timestamp}/restore", backupH.Restore)
		})
	})

	return r
}

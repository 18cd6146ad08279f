package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/maxpert/mxbridge/bridge"
	"github.com/maxpert/mxbridge/encoding"
)

// Router builds the chi router for the host API. Paths are relative to
// the /api mount point.
func Router(handlers *Handlers, secret string, compressor *encoding.Zstd) chi.Router {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(withCompressor(compressor))
	r.Use(AuthMiddleware(secret))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", handlers.handleOpenSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.withSession(handlers.handleGetSession))
			r.Delete("/", handlers.handleCloseSession)
			r.Post("/eval", handlers.withSession(handlers.handleEval))
			r.Get("/variables/{name}", handlers.withSession(handlers.handleGetVariable))
			r.Put("/variables/{name}", handlers.withSession(handlers.handlePutVariable))
			r.Delete("/variables", handlers.withSession(handlers.handleRemoveVariables))
			r.Get("/output", handlers.withSession(handlers.handleOutput))
			r.Get("/history", handlers.withSession(handlers.handleHistory))
		})
	})

	return r
}

// RegisterRoutes mounts the host API under /api on mux.
func RegisterRoutes(mux *http.ServeMux, handlers *Handlers, secret string, compressor *encoding.Zstd) {
	r := Router(handlers, secret, compressor)

	mux.Handle("/api", http.RedirectHandler("/api/", http.StatusMovedPermanently))
	mux.Handle("/api/", http.StripPrefix("/api", r))

	log.Info().Bool("auth", secret != "").Bool("zstd", compressor != nil).Msg("Host API enabled at /api/sessions")
}

// withSession resolves the {id} URL parameter to a session.
func (h *Handlers) withSession(fn func(http.ResponseWriter, *http.Request, *bridge.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		fn(w, r, s)
	}
}

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tulisin/apperr"
	"tulisin/handlers"
	appmw "tulisin/middleware"
	"tulisin/respond"
)

func newRouter(h *handlers.Handler, tokens appmw.TokenVerifier, limiter *appmw.RateLimiter, rs respond.Responder, trustProxy bool) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	// RealIP rewrites RemoteAddr, which the auth rate limiter keys on.
	if trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(appmw.Logger)
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.Error(w, r, apperr.NotFound("Route not found"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(appmw.RateLimit(limiter, rs))
				r.Post("/register", h.Register)
				r.Post("/login", h.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(appmw.RequireAuth(tokens, rs))
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(appmw.RequireAuth(tokens, rs))

			r.Get("/sections", h.GetSections)
			r.Post("/sections", h.CreateSection)
			r.Get("/sections/{sectionId}", h.GetSection)
			r.Put("/sections/{sectionId}", h.UpdateSection)
			r.Delete("/sections/{sectionId}", h.DeleteSection)

			r.Get("/notes", h.GetNotes)
			r.Post("/notes", h.CreateNote)
			r.Get("/notes/{noteId}", h.GetNote)
			r.Put("/notes/{noteId}", h.UpdateNote)
			r.Delete("/notes/{noteId}", h.DeleteNote)
		})
	})

	return r
}

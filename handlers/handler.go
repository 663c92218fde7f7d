// Package handlers is the HTTP surface: it decodes and validates requests,
// calls the services and writes JSON back through the responder.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tulisin/apperr"
	"tulisin/db"
	"tulisin/middleware"
	"tulisin/respond"
	"tulisin/services"
)

type Handler struct {
	db       *db.DB
	auth     *services.AuthService
	sections *services.SectionService
	notes    *services.NoteService

	respond  respond.Responder
	validate *validator.Validate
}

func New(d *db.DB, authSvc *services.AuthService, sections *services.SectionService, notes *services.NoteService, rs respond.Responder) *Handler {
	return &Handler{
		db:       d,
		auth:     authSvc,
		sections: sections,
		notes:    notes,
		respond:  rs,
		validate: newValidator(),
	}
}

// userID returns the authenticated caller's id. Routes using it are mounted
// behind RequireAuth, so a missing principal is a wiring bug.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.respond.Error(w, r, apperr.Authentication(""))
		return "", false
	}
	return p.UserID, true
}

// pathID reads a UUID path parameter. A malformed id is answered like a
// missing row so callers cannot tell the two apart.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param, resource string) (string, bool) {
	id, ok := canonicalID(chi.URLParam(r, param))
	if !ok {
		h.respond.Error(w, r, apperr.NotFound("Invalid "+resource+" ID format"))
		return "", false
	}
	return id, true
}

// canonicalID reports whether s is a hyphenated UUID and returns its
// lower-case form.
func canonicalID(s string) (string, bool) {
	if len(s) != 36 {
		return "", false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

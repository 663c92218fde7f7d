package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"tulisin/apperr"
	"tulisin/repository"
	"tulisin/respond"
	"tulisin/services"
)

type createNoteRequest struct {
	SectionID string  `json:"sectionId" validate:"required"`
	Title     *string `json:"title" validate:"omitempty,notblank,max=200"`
	Content   *string `json:"content" validate:"omitempty,notblank"`
}

type updateNoteRequest struct {
	Title     *string `json:"title" validate:"omitempty,notblank,max=200"`
	Content   *string `json:"content" validate:"omitempty,notblank"`
	SectionID *string `json:"sectionId" validate:"omitempty,notblank"`
}

func (h *Handler) GetNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	rawSection := strings.TrimSpace(query.Get("sectionId"))
	if rawSection == "" {
		h.respond.Error(w, r, apperr.BadRequest("Section ID is required", nil))
		return
	}
	sectionID, ok := canonicalID(rawSection)
	if !ok {
		h.respond.Error(w, r, apperr.BadRequest("Invalid Section ID format", nil))
		return
	}

	limit, err := intParam(query.Get("limit"), services.DefaultNotesLimit)
	if err != nil || limit < 1 || limit > services.MaxNotesLimit {
		h.respond.Error(w, r, apperr.BadRequest("Limit must be a number between 1 and 100", nil))
		return
	}
	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.respond.Error(w, r, apperr.BadRequest("Offset must be a non-negative number", nil))
		return
	}

	page, err := h.notes.List(r.Context(), userID, sectionID, limit, offset)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, page)
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "noteId", "Note")
	if !ok {
		return
	}
	note, err := h.notes.Get(r.Context(), id, userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"note": note})
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createNoteRequest
	if err := decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	req.SectionID = strings.TrimSpace(req.SectionID)
	if err := h.check(req); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	note, err := h.notes.Create(r.Context(), userID, services.CreateNoteInput{
		Title:     req.Title,
		Content:   req.Content,
		SectionID: normalizeID(req.SectionID),
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"note": note})
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "noteId", "Note")
	if !ok {
		return
	}

	var req updateNoteRequest
	if err := decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.check(req); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	changes := repository.NoteChanges{Title: req.Title, Content: req.Content}
	if req.SectionID != nil {
		sectionID := normalizeID(strings.TrimSpace(*req.SectionID))
		changes.SectionID = &sectionID
	}

	note, err := h.notes.Update(r.Context(), id, userID, changes)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"note": note})
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "noteId", "Note")
	if !ok {
		return
	}
	if err := h.notes.Delete(r.Context(), id, userID); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.Success(w, "Note deleted successfully")
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// normalizeID lower-cases well-formed UUIDs and leaves anything else alone;
// an unknown id simply matches no section.
func normalizeID(s string) string {
	if id, ok := canonicalID(s); ok {
		return id
	}
	return s
}

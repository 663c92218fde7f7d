package handlers

import (
	"net/http"
	"strings"

	"tulisin/respond"
)

type sectionRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) decodeSection(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req sectionRequest
	if err := decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return "", false
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.check(req); err != nil {
		h.respond.Error(w, r, err)
		return "", false
	}
	return req.Name, true
}

func (h *Handler) GetSections(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	sections, err := h.sections.List(r.Context(), userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "sectionId", "Section")
	if !ok {
		return
	}
	section, err := h.sections.Get(r.Context(), id, userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"section": section})
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	name, ok := h.decodeSection(w, r)
	if !ok {
		return
	}
	section, err := h.sections.Create(r.Context(), userID, name)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"section": section})
}

func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "sectionId", "Section")
	if !ok {
		return
	}
	name, ok := h.decodeSection(w, r)
	if !ok {
		return
	}
	section, err := h.sections.Update(r.Context(), id, userID, name)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"section": section})
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "sectionId", "Section")
	if !ok {
		return
	}
	if err := h.sections.Delete(r.Context(), id, userID); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.Success(w, "Section deleted successfully")
}

package handlers

import (
	"net/http"
	"strings"

	"tulisin/respond"
	"tulisin/services"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = services.NormalizeEmail(req.Email)
	if err := h.check(req); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	res, err := h.auth.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	req.Email = services.NormalizeEmail(req.Email)
	if err := h.check(req); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), services.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// Logout is stateless; the client discards its token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	respond.Success(w, "Logout successful")
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

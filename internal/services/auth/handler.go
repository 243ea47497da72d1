package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/httpx"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterPublicRoutes mounts the endpoints reachable without a token
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// RegisterRoutes mounts the endpoints that need Middleware in front of them
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
	r.Post("/auth/logout", h.Logout)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req, httpx.RequestID(r.Context()))
	if errors.Is(err, ErrInvalidCredentials) {
		httpx.WriteError(w, r, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

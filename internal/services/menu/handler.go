package menu

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/httpx"
	"restaurant-system/internal/logger"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.List)
	r.Get("/menu/category/{category}", h.ListByCategory)
	r.Get("/menu/{id}", h.Get)
	r.Get("/categories", h.Categories)
}

// List handles GET /menu
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// ListByCategory handles GET /menu/category/{category}
func (h *Handler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Get handles GET /menu/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, r, http.StatusNotFound, "Menu item not found")
		return
	}
	if err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

// Categories handles GET /categories
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, categories)
}

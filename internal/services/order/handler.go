package order

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/httpx"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
	"restaurant-system/internal/services/auth"
)

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterPublicRoutes mounts the endpoints reachable without a token
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/tables", h.Tables)
}

// RegisterRoutes mounts the order endpoints; auth.Middleware must run in front of them
func (h *Handler) RegisterRoutes(r chi.Router) {
	staff := []models.Role{models.RoleWaitress, models.RoleKitchen, models.RoleBartender, models.RoleAdministrator}

	r.Route("/orders", func(r chi.Router) {
		r.With(auth.RequireRoles(models.RoleWaitress, models.RoleAdministrator)).Post("/", h.CreateOrder)
		r.With(auth.RequireRoles(staff...)).Get("/", h.ListOrders)
		r.With(auth.RequireRoles(models.RoleKitchen, models.RoleAdministrator)).Get("/kitchen", h.departmentOrders(models.Kitchen))
		r.With(auth.RequireRoles(models.RoleBartender, models.RoleAdministrator)).Get("/bar", h.departmentOrders(models.Bar))
		r.With(auth.RequireRoles(staff...)).Get("/table/{table}", h.ListByTable)
		r.With(auth.RequireRoles(staff...)).Get("/status/{status}", h.ListByStatus)
		r.With(auth.RequireRoles(staff...)).Get("/{id}", h.GetOrder)
		r.With(auth.RequireRoles(staff...)).Get("/{id}/history", h.History)
		r.With(auth.RequireRoles(models.RoleKitchen, models.RoleBartender, models.RoleAdministrator)).Put("/{id}", h.UpdateStatus)
	})
	r.With(auth.RequireRoles(models.RoleAdministrator)).Get("/dashboard/stats", h.Stats)
}

// CreateOrder handles POST /orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httpx.RequestID(r.Context())

	var req models.CreateOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.CreateOrder(ctx, &req, auth.UserFromContext(r.Context()), requestID)
	if err != nil {
		h.logger.Warn("order_creation_failed", "Failed to create order", requestID, map[string]interface{}{
			"table_number": req.TableNumber,
			"error":        err.Error(),
		})
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, order)
}

// ListOrders handles GET /orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	h.writeResult(w, r, orders, err)
}

// GetOrder handles GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, r, order, err)
}

// ListByTable handles GET /orders/table/{table}
func (h *Handler) ListByTable(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil {
		httpx.WriteValidationError(w, r, h.logger, models.ValidationError{Field: "table_number", Message: "table number must be an integer"})
		return
	}
	orders, err := h.service.ListByTable(r.Context(), table)
	h.writeResult(w, r, orders, err)
}

// ListByStatus handles GET /orders/status/{status}
func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListByStatus(r.Context(), chi.URLParam(r, "status"))
	h.writeResult(w, r, orders, err)
}

// departmentOrders handles GET /orders/kitchen and GET /orders/bar
func (h *Handler) departmentOrders(dept models.Department) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := h.service.ListForDepartment(r.Context(), dept)
		h.writeResult(w, r, orders, err)
	}
}

// UpdateStatus handles PUT /orders/{id}
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteValidationError(w, r, h.logger, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status,
		auth.UserFromContext(r.Context()), httpx.RequestID(r.Context()))
	h.writeResult(w, r, order, err)
}

// History handles GET /orders/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, r, history, err)
}

// Stats handles GET /dashboard/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	h.writeResult(w, r, stats, err)
}

// Tables handles GET /tables
func (h *Handler) Tables(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.service.Tables())
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthy := h.service.HealthCheck(r.Context())

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	httpx.WriteJSON(w, code, response)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	var terr *TransitionError
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, v)
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "Order not found")
	case errors.As(err, &terr):
		httpx.WriteError(w, r, http.StatusConflict, terr.Error())
	default:
		httpx.WriteValidationError(w, r, h.logger, err)
	}
}

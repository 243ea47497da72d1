package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
	"restaurant-system/internal/telemetry"
)

var ErrNotFound = errors.New("order not found")

// TransitionError is returned when a status update would move an order backwards
type TransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// Repository persists orders and their status log
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, limit int) ([]models.Order, error)
	ListByTable(ctx context.Context, table int) ([]models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	ListActiveByDepartment(ctx context.Context, dept models.Department) ([]models.Order, error)
	// UpdateStatus applies next when the stored status may transition to it and
	// returns the updated order together with the previous status.
	UpdateStatus(ctx context.Context, id string, next models.OrderStatus, changedBy string) (*models.Order, models.OrderStatus, error)
	History(ctx context.Context, id string) ([]models.OrderStatusHistory, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
	Ping(ctx context.Context) error
}

// MenuLookup resolves menu item ids to current catalog entries
type MenuLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.MenuItem, error)
}

type Options struct {
	MinTable      int
	MaxTable      int
	MaxConcurrent int64
	ListLimit     int
}

type Service struct {
	repo      Repository
	menu      MenuLookup
	publisher messaging.EventPublisher
	metrics   *telemetry.Metrics
	logger    *logger.Logger
	opts      Options
	sem       *semaphore.Weighted
}

func NewService(repo Repository, menu MenuLookup, publisher messaging.EventPublisher,
	metrics *telemetry.Metrics, log *logger.Logger, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 50
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 1000
	}
	return &Service{
		repo:      repo,
		menu:      menu,
		publisher: publisher,
		metrics:   metrics,
		logger:    log,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// CreateOrder validates the request against the menu, stores the order as pending
// and announces it to every department that has items in it.
func (s *Service) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, user *models.User, requestID string) (*models.Order, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire slot: %w", err)
	}
	defer s.sem.Release(1)

	if err := req.Validate(s.opts.MinTable, s.opts.MaxTable); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.MenuItemID)
	}
	catalog, err := s.menu.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up menu items: %w", err)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		entry, ok := catalog[item.MenuItemID]
		if !ok {
			return nil, models.ValidationError{
				Field:   fmt.Sprintf("items[%d].menu_item_id", i),
				Message: fmt.Sprintf("unknown menu item %s", item.MenuItemID),
			}
		}
		if !entry.Available {
			return nil, models.ValidationError{
				Field:   fmt.Sprintf("items[%d].menu_item_id", i),
				Message: fmt.Sprintf("%s is not available", entry.Name),
			}
		}
		// the price captured by the terminal when the line was first added is kept
		items = append(items, models.OrderItem{
			MenuItemID: entry.ID,
			Name:       entry.Name,
			Quantity:   item.Quantity,
			Price:      item.Price,
			ItemType:   entry.ItemType,
			Department: entry.Department,
		})
	}

	customer := req.CustomerName
	if customer == "" {
		customer = fmt.Sprintf("Table %d", req.TableNumber)
	}

	order := &models.Order{
		ID:           uuid.NewString(),
		TableNumber:  req.TableNumber,
		CustomerName: customer,
		Items:        items,
		Status:       models.StatusPending,
		Notes:        req.Notes,
	}
	if user != nil {
		order.CreatedBy = user.FullName
	}
	order.Total = (&models.CreateOrderRequest{Items: items}).CalculateTotal()

	if !req.Total.IsZero() && !req.Total.Equal(order.Total) {
		s.logger.Warn("total_mismatch", "Submitted total differs from computed total", requestID, map[string]interface{}{
			"submitted": req.Total.StringFixed(2),
			"computed":  order.Total.StringFixed(2),
		})
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	s.metrics.RecordOrderCreated(ctx, order)
	s.logger.Info("order_created", "Order created", requestID, map[string]interface{}{
		"order_id":     order.ID,
		"table_number": order.TableNumber,
		"total":        order.Total.StringFixed(2),
		"items":        len(order.Items),
	})

	s.publishDepartments(ctx, order, requestID)
	return order, nil
}

// publishDepartments is best effort: the order is already stored and the boards poll
func (s *Service) publishDepartments(ctx context.Context, order *models.Order, requestID string) {
	for _, dept := range []models.Department{models.Kitchen, models.Bar} {
		if !order.HasDepartment(dept) {
			continue
		}
		if err := s.publisher.PublishOrder(ctx, models.CreateOrderMessage(order, dept)); err != nil {
			s.logger.Error("order_publish_failed", "Failed to publish order", requestID, err, map[string]interface{}{
				"order_id":   order.ID,
				"department": dept,
			})
		}
	}
}

// checkID rejects ids that cannot name a stored order; the id column is a UUID
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves an order forward and notifies subscribers
func (s *Service) UpdateStatus(ctx context.Context, id string, next models.OrderStatus, user *models.User, requestID string) (*models.Order, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if _, err := models.ParseOrderStatus(string(next)); err != nil {
		return nil, err
	}

	changedBy := ""
	if user != nil {
		changedBy = user.FullName
	}

	order, previous, err := s.repo.UpdateStatus(ctx, id, next, changedBy)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStatusUpdate(ctx, previous, next)
	s.logger.Info("order_status_updated", "Order status updated", requestID, map[string]interface{}{
		"order_id":   order.ID,
		"old_status": previous,
		"new_status": next,
		"changed_by": changedBy,
	})

	msg := models.CreateStatusUpdateMessage(order, previous, changedBy)
	if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
		s.logger.Error("status_publish_failed", "Failed to publish status update", requestID, err, map[string]interface{}{
			"order_id": order.ID,
		})
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	return s.repo.List(ctx, s.opts.ListLimit)
}

func (s *Service) ListByTable(ctx context.Context, table int) ([]models.Order, error) {
	if table < s.opts.MinTable || table > s.opts.MaxTable {
		return nil, models.ValidationError{
			Field:   "table_number",
			Message: fmt.Sprintf("table number must be between %d and %d", s.opts.MinTable, s.opts.MaxTable),
		}
	}
	return s.repo.ListByTable(ctx, table)
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]models.Order, error) {
	st, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByStatus(ctx, st)
}

// ListForDepartment returns active orders restricted to the department's items
func (s *Service) ListForDepartment(ctx context.Context, dept models.Department) ([]models.Order, error) {
	orders, err := s.repo.ListActiveByDepartment(ctx, dept)
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].ForDepartment(dept))
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, id string) ([]models.OrderStatusHistory, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (*models.DashboardStats, error) {
	return s.repo.Stats(ctx)
}

// Tables lists the configured table numbers
func (s *Service) Tables() models.TablesResponse {
	tables := make([]int, 0, s.opts.MaxTable-s.opts.MinTable+1)
	for n := s.opts.MinTable; n <= s.opts.MaxTable; n++ {
		tables = append(tables, n)
	}
	return models.TablesResponse{Tables: tables}
}

// HealthCheck reports whether the database answers within a few seconds
func (s *Service) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.repo.Ping(ctx) == nil
}

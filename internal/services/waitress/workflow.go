// Package waitress drives the order composer from a terminal: catalog
// loading, sub-bill editing and submission to the order service.
package waitress

import (
	"context"
	"fmt"
	"sort"

	"restaurant-system/internal/composer"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
	"restaurant-system/internal/telemetry"
)

// API is the part of the order service the waitress view needs
type API interface {
	Menu(ctx context.Context) ([]models.MenuItem, error)
	Categories(ctx context.Context) ([]models.Category, error)
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
}

type Workflow struct {
	api        API
	composer   *composer.Composer
	metrics    *telemetry.Metrics
	logger     *logger.Logger
	items      map[string]models.MenuItem
	menu       []models.MenuItem
	categories []models.Category
}

func NewWorkflow(api API, c *composer.Composer, metrics *telemetry.Metrics, log *logger.Logger) *Workflow {
	return &Workflow{
		api:      api,
		composer: c,
		metrics:  metrics,
		logger:   log,
		items:    map[string]models.MenuItem{},
	}
}

// LoadCatalog fetches menu and categories. Lines already composed keep their price snapshot.
func (w *Workflow) LoadCatalog(ctx context.Context) error {
	menu, err := w.api.Menu(ctx)
	if err != nil {
		return fmt.Errorf("failed to load menu: %w", err)
	}
	categories, err := w.api.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	items := make(map[string]models.MenuItem, len(menu))
	for _, item := range menu {
		items[item.ID] = item
	}
	w.items = items
	w.menu = menu
	w.categories = categories

	w.logger.Debug("catalog_loaded", "Menu loaded", "", map[string]interface{}{
		"items":      len(menu),
		"categories": len(categories),
	})
	return nil
}

func (w *Workflow) Composer() *composer.Composer {
	return w.composer
}

func (w *Workflow) Categories() []models.Category {
	return w.categories
}

// Menu returns available items, optionally restricted to one category, sorted by name
func (w *Workflow) Menu(category string) []models.MenuItem {
	out := make([]models.MenuItem, 0, len(w.menu))
	for _, item := range w.menu {
		if !item.Available {
			continue
		}
		if category != "" && item.Category != category {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddItem adds one unit of the catalog item to the active client
func (w *Workflow) AddItem(menuItemID string) error {
	item, ok := w.items[menuItemID]
	if !ok || !item.Available {
		return models.ValidationError{Field: "menu_item_id", Message: fmt.Sprintf("unknown menu item %s", menuItemID)}
	}
	return w.composer.AddLine(item)
}

// Submit sends the composed order. On success the composition is reset; on any
// failure it is left exactly as it was so the operator can fix it and retry.
func (w *Workflow) Submit(ctx context.Context) (*models.Order, error) {
	requestID := logger.GenerateRequestID()
	clients := len(w.composer.Clients())

	req, err := w.composer.BuildSubmission()
	if err != nil {
		w.metrics.RecordSubmission(ctx, clients, err)
		return nil, err
	}

	order, err := w.api.CreateOrder(ctx, req)
	if err != nil {
		w.metrics.RecordSubmission(ctx, clients, err)
		w.logger.Error("order_submit_failed", "Failed to submit order", requestID, err, map[string]interface{}{
			"table_number": req.TableNumber,
			"items":        len(req.Items),
		})
		return nil, err
	}

	w.composer.Reset()
	w.metrics.RecordSubmission(ctx, clients, nil)
	w.logger.Info("order_submitted", "Order submitted", requestID, map[string]interface{}{
		"order_id":     order.ID,
		"table_number": order.TableNumber,
		"clients":      clients,
		"total":        order.Total.StringFixed(2),
	})
	return order, nil
}

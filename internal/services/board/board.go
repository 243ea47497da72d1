// Package board is the kitchen, bar and administrator order view. It polls
// the order service on an interval and can be nudged to refresh early.
package board

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
	"restaurant-system/internal/telemetry"
)

// API is the part of the order service a board needs
type API interface {
	Orders(ctx context.Context) ([]models.Order, error)
	DepartmentOrders(ctx context.Context, dept models.Department) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

// Board keeps the last successfully fetched order list of one view
type Board struct {
	api      API
	dept     models.Department
	interval time.Duration
	metrics  *telemetry.Metrics
	logger   *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	issued    uint64
	applied   uint64
	orders    []models.Order
	refreshed time.Time
	lastErr   error

	nudge chan struct{}
}

// New creates a board for dept; an empty dept shows every order
func New(api API, dept models.Department, interval time.Duration, metrics *telemetry.Metrics, log *logger.Logger) *Board {
	return &Board{
		api:      api,
		dept:     dept,
		interval: interval,
		metrics:  metrics,
		logger:   log,
		now:      time.Now,
		nudge:    make(chan struct{}, 1),
	}
}

// View names the board in logs and metrics
func (b *Board) View() string {
	if b.dept == "" {
		return "all"
	}
	return string(b.dept)
}

// Refresh fetches the order list. A result is shown only if no later refresh
// has been applied already; on failure the previous list stays in place.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.issued++
	seq := b.issued
	b.mu.Unlock()

	orders, err := b.fetch(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.lastErr = err
		b.metrics.RecordRefreshFailure(ctx, b.View())
		b.logger.Warn("board_refresh_failed", "Failed to refresh orders, keeping previous list", "", map[string]interface{}{
			"view":  b.View(),
			"error": err.Error(),
		})
		return err
	}

	if seq < b.applied {
		b.logger.Debug("board_refresh_superseded", "Discarding stale refresh", "", map[string]interface{}{
			"view":    b.View(),
			"seq":     seq,
			"applied": b.applied,
		})
		return nil
	}

	b.applied = seq
	b.orders = orders
	b.refreshed = b.now()
	b.lastErr = nil
	return nil
}

func (b *Board) fetch(ctx context.Context) ([]models.Order, error) {
	if b.dept == "" {
		return b.api.Orders(ctx)
	}
	return b.api.DepartmentOrders(ctx, b.dept)
}

// Nudge asks Run to refresh before the next tick. It never blocks.
func (b *Board) Nudge() {
	select {
	case b.nudge <- struct{}{}:
	default:
	}
}

// Run refreshes immediately, then on every tick or nudge until ctx is done.
// Refreshes may overlap; a slow one never overwrites a newer result.
func (b *Board) Run(ctx context.Context, onChange func()) error {
	g, ctx := errgroup.WithContext(ctx)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	refresh := func() {
		g.Go(func() error {
			if b.Refresh(ctx) == nil && onChange != nil {
				onChange()
			}
			return nil
		})
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case <-ticker.C:
			refresh()
		case <-b.nudge:
			refresh()
		}
	}
}

// Orders returns a copy of the displayed list
func (b *Board) Orders() []models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Order(nil), b.orders...)
}

// LastError is the error of the most recent failed refresh, cleared by a successful one
func (b *Board) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Advance moves an order to status and refreshes the board
func (b *Board) Advance(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	order, err := b.api.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	b.logger.Info("order_advanced", fmt.Sprintf("Order moved to %s", status), "", map[string]interface{}{
		"order_id": orderID,
		"view":     b.View(),
		"status":   status,
	})
	b.Nudge()
	return order, nil
}

// Resolve maps a 1-based row number or a unique order id prefix to an order id
func (b *Board) Resolve(ref string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(b.orders) {
		return b.orders[n-1].ID, true
	}

	match := ""
	for _, o := range b.orders {
		if strings.HasPrefix(o.ID, ref) {
			if match != "" {
				return "", false
			}
			match = o.ID
		}
	}
	return match, match != ""
}

// Render prints the displayed list as a table
func (b *Board) Render(w io.Writer) error {
	b.mu.Lock()
	orders := append([]models.Order(nil), b.orders...)
	refreshed := b.refreshed
	lastErr := b.lastErr
	now := b.now()
	b.mu.Unlock()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s orders (%d)", strings.ToUpper(b.View()), len(orders))
	if !refreshed.IsZero() {
		fmt.Fprintf(tw, ", updated %s", refreshed.Format("15:04:05"))
	}
	fmt.Fprintln(tw)
	if lastErr != nil {
		fmt.Fprintf(tw, "! last refresh failed: %v\n", lastErr)
	}

	fmt.Fprintln(tw, "#\tORDER\tTABLE\tSTATUS\tAGE\tITEMS")
	for i, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			i+1, shortID(o.ID), o.TableNumber, o.Status, age(now.Sub(o.CreatedAt)), itemSummary(o.Items))
	}
	return tw.Flush()
}

func itemSummary(items []models.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = it.MenuItemID
		}
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, name))
	}
	return strings.Join(parts, ", ")
}

func age(d time.Duration) string {
	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-system/internal/database"
	"restaurant-system/internal/models"
)

// PostgresRepository stores orders in PostgreSQL. Money columns are cents.
type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the order, its items and the initial status log entry in one transaction
func (r *PostgresRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, database.InsertOrderSQL,
			order.ID, order.TableNumber, order.CustomerName, database.ToCents(order.Total),
			order.Status, order.Notes, order.CreatedBy,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(database.InsertOrderItemSQL,
				order.ID, i, item.MenuItemID, item.Name, item.Quantity,
				database.ToCents(item.Price), item.ItemType, item.Department)
		}
		batch.Queue(database.InsertOrderStatusLogSQL, order.ID, order.Status, order.CreatedBy, "order placed")

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, database.GetOrderByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	orders := []models.Order{*order}
	if err := r.loadItems(ctx, r.db, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.Order, error) {
	return r.queryOrders(ctx, database.ListOrdersSQL, limit)
}

func (r *PostgresRepository) ListByTable(ctx context.Context, table int) ([]models.Order, error) {
	return r.queryOrders(ctx, database.ListOrdersByTableSQL, table)
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return r.queryOrders(ctx, database.ListOrdersByStatusSQL, status)
}

func (r *PostgresRepository) ListActiveByDepartment(ctx context.Context, dept models.Department) ([]models.Order, error) {
	return r.queryOrders(ctx, database.ListActiveOrdersByDepartmentSQL, dept)
}

// UpdateStatus locks the row so concurrent updates see each other's result
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, next models.OrderStatus, changedBy string) (*models.Order, models.OrderStatus, error) {
	var (
		order    *models.Order
		previous models.OrderStatus
	)

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := scanOrder(tx.QueryRow(ctx, database.GetOrderByIDForUpdateSQL, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		previous = current.Status
		if !previous.CanTransitionTo(next) {
			return &TransitionError{From: previous, To: next}
		}

		if err := tx.QueryRow(ctx, database.UpdateOrderStatusSQL, next, id).Scan(&current.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if _, err := tx.Exec(ctx, database.InsertOrderStatusLogSQL, id, next, changedBy, nil); err != nil {
			return fmt.Errorf("failed to log status: %w", err)
		}
		current.Status = next

		orders := []models.Order{*current}
		if err := r.loadItems(ctx, tx, orders); err != nil {
			return err
		}
		order = &orders[0]
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return order, previous, nil
}

func (r *PostgresRepository) History(ctx context.Context, id string) ([]models.OrderStatusHistory, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, database.GetOrderStatusHistorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	history := []models.OrderStatusHistory{}
	for rows.Next() {
		var entry models.OrderStatusHistory
		if err := rows.Scan(&entry.Status, &entry.ChangedBy, &entry.ChangedAt, &entry.Notes); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (r *PostgresRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var s models.DashboardStats
	err := r.db.QueryRow(ctx, database.DashboardStatsSQL).Scan(
		&s.TotalOrders, &s.PendingOrders, &s.PreparingOrders, &s.ReadyOrders)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("database error: %w", err)
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := r.loadItems(ctx, r.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items of every order with a single query
func (r *PostgresRepository) loadItems(ctx context.Context, q querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
		orders[i].Items = []models.OrderItem{}
	}

	rows, err := q.Query(ctx, database.GetOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    models.OrderItem
			cents   int64
		)
		err := rows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.Quantity, &cents, &item.ItemType, &item.Department)
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		item.Price = database.FromCents(cents)
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o     models.Order
		cents int64
	)
	err := row.Scan(&o.ID, &o.TableNumber, &o.CustomerName, &cents, &o.Status,
		&o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Total = database.FromCents(cents)
	return &o, nil
}

package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-system/internal/database"
	"restaurant-system/internal/models"
)

// Repository reads the menu and its categories
type Repository interface {
	ListAvailable(ctx context.Context) ([]models.MenuItem, error)
	ListByCategory(ctx context.Context, category string) ([]models.MenuItem, error)
	Get(ctx context.Context, id string) (*models.MenuItem, error)
	GetMany(ctx context.Context, ids []string) ([]models.MenuItem, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListAvailable(ctx context.Context) ([]models.MenuItem, error) {
	return r.queryItems(ctx, database.ListAvailableMenuItemsSQL)
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, category string) ([]models.MenuItem, error) {
	return r.queryItems(ctx, database.ListMenuItemsByCategorySQL, category)
}

func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) ([]models.MenuItem, error) {
	return r.queryItems(ctx, database.GetMenuItemsByIDsSQL, ids)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	item, err := scanItem(r.db.QueryRow(ctx, database.GetMenuItemSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.Query(ctx, database.ListCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.DisplayName, &c.Emoji, &c.Department); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *PostgresRepository) queryItems(ctx context.Context, sql string, args ...interface{}) ([]models.MenuItem, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (models.MenuItem, error) {
	var (
		item  models.MenuItem
		cents int64
	)
	err := row.Scan(&item.ID, &item.Name, &item.Description, &cents, &item.Category,
		&item.ItemType, &item.Department, &item.Available)
	item.Price = database.FromCents(cents)
	return item, err
}

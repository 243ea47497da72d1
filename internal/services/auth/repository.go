package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-system/internal/database"
	"restaurant-system/internal/models"
)

var errNotFound = errors.New("not found")

// Repository stores users and their session tokens
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) (bool, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	UserBySession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateUser inserts user unless the username is taken; it reports whether a row was written
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) (bool, error) {
	tag, err := r.db.Exec(ctx, database.InsertUserSQL,
		user.ID, user.Username, user.FullName, user.Role, user.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, database.GetUserByUsernameSQL, username))
}

func (r *PostgresRepository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	if _, err := r.db.Exec(ctx, database.InsertSessionSQL, token, userID, expiresAt); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UserBySession(ctx context.Context, token string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, database.GetUserBySessionSQL, token))
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.Exec(ctx, database.DeleteSessionSQL, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, database.DeleteExpiredSessionsSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &u, nil
}

// Package auth signs staff in with a username and password and resolves the
// opaque bearer tokens issued at login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"restaurant-system/internal/config"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("invalid or expired token")
)

// compared against when the username is unknown so both paths cost one bcrypt check
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("restaurant-system"), bcrypt.DefaultCost)

type Service struct {
	repo   Repository
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{repo: repo, ttl: ttl, logger: log, now: time.Now}
}

// Login checks the password and issues a token valid for the configured TTL
func (s *Service) Login(ctx context.Context, req models.LoginRequest, requestID string) (*models.LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, models.ValidationError{Message: "username and password are required"}
	}

	user, err := s.repo.UserByUsername(ctx, req.Username)
	if errors.Is(err, errNotFound) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		s.logger.Warn("login_failed", "Unknown username", requestID, map[string]interface{}{"username": req.Username})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login_failed", "Wrong password", requestID, map[string]interface{}{"username": req.Username})
		return nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	expiresAt := s.now().Add(s.ttl).UTC()
	if err := s.repo.CreateSession(ctx, token, user.ID, expiresAt); err != nil {
		return nil, err
	}

	s.logger.Info("login_succeeded", "User signed in", requestID, map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})

	return &models.LoginResponse{
		AccessToken: token,
		UserID:      user.ID,
		Role:        user.Role,
		FullName:    user.FullName,
		ExpiresAt:   expiresAt,
	}, nil
}

// Authenticate resolves a bearer token to its user
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.repo.UserBySession(ctx, token)
	if errors.Is(err, errNotFound) {
		return nil, ErrUnauthorized
	}
	return user, err
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// EnsureUsers creates the configured accounts that do not exist yet
func (s *Service) EnsureUsers(ctx context.Context, users []config.DemoUser) error {
	for _, du := range users {
		role, err := models.ParseRole(du.Role)
		if err != nil {
			return fmt.Errorf("user %s: %w", du.Username, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(du.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", du.Username, err)
		}

		created, err := s.repo.CreateUser(ctx, &models.User{
			ID:           uuid.NewString(),
			Username:     du.Username,
			FullName:     du.FullName,
			Role:         role,
			PasswordHash: string(hash),
		})
		if err != nil {
			return err
		}
		if created {
			s.logger.Info("user_created", fmt.Sprintf("Created user %s", du.Username), "startup",
				map[string]interface{}{"role": role})
		}
	}
	return nil
}

// PurgeExpired removes expired sessions every interval until ctx is done
func (s *Service) PurgeExpired(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.repo.DeleteExpiredSessions(ctx)
			if err != nil {
				s.logger.Error("session_purge_failed", "Failed to purge sessions", "", err, nil)
				continue
			}
			if n > 0 {
				s.logger.Debug("sessions_purged", "Removed expired sessions", "", map[string]interface{}{"count": n})
			}
		}
	}
}

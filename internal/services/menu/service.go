// Package menu serves the catalog the waitress terminal orders from.
package menu

import (
	"context"
	"errors"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

var ErrNotFound = errors.New("menu item not found")

type Service struct {
	repo   Repository
	logger *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

func (s *Service) List(ctx context.Context) ([]models.MenuItem, error) {
	return s.repo.ListAvailable(ctx)
}

func (s *Service) ListByCategory(ctx context.Context, category string) ([]models.MenuItem, error) {
	return s.repo.ListByCategory(ctx, category)
}

func (s *Service) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return s.repo.Categories(ctx)
}

// Lookup returns the requested items keyed by id; unknown ids are absent from the map
func (s *Service) Lookup(ctx context.Context, ids []string) (map[string]models.MenuItem, error) {
	items, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		if item.Department == "" {
			item.Department = models.DepartmentFor(item.ItemType)
		}
		out[item.ID] = item
	}
	return out, nil
}

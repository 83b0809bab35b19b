package accommodation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cabanas/internal/domain"
	"cabanas/internal/pkg/validator"
)

var (
	ErrNotFound   = errors.New("accommodation not found")
	ErrValidation = errors.New("validation error")
)

type Repository interface {
	Create(ctx context.Context, a *domain.Accommodation) error
	GetByID(ctx context.Context, id int64) (*domain.Accommodation, error)
	ListActive(ctx context.Context) ([]domain.Accommodation, error)
	Update(ctx context.Context, a *domain.Accommodation) error
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, a *domain.Accommodation) error {
	if fields := validator.Validate(a); fields != nil {
		return fmt.Errorf("%w: %v", ErrValidation, fields)
	}
	if a.WeekendMultiplier == 0 {
		a.WeekendMultiplier = 1.2
	}
	a.Active = true
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Accommodation, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Accommodation, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, upd *domain.Accommodation) (*domain.Accommodation, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Name = upd.Name
	a.Type = upd.Type
	a.Capacity = upd.Capacity
	a.BasePrice = upd.BasePrice
	a.WeekendMultiplier = upd.WeekendMultiplier
	a.Description = upd.Description
	if fields := validator.Validate(a); fields != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, fields)
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	ok, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

package admin

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cabanas/internal/domain"
	"cabanas/internal/pkg/jwt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	Create(ctx context.Context, u *domain.AdminUser) error
}

type Service struct {
	users UserRepo
	jwt   *jwt.Service
}

func NewService(users UserRepo, jwtService *jwt.Service) *Service {
	return &Service{users: users, jwt: jwtService}
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("load admin user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.jwt.GenerateToken(u.ID, "admin")
}

// Register creates an operator account. Only exposed through the seed command,
// not over HTTP.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.AdminUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.AdminUser{Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

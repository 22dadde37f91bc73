package users

import (
	"context"
	"errors"
	"strings"

	"github.com/lokmanguedri/motivex/internal/validation"
)

type Store interface {
	Create(ctx context.Context, u User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

type Service struct {
	Store Store
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return User{}, validation.Errors{{Field: "phone", Rule: "phone_dz"}}
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	return s.Store.Create(ctx, User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Phone:        phone,
		Role:         RoleUser,
	})
}

// Login returns ErrInvalidCredentials for an unknown email as well as a bad
// password.
func (s *Service) Login(ctx context.Context, in LoginInput) (User, error) {
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}
	u, err := s.Store.GetByEmail(ctx, in.Email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := CheckPassword(u.PasswordHash, in.Password); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) Me(ctx context.Context, id string) (User, error) {
	return s.Store.GetByID(ctx, id)
}

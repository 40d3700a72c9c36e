package ports

import (
	"context"

	"github.com/petclinic/auth-service/internal/core/domain"
)

// UserRepository is the credential store. Lookups that miss return
// domain.ErrUserNotFound; unique-key conflicts return domain.ErrUserExists.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRoles(ctx context.Context, id string, roles []string) (*domain.User, error)
	SetVerified(ctx context.Context, id string) (*domain.User, error)
	SetDisabled(ctx context.Context, id string, disabled bool) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

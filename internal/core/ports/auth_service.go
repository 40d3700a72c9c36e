package ports

import (
	"context"

	"github.com/petclinic/auth-service/internal/core/domain"
)

// LoginResult is what a successful login hands back to the transport layer.
type LoginResult struct {
	Token  string
	Claims domain.Claims
	User   *domain.User // sanitized
}

// TokenValidator checks a signed token for the given purpose.
type TokenValidator interface {
	Validate(token string, purpose domain.TokenPurpose) (domain.Claims, error)
}

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, identifier, password string) (LoginResult, error)
	Logout(ctx context.Context, principal domain.Principal) error
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	Introspect(ctx context.Context, token string) (domain.Claims, error)
}

type PasswordResetService interface {
	Initiate(ctx context.Context, email, returnURL string) error
	Consume(ctx context.Context, token, newPassword string) error
}

// UserService covers account administration.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error)
	UpdateRoles(ctx context.Context, actorID, userID string, roles []string) (*domain.User, error)
	SetDisabled(ctx context.Context, id string, disabled bool) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

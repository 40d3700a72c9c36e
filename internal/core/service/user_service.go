package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

// UserService implements account administration.
type UserService struct {
	users ports.UserRepository
	roles *domain.RoleHierarchy
	log   zerolog.Logger
}

func NewUserService(users ports.UserRepository, roles *domain.RoleHierarchy, log zerolog.Logger) *UserService {
	return &UserService{users: users, roles: roles, log: log}
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Sanitized(), nil
}

func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// UpdateRoles replaces the roles of userID. An actor may never change their
// own roles, and every role must be defined in the hierarchy.
func (s *UserService) UpdateRoles(ctx context.Context, actorID, userID string, roles []string) (*domain.User, error) {
	if actorID == userID {
		return nil, domain.ErrSelfRoleChange
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", domain.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(roles))
	unique := make([]string, 0, len(roles))
	for _, r := range roles {
		if !s.roles.Known(r) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoleNotFound, r)
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		unique = append(unique, r)
	}

	u, err := s.users.UpdateRoles(ctx, userID, unique)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", actorID).Str("user_id", userID).Strs("roles", unique).Msg("roles updated")
	return u.Sanitized(), nil
}

func (s *UserService) SetDisabled(ctx context.Context, id string, disabled bool) (*domain.User, error) {
	u, err := s.users.SetDisabled(ctx, id, disabled)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", id).Bool("disabled", disabled).Msg("account status changed")
	return u.Sanitized(), nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

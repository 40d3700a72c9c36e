package domain

import (
	"errors"
	"fmt"
)

// Token validation.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
)

// Login and account lifecycle.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("account not verified")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidInput       = errors.New("invalid input")
)

// ErrAccountDisabled is reported to callers exactly like a bad password.
var ErrAccountDisabled = fmt.Errorf("%w: account disabled", ErrInvalidCredentials)

// Password reset.
var (
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenExpired  = errors.New("reset token expired")
	ErrReturnURLRejected  = errors.New("return url not allowed")
)

// Authorization and roles.
var (
	ErrForbidden      = errors.New("access forbidden")
	ErrRoleNotFound   = errors.New("role not found")
	ErrRoleCycle      = errors.New("role hierarchy cycle")
	ErrSelfRoleChange = errors.New("users cannot change their own roles")
)

// IsTokenError reports whether err is one of the token validation failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked)
}

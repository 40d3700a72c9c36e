package ports

import (
	"context"
	"time"

	"github.com/petclinic/auth-service/internal/core/domain"
)

// ResetTokenStore persists password-reset tokens keyed by their hash.
type ResetTokenStore interface {
	// Save stores token and drops any earlier token for the same user.
	Save(ctx context.Context, token domain.ResetToken) error
	// Take atomically deletes and returns the token. Of two concurrent
	// callers only one gets the record; the other gets ErrResetTokenNotFound.
	Take(ctx context.Context, tokenHash string) (domain.ResetToken, error)
	// PurgeExpired removes tokens whose expiry is before now and returns how
	// many were dropped.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// RevocationList records session tokens that were ended before their expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

const defaultResetTTL = 30 * time.Minute

// ResetService manages single-use password-reset tokens.
type ResetService struct {
	users          ports.UserRepository
	store          ports.ResetTokenStore
	hasher         *PasswordHasher
	mail           ports.MailPublisher
	ttl            time.Duration
	allowedOrigins []string
	now            func() time.Time
	log            zerolog.Logger
}

// NewResetService returns a ResetService. An empty allowedOrigins accepts any
// return URL.
func NewResetService(
	users ports.UserRepository,
	store ports.ResetTokenStore,
	hasher *PasswordHasher,
	mail ports.MailPublisher,
	ttl time.Duration,
	allowedOrigins []string,
	log zerolog.Logger,
) *ResetService {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &ResetService{
		users:          users,
		store:          store,
		hasher:         hasher,
		mail:           mail,
		ttl:            ttl,
		allowedOrigins: allowedOrigins,
		now:            time.Now,
		log:            log,
	}
}

// Initiate starts a reset for email. It returns nil for unknown addresses so
// callers cannot probe which accounts exist.
func (s *ResetService) Initiate(ctx context.Context, email, returnURL string) error {
	if !s.returnURLAllowed(returnURL) {
		return domain.ErrReturnURLRejected
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("initiate reset: %w", err)
	}

	token := uuid.NewString()
	record := domain.ResetToken{
		UserID:    user.ID,
		TokenHash: HashResetToken(token),
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.store.Save(ctx, record); err != nil {
		return fmt.Errorf("initiate reset: %w", err)
	}

	mail := domain.Mail{
		To:      user.Email,
		Subject: "Reset your PetClinic password",
		Body:    resetBody(user.Username, returnURL+token, s.ttl),
		HTML:    true,
	}
	if err := s.mail.Publish(ctx, mail); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("publish reset mail")
	}
	return nil
}

// Consume redeems token and sets newPassword. The store's atomic take decides
// the winner when the same token is redeemed concurrently.
func (s *ResetService) Consume(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrResetTokenNotFound
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", domain.ErrInvalidInput)
	}
	// Checked before Take so an unhashable password leaves the token usable.
	if err := s.hasher.CheckLength(newPassword); err != nil {
		return err
	}

	record, err := s.store.Take(ctx, HashResetToken(token))
	if err != nil {
		return err
	}
	if record.Expired(s.now()) {
		return domain.ErrResetTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, record.UserID, hash); err != nil {
		return fmt.Errorf("consume reset: %w", err)
	}

	s.log.Info().Str("user_id", record.UserID).Msg("password reset completed")
	return nil
}

// PurgeExpired drops stale tokens.
func (s *ResetService) PurgeExpired(ctx context.Context) (int, error) {
	return s.store.PurgeExpired(ctx, s.now())
}

// RunSweeper calls PurgeExpired every interval until ctx is cancelled.
func (s *ResetService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("reset token sweep failed")
				continue
			}
			if n > 0 {
				s.log.Debug().Int("purged", n).Msg("expired reset tokens purged")
			}
		}
	}
}

func (s *ResetService) returnURLAllowed(returnURL string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	target, err := url.Parse(returnURL)
	if err != nil || target.User != nil || target.Host == "" {
		return false
	}
	for _, origin := range s.allowedOrigins {
		allowed, err := url.Parse(origin)
		if err != nil || allowed.Host == "" {
			continue
		}
		if !strings.EqualFold(target.Scheme, allowed.Scheme) || !strings.EqualFold(target.Host, allowed.Host) {
			continue
		}
		prefix := strings.TrimSuffix(allowed.Path, "/")
		if prefix == "" || target.Path == prefix || strings.HasPrefix(target.Path, prefix+"/") {
			return true
		}
	}
	return false
}

// HashResetToken is the storage key for an opaque reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func resetBody(username, link string, ttl time.Duration) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your password. The link below is valid for %d minutes.</p>
<p><a href="%s">Reset my password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`,
		html.EscapeString(username), int(ttl.Minutes()), html.EscapeString(link))
}

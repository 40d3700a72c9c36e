package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

// AuthService implements registration, login, email verification and token
// introspection.
type AuthService struct {
	users           ports.UserRepository
	hasher          *PasswordHasher
	tokens          *TokenManager
	mail            ports.MailPublisher
	revocations     ports.RevocationList // nil when revocation is disabled
	verificationURL string
	dummyHash       string
	log             zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenManager,
	mail ports.MailPublisher,
	revocations ports.RevocationList,
	verificationURL string,
	log zerolog.Logger,
) *AuthService {
	// Compared against on unknown users so a miss costs as much as a bad password.
	dummy, _ := hasher.Hash(uuid.NewString())
	return &AuthService{
		users:           users,
		hasher:          hasher,
		tokens:          tokens,
		mail:            mail,
		revocations:     revocations,
		verificationURL: verificationURL,
		dummyHash:       dummy,
		log:             log,
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrInvalidInput)
	}
	if err := s.hasher.CheckLength(password); err != nil {
		return nil, err
	}

	for _, lookup := range []func() (*domain.User, error){
		func() (*domain.User, error) { return s.users.FindByEmail(ctx, email) },
		func() (*domain.User, error) { return s.users.FindByUsername(ctx, username) },
	} {
		_, err := lookup()
		if err == nil {
			return nil, domain.ErrUserExists
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.DefaultRole},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, created)
	return created.Sanitized(), nil
}

// Login checks credentials and issues a session token. Unknown accounts,
// disabled accounts and wrong passwords all surface as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (ports.LoginResult, error) {
	user, err := s.lookup(ctx, identifier)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		return ports.LoginResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("login: %w", err)
	}

	if user.Disabled {
		s.hasher.Verify(password, s.dummyHash)
		return ports.LoginResult{}, domain.ErrAccountDisabled
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return ports.LoginResult{}, domain.ErrInvalidCredentials
	}
	if !user.Verified {
		s.sendVerification(ctx, user)
		return ports.LoginResult{}, domain.ErrUnverified
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return ports.LoginResult{}, err
	}
	return ports.LoginResult{Token: token, Claims: claims, User: user.Sanitized()}, nil
}

// Logout ends the principal's session early when revocation is enabled.
// Without a revocation list the token simply lives out its TTL.
func (s *AuthService) Logout(ctx context.Context, p domain.Principal) error {
	if s.revocations == nil || p.TokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// VerifyEmail accepts the base64 form of a verification token and marks its
// user verified.
func (s *AuthService) VerifyEmail(ctx context.Context, encoded string) (*domain.User, error) {
	raw, err := DecodeVerificationToken(encoded)
	if err != nil {
		return nil, domain.ErrTokenMalformed
	}

	claims, err := s.tokens.Validate(raw, domain.PurposeVerification)
	if err != nil {
		return nil, err
	}

	user, err := s.users.SetVerified(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("email verified")
	return user.Sanitized(), nil
}

// Introspect validates a session token on behalf of another service.
func (s *AuthService) Introspect(ctx context.Context, token string) (domain.Claims, error) {
	claims, err := s.tokens.Validate(token, domain.PurposeSession)
	if err != nil {
		return domain.Claims{}, err
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return domain.Claims{}, fmt.Errorf("introspect: %w", err)
		}
		if revoked {
			return domain.Claims{}, domain.ErrTokenRevoked
		}
	}
	return claims, nil
}

// EnsureAdmin creates a verified ADMIN account when no account uses email
// yet. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if username == "" || email == "" || password == "" {
		return false, fmt.Errorf("%w: admin username, email and password are required", domain.ErrInvalidInput)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if !existing.HasRole(domain.RoleAdmin) {
			s.log.Warn().Str("user_id", existing.ID).Msg("bootstrap admin email belongs to a non-admin account")
		}
		return false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return false, fmt.Errorf("ensure admin: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	_, err = s.users.Create(ctx, &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleAdmin},
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, domain.ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	s.log.Info().Str("username", username).Msg("bootstrap admin account created")
	return true, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.ErrUserNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.users.FindByEmail(ctx, normalizeEmail(identifier))
	}
	return s.users.FindByUsername(ctx, identifier)
}

// sendVerification is best effort: a lost mail is recovered by logging in
// again, which re-sends it.
func (s *AuthService) sendVerification(ctx context.Context, user *domain.User) {
	token, err := s.tokens.IssueVerification(user)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("issue verification token")
		return
	}

	mail := domain.Mail{
		To:      user.Email,
		Subject: "Verify your PetClinic account",
		Body:    verificationBody(user.Username, s.verificationURL+EncodeVerificationToken(token)),
		HTML:    true,
	}
	if err := s.mail.Publish(ctx, mail); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("publish verification mail")
	}
}

// EncodeVerificationToken makes a token safe to embed in a URL path segment.
func EncodeVerificationToken(token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(token))
}

// DecodeVerificationToken reverses EncodeVerificationToken. Standard-alphabet
// and padded input are accepted as well.
func DecodeVerificationToken(encoded string) (string, error) {
	encoded = strings.TrimRight(strings.TrimSpace(encoded), "=")
	if encoded == "" {
		return "", errors.New("empty verification token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("decode verification token: %w", err)
		}
	}
	return string(raw), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func verificationBody(username, link string) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Please confirm your email address to activate your PetClinic account.</p>
<p><a href="%s">Verify my account</a></p>`, html.EscapeString(username), html.EscapeString(link))
}

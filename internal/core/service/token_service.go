package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/petclinic/auth-service/internal/core/domain"
)

// TokenConfig is the immutable signing configuration. It is built once at
// startup and shared read-only.
type TokenConfig struct {
	Secret          []byte
	Issuer          string
	SessionTTL      time.Duration
	VerificationTTL time.Duration
}

// tokenClaims is the wire form of a signed token.
type tokenClaims struct {
	UserID  string              `json:"id"`
	Roles   []string            `json:"roles"`
	Purpose domain.TokenPurpose `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens. Both operations are pure
// CPU work and safe for concurrent use.
type TokenManager struct {
	cfg    TokenConfig
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager builds a TokenManager. now may be nil, in which case the
// wall clock is used.
func NewTokenManager(cfg TokenConfig, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	m := &TokenManager{cfg: cfg, now: now}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

// SessionTTL is the lifetime of session tokens, used for the cookie max-age.
func (m *TokenManager) SessionTTL() time.Duration {
	return m.cfg.SessionTTL
}

// Issue signs a session token for user.
func (m *TokenManager) Issue(user *domain.User) (string, domain.Claims, error) {
	return m.issue(user, domain.PurposeSession, m.cfg.SessionTTL)
}

// IssueVerification signs an email-verification token for user.
func (m *TokenManager) IssueVerification(user *domain.User) (string, error) {
	token, _, err := m.issue(user, domain.PurposeVerification, m.cfg.VerificationTTL)
	return token, err
}

func (m *TokenManager) issue(user *domain.User, purpose domain.TokenPurpose, ttl time.Duration) (string, domain.Claims, error) {
	if user == nil || user.ID == "" {
		return "", domain.Claims{}, errors.New("issue token: user id required")
	}

	now := m.now().UTC().Truncate(time.Second)
	claims := tokenClaims{
		UserID:  user.ID,
		Roles:   append([]string{}, user.Roles...),
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Email,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", domain.Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.toDomain(), nil
}

// Validate checks structure, then signature, then expiry, and finally that
// the token was minted for purpose.
func (m *TokenManager) Validate(token string, purpose domain.TokenPurpose) (domain.Claims, error) {
	var claims tokenClaims
	_, err := m.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	})
	if err != nil {
		return domain.Claims{}, classifyTokenError(err)
	}
	if claims.Purpose != purpose || claims.UserID == "" {
		return domain.Claims{}, domain.ErrTokenMalformed
	}
	return claims.toDomain(), nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return domain.ErrTokenMalformed
	}
}

func (c tokenClaims) toDomain() domain.Claims {
	out := domain.Claims{
		TokenID: c.ID,
		Subject: c.Subject,
		UserID:  c.UserID,
		Roles:   append([]string{}, c.Roles...),
		Purpose: c.Purpose,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

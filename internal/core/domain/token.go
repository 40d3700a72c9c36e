package domain

import "time"

// TokenPurpose separates session tokens from email-verification tokens so one
// can never be replayed as the other.
type TokenPurpose string

const (
	PurposeSession      TokenPurpose = "session"
	PurposeVerification TokenPurpose = "verification"
)

// Claims is the validated content of a signed token.
type Claims struct {
	TokenID   string
	Subject   string // email
	UserID    string
	Roles     []string
	Purpose   TokenPurpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID    string
	Email     string
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

// PrincipalFromClaims builds the request principal from validated claims.
func PrincipalFromClaims(c Claims) Principal {
	return Principal{
		UserID:    c.UserID,
		Email:     c.Subject,
		Roles:     append([]string(nil), c.Roles...),
		TokenID:   c.TokenID,
		ExpiresAt: c.ExpiresAt,
	}
}

// ResetToken is a persisted password-reset record. Only the hash of the
// opaque token handed to the user is ever stored.
type ResetToken struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Mail is an outbound email job.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    bool   `json:"html"`
}

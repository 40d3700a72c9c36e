package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/api/metrics"
	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

const principalKey = "principal"

// PublicPaths is the allow-list of requests that skip authentication.
// An entry is a path, optionally preceded by a method ("POST /api/auth/users").
// A path ending in "/*" matches everything below that prefix.
type PublicPaths struct {
	entries []publicEntry
}

type publicEntry struct {
	method string // empty matches any method
	path   string
	prefix bool
}

func NewPublicPaths(entries ...string) PublicPaths {
	var p PublicPaths
	for _, e := range entries {
		fields := strings.Fields(e)
		var pe publicEntry
		switch len(fields) {
		case 1:
			pe.path = fields[0]
		case 2:
			pe.method, pe.path = strings.ToUpper(fields[0]), fields[1]
		default:
			continue
		}
		if strings.HasSuffix(pe.path, "/*") {
			pe.path, pe.prefix = strings.TrimSuffix(pe.path, "*"), true
		}
		p.entries = append(p.entries, pe)
	}
	return p
}

// Match reports whether a request for method and path is public.
func (p PublicPaths) Match(method, path string) bool {
	for _, e := range p.entries {
		if e.method != "" && e.method != method {
			continue
		}
		if e.prefix && strings.HasPrefix(path, e.path) || !e.prefix && path == e.path {
			return true
		}
	}
	return false
}

// AuthConfig wires the authentication gate.
type AuthConfig struct {
	CookieName  string
	Public      PublicPaths
	Validator   ports.TokenValidator
	Revocations ports.RevocationList // nil disables the denylist lookup
	Log         zerolog.Logger
}

// Authenticate reads the session cookie, validates it and stores the
// resulting principal in the context. Requests without a valid session never
// reach next.
func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	unauthorized := echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Public.Match(c.Request().Method, c.Request().URL.Path) {
				return next(c)
			}

			cookie, err := c.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" {
				metrics.TokenValidationsTotal.WithLabelValues("missing").Inc()
				return unauthorized
			}

			claims, err := cfg.Validator.Validate(cookie.Value, domain.PurposeSession)
			if err != nil {
				metrics.TokenValidationsTotal.WithLabelValues(validationResult(err)).Inc()
				cfg.Log.Debug().
					Str("reason", validationResult(err)).
					Str("path", c.Request().URL.Path).
					Msg("session rejected")
				return unauthorized
			}

			if cfg.Revocations != nil {
				revoked, err := cfg.Revocations.IsRevoked(c.Request().Context(), claims.TokenID)
				if err != nil {
					metrics.TokenValidationsTotal.WithLabelValues("error").Inc()
					return fmt.Errorf("check token revocation: %w", err)
				}
				if revoked {
					metrics.TokenValidationsTotal.WithLabelValues("revoked").Inc()
					return unauthorized
				}
			}

			metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
			SetPrincipal(c, domain.PrincipalFromClaims(claims))
			return next(c)
		}
	}
}

// SetPrincipal attaches p to the request context.
func SetPrincipal(c echo.Context, p domain.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok && p.UserID != ""
}

func validationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenBadSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}

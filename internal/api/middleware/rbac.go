package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/api/metrics"
	"github.com/petclinic/auth-service/internal/core/domain"
)

// Authorize enforces the static per-route rules. It expects Authenticate to
// have run first; routes without a rule pass through.
func Authorize(rules []domain.AccessRule, roles *domain.RoleHierarchy) echo.MiddlewareFunc {
	byRoute := make(map[string]domain.AccessRule, len(rules))
	for _, r := range rules {
		byRoute[r.Key()] = r
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rule, ok := byRoute[domain.RouteKey(c.Request().Method, c.Path())]
			if !ok {
				return next(c)
			}

			principal, ok := PrincipalFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !permitted(rule, principal, roles, c) {
				metrics.AuthorizationDenialsTotal.WithLabelValues(rule.Key()).Inc()
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

func permitted(rule domain.AccessRule, p domain.Principal, roles *domain.RoleHierarchy, c echo.Context) bool {
	if len(rule.Roles) > 0 && !roles.Grants(p.Roles, rule.Roles) {
		return false
	}
	if rule.OwnerParam == "" {
		return true
	}
	if c.Param(rule.OwnerParam) == p.UserID {
		return true
	}
	return len(rule.BypassRoles) > 0 && roles.Grants(p.Roles, rule.BypassRoles)
}

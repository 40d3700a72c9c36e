package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/api/middleware"
	"github.com/petclinic/auth-service/internal/core/domain"
)

// ctxPrincipal returns the principal set by the authentication gate. Its
// absence means the route was wired without the gate, so the request is
// rejected rather than served anonymously.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return p, nil
}

// bindAndValidate decodes the body into req and runs the struct validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

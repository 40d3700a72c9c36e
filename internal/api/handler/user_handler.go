package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

// UserHandler serves account lookups and administration. Access rules are
// enforced by the authorization middleware, not here.
type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the account of the current session.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  errorResponse
// @Router       /api/auth/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// List returns all accounts, optionally filtered by username.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        username  query     string  false  "Username contains (case-insensitive)"
// @Success      200       {array}   domain.User
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /api/auth/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context(), domain.UserFilter{
		UsernameContains: c.QueryParam("username"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns one account.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Param        userId  path      string  true  "User id"
// @Success      200     {object}  domain.User
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Router       /api/auth/users/{userId} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateRoles replaces an account's roles.
//
// @Summary      Update user roles
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        userId  path      string              true  "User id"
// @Param        body    body      updateRolesRequest  true  "New role set"
// @Success      200     {object}  domain.User
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Router       /api/auth/users/{userId}/roles [patch]
func (h *UserHandler) UpdateRoles(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req updateRolesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateRoles(c.Request().Context(), p.UserID, c.Param("userId"), req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Disable blocks an account from logging in.
//
// @Summary      Disable user
// @Tags         users
// @Produce      json
// @Param        userId  path      string  true  "User id"
// @Success      200     {object}  domain.User
// @Failure      404     {object}  errorResponse
// @Router       /api/auth/users/{userId}/disable [post]
func (h *UserHandler) Disable(c echo.Context) error {
	return h.setDisabled(c, true)
}

// Enable lifts a previous Disable.
//
// @Summary      Enable user
// @Tags         users
// @Produce      json
// @Param        userId  path      string  true  "User id"
// @Success      200     {object}  domain.User
// @Failure      404     {object}  errorResponse
// @Router       /api/auth/users/{userId}/enable [post]
func (h *UserHandler) Enable(c echo.Context) error {
	return h.setDisabled(c, false)
}

func (h *UserHandler) setDisabled(c echo.Context, disabled bool) error {
	user, err := h.users.SetDisabled(c.Request().Context(), c.Param("userId"), disabled)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete removes an account.
//
// @Summary      Delete user
// @Tags         users
// @Param        userId  path  string  true  "User id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /api/auth/users/{userId} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.users.Delete(c.Request().Context(), c.Param("userId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

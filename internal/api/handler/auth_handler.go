package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/api/metrics"
	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

// SessionCookie describes the cookie that carries the session token.
type SessionCookie struct {
	Name   string
	Path   string
	Domain string
	Secure bool
	TTL    time.Duration
}

func (s SessionCookie) issue(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     s.Path,
		Domain:   s.Domain,
		MaxAge:   int(s.TTL / time.Second),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s SessionCookie) clear() *http.Cookie {
	c := s.issue("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      SessionCookie
}

func NewAuthHandler(authService ports.AuthService, cookie SessionCookie) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

// Register creates a new, unverified account and mails a verification link.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /api/auth/users [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// Login checks credentials and sets the session cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Email or username, and password"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Identifier, req.Password)
	metrics.LoginAttemptsTotal.WithLabelValues(loginOutcome(err)).Inc()
	if err != nil {
		return err
	}

	c.SetCookie(h.cookie.issue(res.Token))
	return c.JSON(http.StatusOK, res.User)
}

// Logout revokes the current session and clears the cookie.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), p); err != nil {
		return err
	}
	c.SetCookie(h.cookie.clear())
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Verify marks the account behind an emailed verification token as verified.
//
// @Summary      Verify email
// @Tags         auth
// @Produce      json
// @Param        token  path      string  true  "base64url verification token"
// @Success      200    {object}  domain.User
// @Failure      400    {object}  errorResponse
// @Router       /api/auth/verification/{token} [get]
func (h *AuthHandler) Verify(c echo.Context) error {
	user, err := h.authService.VerifyEmail(c.Request().Context(), c.Param("token"))
	if err != nil {
		if domain.IsTokenError(err) || errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired verification token")
		}
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ValidateToken lets other services introspect a session token. The token
// comes from the body, or from the session cookie when the body has none.
//
// @Summary      Introspect a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      validateTokenRequest  false  "Token to check"
// @Success      200   {object}  tokenInfoResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/validate-token [post]
func (h *AuthHandler) ValidateToken(c echo.Context) error {
	var req validateTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Token == "" {
		if ck, err := c.Cookie(h.cookie.Name); err == nil {
			req.Token = ck.Value
		}
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	claims, err := h.authService.Introspect(c.Request().Context(), req.Token)
	if err != nil {
		if domain.IsTokenError(err) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return err
	}
	return c.JSON(http.StatusOK, tokenInfoResponse{
		Token:  req.Token,
		UserID: claims.UserID,
		Email:  claims.Subject,
		Roles:  claims.Roles,
	})
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAccountDisabled):
		return "disabled"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrUnverified):
		return "unverified"
	default:
		return "error"
	}
}

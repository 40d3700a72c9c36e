package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/core/ports"
)

// PasswordHandler serves the forgot/reset password flow.
type PasswordHandler struct {
	resets ports.PasswordResetService
}

func NewPasswordHandler(resets ports.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{resets: resets}
}

// Forgot mails a reset link when the address belongs to an account. The
// response is the same whether or not it does.
//
// @Summary      Start a password reset
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email and the page the link should open"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /api/auth/forgot-password [post]
func (h *PasswordHandler) Forgot(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.resets.Initiate(c.Request().Context(), req.Email, req.ReturnURL); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: "if an account exists for that email, a reset link has been sent",
	})
}

// Reset redeems a reset token and sets the new password.
//
// @Summary      Complete a password reset
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      410   {object}  errorResponse
// @Router       /api/auth/reset-password [post]
func (h *PasswordHandler) Reset(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.resets.Consume(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

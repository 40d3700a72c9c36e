package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/core/domain"
)

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{domain.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrTokenBadSignature, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{domain.ErrAccountDisabled, http.StatusUnauthorized, "invalid credentials"},
		{domain.ErrUnverified, http.StatusForbidden, "account not verified"},
		{domain.ErrSelfRoleChange, http.StatusForbidden, ""},
		{domain.ErrResetTokenNotFound, http.StatusNotFound, ""},
		{domain.ErrResetTokenExpired, http.StatusGone, ""},
		{fmt.Errorf("get user: %w", domain.ErrUserNotFound), http.StatusNotFound, "user not found"},
		{domain.ErrUserExists, http.StatusConflict, ""},
		{domain.ErrRoleNotFound, http.StatusNotFound, ""},
		{domain.ErrReturnURLRejected, http.StatusBadRequest, ""},
		{echo.NewHTTPError(http.StatusTooManyRequests, "too many requests"), http.StatusTooManyRequests, "too many requests"},
		{errors.New("mongo: server selection timeout"), http.StatusInternalServerError, "internal server error"},
	}

	e := echo.New()
	var logs strings.Builder
	handler := NewHTTPErrorHandler(zerolog.New(&logs))

	for _, tc := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
		handler(tc.err, c)

		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: invalid json %q", tc.err, rec.Body.String())
		}
		if tc.msg != "" && body.Error != tc.msg {
			t.Fatalf("%v: expected message %q, got %q", tc.err, tc.msg, body.Error)
		}
	}

	if strings.Count(logs.String(), "unhandled error") != 1 {
		t.Fatalf("only the unexpected error should be logged:\n%s", logs.String())
	}
	if strings.Contains(rec500Body(t, handler), "server selection") {
		t.Fatalf("internal details leaked")
	}
}

func rec500Body(t *testing.T, handler echo.HTTPErrorHandler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(errors.New("server selection timeout"), echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	return rec.Body.String()
}

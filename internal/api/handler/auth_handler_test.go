package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/api/middleware"
	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

type stubAuthService struct {
	registerFn   func(ctx context.Context, username, email, password string) (*domain.User, error)
	loginFn      func(ctx context.Context, identifier, password string) (ports.LoginResult, error)
	logoutFn     func(ctx context.Context, p domain.Principal) error
	verifyFn     func(ctx context.Context, token string) (*domain.User, error)
	introspectFn func(ctx context.Context, token string) (domain.Claims, error)
}

func (s *stubAuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	return s.registerFn(ctx, username, email, password)
}

func (s *stubAuthService) Login(ctx context.Context, identifier, password string) (ports.LoginResult, error) {
	return s.loginFn(ctx, identifier, password)
}

func (s *stubAuthService) Logout(ctx context.Context, p domain.Principal) error {
	return s.logoutFn(ctx, p)
}

func (s *stubAuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	return s.verifyFn(ctx, token)
}

func (s *stubAuthService) Introspect(ctx context.Context, token string) (domain.Claims, error) {
	return s.introspectFn(ctx, token)
}

var testCookie = SessionCookie{Name: "Bearer", Path: "/api", Secure: true, TTL: time.Hour}

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, email, password string) (*domain.User, error) {
			if username != "alice" || email != "alice@example.com" || password != "pw1" {
				t.Fatalf("unexpected args: %s %s %s", username, email, password)
			}
			return &domain.User{ID: "u-1", Username: username, Email: email, Roles: []string{domain.RoleOwner}}, nil
		},
	}
	c, rec := newTestContext(http.MethodPost, "/api/auth/users", `{"username":"alice","email":"alice@example.com","password":"pw1"}`)

	if err := NewAuthHandler(stub, testCookie).Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["userId"] != "u-1" || resp["username"] != "alice" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if _, leaked := resp["password"]; leaked {
		t.Fatalf("password field must not be rendered")
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, string, string, string) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub, testCookie)

	for _, body := range []string{"not-json", `{"username":"bob"}`, `{"username":"bob","email":"nope","password":"x"}`} {
		c, _ := newTestContext(http.MethodPost, "/api/auth/users", body)
		if code := httpCode(t, h.Register(c)); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, code)
		}
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, string, string, string) (*domain.User, error) {
			return nil, domain.ErrUserExists
		},
	}
	c, _ := newTestContext(http.MethodPost, "/api/auth/users", `{"username":"bob","email":"bob@example.com","password":"pw"}`)

	if err := NewAuthHandler(stub, testCookie).Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthHandler_Login_SetsCookie(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, identifier, password string) (ports.LoginResult, error) {
			if identifier != "alice@example.com" || password != "pw1" {
				t.Fatalf("unexpected args: %s %s", identifier, password)
			}
			return ports.LoginResult{Token: "signed.jwt.value", User: &domain.User{ID: "u-1", Username: "alice"}}, nil
		},
	}
	c, rec := newTestContext(http.MethodPost, "/api/auth/login", `{"identifier":"alice@example.com","password":"pw1"}`)

	if err := NewAuthHandler(stub, testCookie).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != "Bearer" || ck.Value != "signed.jwt.value" {
		t.Fatalf("unexpected cookie %+v", ck)
	}
	if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode || ck.Path != "/api" {
		t.Fatalf("unexpected cookie attributes %+v", ck)
	}
	if ck.MaxAge != 3600 {
		t.Fatalf("expected max-age 3600, got %d", ck.MaxAge)
	}
	if strings.Contains(rec.Body.String(), "signed.jwt.value") {
		t.Fatalf("token must travel only in the cookie")
	}
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	for _, want := range []error{domain.ErrInvalidCredentials, domain.ErrAccountDisabled, domain.ErrUnverified} {
		stub := &stubAuthService{
			loginFn: func(context.Context, string, string) (ports.LoginResult, error) {
				return ports.LoginResult{}, want
			},
		}
		c, rec := newTestContext(http.MethodPost, "/api/auth/login", `{"identifier":"alice","password":"bad"}`)

		if err := NewAuthHandler(stub, testCookie).Login(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatalf("no cookie expected on failure")
		}
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var revoked string
	stub := &stubAuthService{
		logoutFn: func(_ context.Context, p domain.Principal) error {
			revoked = p.TokenID
			return nil
		},
	}
	c, rec := newTestContext(http.MethodPost, "/api/auth/logout", "")
	middleware.SetPrincipal(c, domain.Principal{UserID: "u-1", TokenID: "jti-1"})

	if err := NewAuthHandler(stub, testCookie).Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if revoked != "jti-1" {
		t.Fatalf("logout did not reach the service")
	}
	ck := rec.Result().Cookies()
	if len(ck) != 1 || ck[0].MaxAge >= 0 || ck[0].Value != "" {
		t.Fatalf("cookie not cleared: %+v", ck)
	}
}

func TestAuthHandler_Verify(t *testing.T) {
	stub := &stubAuthService{
		verifyFn: func(_ context.Context, token string) (*domain.User, error) {
			switch token {
			case "good":
				return &domain.User{ID: "u-1", Verified: true}, nil
			case "down":
				return nil, errors.New("mongo: no reachable servers")
			default:
				return nil, domain.ErrTokenExpired
			}
		},
	}
	h := NewAuthHandler(stub, testCookie)
	e := echo.New()

	verify := func(token string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("token")
		c.SetParamValues(token)
		return rec, h.Verify(c)
	}

	if rec, err := verify("good"); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", rec.Code, err)
	}
	if _, err := verify("stale"); httpCode(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad token")
	}
	if _, err := verify("down"); err == nil || domain.IsTokenError(err) {
		t.Fatalf("store failures must propagate, got %v", err)
	}
}

func TestAuthHandler_ValidateToken(t *testing.T) {
	stub := &stubAuthService{
		introspectFn: func(_ context.Context, token string) (domain.Claims, error) {
			if token != "good" {
				return domain.Claims{}, domain.ErrTokenRevoked
			}
			return domain.Claims{UserID: "u-1", Subject: "alice@example.com", Roles: []string{domain.RoleOwner}}, nil
		},
	}
	h := NewAuthHandler(stub, testCookie)

	c, rec := newTestContext(http.MethodPost, "/api/auth/validate-token", `{"token":"good"}`)
	if err := h.ValidateToken(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp tokenInfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.UserID != "u-1" || resp.Email != "alice@example.com" || len(resp.Roles) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	// Falls back to the cookie when the body is empty.
	c, rec = newTestContext(http.MethodPost, "/api/auth/validate-token", "")
	c.Request().AddCookie(&http.Cookie{Name: "Bearer", Value: "good"})
	if err := h.ValidateToken(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("cookie fallback failed: %d %v", rec.Code, err)
	}

	c, _ = newTestContext(http.MethodPost, "/api/auth/validate-token", `{"token":"revoked"}`)
	if code := httpCode(t, h.ValidateToken(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	c, _ = newTestContext(http.MethodPost, "/api/auth/validate-token", "")
	if code := httpCode(t, h.ValidateToken(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without any token, got %d", code)
	}
}

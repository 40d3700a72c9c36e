package api

import (
	"fmt"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/petclinic/auth-service/docs" // swagger document
	"github.com/petclinic/auth-service/internal/api/handler"
	"github.com/petclinic/auth-service/internal/api/middleware"
	"github.com/petclinic/auth-service/internal/core/ports"
	"github.com/petclinic/auth-service/internal/infrastructure/config"
	probes "github.com/petclinic/auth-service/internal/infrastructure/http"
	"github.com/petclinic/auth-service/internal/infrastructure/http/handlers"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Log zerolog.Logger

	Auth        ports.AuthService
	Resets      ports.PasswordResetService
	Users       ports.UserService
	Tokens      ports.TokenValidator
	Revocations ports.RevocationList // nil when revocation is disabled

	Policy      *config.Policy
	ExtraPublic []string
	Cookie      handler.SessionCookie

	Redis     *redis.Client // rate limiter backend; nil disables limiting
	RateLimit middleware.RateLimitConfig

	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is the client address.
	TrustedProxies []string

	Checks []handlers.Check

	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// RequestLog enables echo's access log.
	RequestLog bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) (*echo.Echo, error) {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.Validator = handler.NewValidator()

	extractor, err := middleware.NewIPExtractor(d.TrustedProxies)
	if err != nil {
		return nil, err
	}
	e.IPExtractor = extractor

	promMW, err := echoprometheus.MiddlewareConfig{
		Subsystem:  "petclinic_auth",
		Registerer: d.Registerer,
	}.ToMiddleware()
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	// --- Global middleware ---
	// Authentication and authorization run after routing so c.Path() holds
	// the matched route pattern.
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	if d.RequestLog {
		e.Use(echomiddleware.Logger())
	}
	e.Use(promMW)
	e.Use(middleware.Authenticate(middleware.AuthConfig{
		CookieName:  d.Cookie.Name,
		Public:      middleware.NewPublicPaths(append(append([]string{}, d.Policy.Public...), d.ExtraPublic...)...),
		Validator:   d.Tokens,
		Revocations: d.Revocations,
		Log:         d.Log,
	}))
	e.Use(middleware.Authorize(d.Policy.Rules, d.Policy.Roles))

	// --- Ops routes (public per policy) ---
	probes.RegisterProbes(e, d.Checks...)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	limit := middleware.RateLimit(d.RateLimit, d.Redis, d.Log)
	authHandler := handler.NewAuthHandler(d.Auth, d.Cookie)
	passwordHandler := handler.NewPasswordHandler(d.Resets)
	userHandler := handler.NewUserHandler(d.Users)

	g := e.Group("/api/auth")
	g.POST("/users", authHandler.Register, limit)
	g.POST("/login", authHandler.Login, limit)
	g.POST("/logout", authHandler.Logout)
	g.GET("/verification/:token", authHandler.Verify)
	g.POST("/validate-token", authHandler.ValidateToken)
	g.POST("/forgot-password", passwordHandler.Forgot, limit)
	g.POST("/reset-password", passwordHandler.Reset, limit)

	// --- Account routes (rules in the access policy) ---
	g.GET("/me", userHandler.Me)
	g.GET("/users", userHandler.List)
	g.GET("/users/:userId", userHandler.Get)
	g.PATCH("/users/:userId/roles", userHandler.UpdateRoles)
	g.POST("/users/:userId/disable", userHandler.Disable)
	g.POST("/users/:userId/enable", userHandler.Enable)
	g.DELETE("/users/:userId", userHandler.Delete)

	return e, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petclinic/auth-service/internal/api"
	"github.com/petclinic/auth-service/internal/api/handler"
	"github.com/petclinic/auth-service/internal/api/middleware"
	"github.com/petclinic/auth-service/internal/core/ports"
	"github.com/petclinic/auth-service/internal/core/service"
	accesspolicy "github.com/petclinic/auth-service/internal/infrastructure/config"
	mongostore "github.com/petclinic/auth-service/internal/infrastructure/db/mongo"
	redisstore "github.com/petclinic/auth-service/internal/infrastructure/db/redis"
	"github.com/petclinic/auth-service/internal/infrastructure/http/handlers"
	"github.com/petclinic/auth-service/internal/infrastructure/mail"
	"github.com/petclinic/auth-service/internal/infrastructure/queue"
	"github.com/petclinic/auth-service/internal/pkg/config"
	"github.com/petclinic/auth-service/pkg/logger"
)

const serviceName = "auth-service"

type serveOptions struct {
	policyFile string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the HTTP API together with the mail workers and the reset-token
sweeper. Configuration is read from the environment and an optional .env file.

The process stops gracefully on SIGINT or SIGTERM: in-flight requests get
SHUTDOWN_TIMEOUT to finish and queued mail is abandoned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.policyFile, "policy", "", "Access policy file (overrides AUTH_POLICY_FILE)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return &configError{err: err}
	}
	if opts.policyFile != "" {
		cfg.Auth.PolicyFile = opts.policyFile
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
		Version: GetVersion(),
	})

	policy, err := accesspolicy.LoadPolicy(cfg.Auth.PolicyFile)
	if err != nil {
		return &configError{err: err}
	}

	// --- Storage ---
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	users := mongostore.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure user indexes: %w", err)
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	var revocations ports.RevocationList
	if cfg.Auth.RevocationOn {
		revocations = redisstore.NewRevocationList(rdb)
	}

	// --- Mail ---
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, newMailSender(cfg.Mail, log), log)
	var outbound ports.MailPublisher = dispatcher
	var consumer *queue.Consumer
	if cfg.AMQP.URL != "" {
		publisher := queue.NewPublisher(cfg.AMQP.URL, log)
		defer publisher.Close()
		outbound = publisher
		consumer = queue.NewConsumer(cfg.AMQP.URL, dispatcher, log)
	}

	// --- Services ---
	hasher := service.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens := service.NewTokenManager(service.TokenConfig{
		Secret:          []byte(cfg.Auth.JWTSecret),
		Issuer:          cfg.Auth.Issuer,
		SessionTTL:      cfg.Auth.TokenTTL(),
		VerificationTTL: cfg.Auth.VerificationTTL,
	}, nil)
	authService := service.NewAuthService(users, hasher, tokens, outbound, revocations, cfg.Auth.VerificationURL, log)
	if cfg.Auth.AdminEmail != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
	}
	resetService := service.NewResetService(users, redisstore.NewResetTokenStore(rdb), hasher, outbound,
		cfg.Auth.ResetTTL, cfg.Auth.ResetOrigins, log)
	userService := service.NewUserService(users, policy.Roles, log)

	e, err := api.NewRouter(api.Deps{
		Log:         log,
		Auth:        authService,
		Resets:      resetService,
		Users:       userService,
		Tokens:      tokens,
		Revocations: revocations,
		Policy:      policy,
		ExtraPublic: cfg.Auth.PublicPaths,
		Cookie: handler.SessionCookie{
			Name:   cfg.Auth.CookieName,
			Path:   cfg.Auth.CookiePath,
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
			TTL:    tokens.SessionTTL(),
		},
		Redis: rdb,
		RateLimit: middleware.RateLimitConfig{
			Enabled:        cfg.RateLimit.Enabled,
			Capacity:       cfg.RateLimit.Capacity,
			RefillTokens:   cfg.RateLimit.RefillTokens,
			RefillInterval: cfg.RateLimit.RefillInterval,
			TTL:            cfg.RateLimit.TTL,
		},
		TrustedProxies: cfg.TrustedProxies,
		Checks:         []handlers.Check{handlers.MongoCheck(db), handlers.RedisCheck(rdb)},
		RequestLog:     cfg.IsDevelopment(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return resetService.RunSweeper(gctx, cfg.Auth.ResetSweepPeriod) })
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Bool("revocation", revocations != nil).Msg("auth service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func newMailSender(cfg config.MailConfig, log zerolog.Logger) ports.MailSender {
	if cfg.Host == "" {
		log.Warn().Msg("SMTP_HOST not set; outbound mail is logged instead of sent")
		return mail.NewLogSender(log)
	}
	return mail.NewSMTPSender(mail.Config{
		Host:       cfg.Host,
		Port:       cfg.Port,
		Username:   cfg.Username,
		Password:   cfg.Password,
		From:       cfg.From,
		SenderName: cfg.SenderName,
		Timeout:    cfg.Timeout,
	})
}

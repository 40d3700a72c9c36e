package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const minSecretBytes = 32

type Config struct {
	Port            string        `env:"PORT,             default=8080"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=15s"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES"`

	Auth      AuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
}

type AuthConfig struct {
	JWTSecret        string        `env:"JWT_SECRET, required"`
	Issuer           string        `env:"AUTH_ISSUER,                  default=petclinic-auth"`
	TokenTTLMinutes  int           `env:"AUTH_TOKEN_TTL_MINUTES,       default=60"`
	VerificationTTL  time.Duration `env:"AUTH_VERIFICATION_TTL,        default=24h"`
	BcryptCost       int           `env:"AUTH_BCRYPT_COST,             default=10"`
	CookieName       string        `env:"AUTH_COOKIE_NAME,             default=Bearer"`
	CookiePath       string        `env:"AUTH_COOKIE_PATH,             default=/api"`
	CookieDomain     string        `env:"AUTH_COOKIE_DOMAIN"`
	CookieSecure     bool          `env:"AUTH_COOKIE_SECURE,           default=true"`
	PolicyFile       string        `env:"AUTH_POLICY_FILE"`
	PublicPaths      []string      `env:"AUTH_PUBLIC_PATHS"`
	RevocationOn     bool          `env:"AUTH_REVOCATION_ENABLED,      default=true"`
	VerificationURL  string        `env:"AUTH_VERIFICATION_BASE_URL,   default=http://localhost:8080/api/auth/verification/"`
	ResetTTL         time.Duration `env:"AUTH_RESET_TTL,               default=30m"`
	ResetOrigins     []string      `env:"AUTH_RESET_ALLOWED_ORIGINS"`
	ResetSweepPeriod time.Duration `env:"AUTH_RESET_SWEEP_INTERVAL,    default=10m"`

	// The bootstrap admin is created on startup when AdminEmail is set and
	// no account uses it yet.
	AdminUsername string `env:"AUTH_BOOTSTRAP_ADMIN_USERNAME, default=admin"`
	AdminEmail    string `env:"AUTH_BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `env:"AUTH_BOOTSTRAP_ADMIN_PASSWORD"`
}

// TokenTTL is the session lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=petclinic_auth"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// AMQPConfig points at the broker used for outbound mail. An empty URL keeps
// mail delivery in-process.
type AMQPConfig struct {
	URL string `env:"AMQP_URL"`
}

// MailConfig configures SMTP delivery. An empty host logs mail instead of
// sending it.
type MailConfig struct {
	Host       string        `env:"SMTP_HOST"`
	Port       int           `env:"SMTP_PORT,        default=587"`
	Username   string        `env:"SMTP_USERNAME"`
	Password   string        `env:"SMTP_PASSWORD"`
	From       string        `env:"MAIL_FROM,        default=noreply@petclinic.local"`
	SenderName string        `env:"MAIL_SENDER_NAME, default=PetClinic"`
	Timeout    time.Duration `env:"SMTP_TIMEOUT,     default=10s"`
	Workers    int           `env:"MAIL_WORKERS,     default=4"`
}

type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED,         default=true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY,        default=10"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS,   default=1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL, default=6s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL,             default=10m"`
}

// Load reads a .env file when one exists, then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return process(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from the given lookuper only.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	return process(ctx, l)
}

func process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < minSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretBytes))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.VerificationTTL <= 0 {
		errs = append(errs, errors.New("AUTH_VERIFICATION_TTL must be positive"))
	}
	if c.Auth.ResetTTL <= 0 {
		errs = append(errs, errors.New("AUTH_RESET_TTL must be positive"))
	}
	if strings.TrimSpace(c.Auth.CookieName) == "" {
		errs = append(errs, errors.New("AUTH_COOKIE_NAME must not be empty"))
	}
	if !strings.HasPrefix(c.Auth.CookiePath, "/") {
		errs = append(errs, errors.New("AUTH_COOKIE_PATH must start with /"))
	}
	if c.Auth.AdminEmail != "" && c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("AUTH_BOOTSTRAP_ADMIN_PASSWORD is required with AUTH_BOOTSTRAP_ADMIN_EMAIL"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
}

package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// LedgerBackend selects where attempt records live.
type LedgerBackend string

const (
	LedgerMemory   LedgerBackend = "memory"
	LedgerPostgres LedgerBackend = "postgres"
	LedgerRedis    LedgerBackend = "redis"
)

// Decode accepts the backend name in any case.
func (b *LedgerBackend) Decode(value string) error {
	*b = LedgerBackend(strings.ToLower(strings.TrimSpace(value)))
	return nil
}

// Prefixes is a comma-separated CIDR list read by ParsePrefixes.
type Prefixes []netip.Prefix

func (p *Prefixes) Decode(value string) error {
	prefixes, err := ParsePrefixes(value)
	if err != nil {
		return err
	}
	*p = prefixes
	return nil
}

const (
	devSigningKey = "dev-secret-key-change-in-production"

	minBcryptCost = 4
	maxBcryptCost = 31
)

// Server captures process level configuration. Nested sections are read
// under their bare variable names.
type Server struct {
	Addr        string `envconfig:"LOCKGATE_ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	AdminToken  string `envconfig:"ADMIN_API_TOKEN"`
	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies Prefixes `envconfig:"TRUSTED_PROXIES"`

	Auth     AuthConfig
	Lockout  LockoutConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Notify   NotifyConfig
	Sentry   SentryConfig
	Seed     SeedConfig
}

// AuthConfig configures token issuance and password hashing.
type AuthConfig struct {
	JWTSigningKey string        `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	AccessTTL     time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTTL    time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	ClockSkew     time.Duration `envconfig:"TOKEN_CLOCK_SKEW" default:"60s"`
	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"15m"`
	BcryptCost    int           `envconfig:"BCRYPT_COST" default:"10"`
}

// LockoutConfig selects the ledger backend and the expired-lock sweep cadence.
type LockoutConfig struct {
	Backend       LedgerBackend `envconfig:"LOCKOUT_BACKEND" default:"memory"`
	SweepInterval time.Duration `envconfig:"LOCKOUT_SWEEP_INTERVAL"` // zero disables the sweep
}

// DatabaseConfig holds the Postgres DSN. Empty means no database.
type DatabaseConfig struct {
	URL         string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"DATABASE_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// KafkaConfig holds broker settings for the notification sink.
type KafkaConfig struct {
	Brokers     string `envconfig:"KAFKA_BROKERS"`
	NotifyTopic string `envconfig:"KAFKA_NOTIFY_TOPIC" default:"lockgate.notifications"`
}

// NotifyConfig sizes the asynchronous notification dispatcher.
type NotifyConfig struct {
	QueueSize int `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string `envconfig:"SENTRY_DSN"`
}

// SeedConfig provisions accounts at startup. Demo accounts are only created
// in development.
type SeedConfig struct {
	AdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`
	Demo          bool   `envconfig:"SEED_DEMO_ACCOUNTS" default:"false"`
}

// FromEnv builds a Server config from environment variables. A value that
// does not parse fails the load instead of falling back to its default.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return Server{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot start safely.
func (c Server) Validate() error {
	switch c.Lockout.Backend {
	case LedgerMemory:
	case LedgerPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("LOCKOUT_BACKEND=postgres requires DATABASE_URL")
		}
	case LedgerRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("LOCKOUT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown LOCKOUT_BACKEND %q", c.Lockout.Backend)
	}
	if c.Environment == "production" && c.Auth.JWTSigningKey == devSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if (c.Seed.AdminEmail == "") != (c.Seed.AdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if c.Auth.ClockSkew < 0 {
		return fmt.Errorf("TOKEN_CLOCK_SKEW must not be negative")
	}
	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", minBcryptCost, maxBcryptCost)
	}
	if c.Lockout.SweepInterval < 0 {
		return fmt.Errorf("LOCKOUT_SWEEP_INTERVAL must not be negative")
	}
	if c.Notify.QueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}

// ParsePrefixes reads a comma-separated CIDR list. Bare addresses become
// single-host prefixes.
func ParsePrefixes(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", part, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", part, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Ticket store backend constants
const (
	TicketStoreMemory = "memory"
	TicketStoreRedis  = "redis"
)

// Mail provider constants
const (
	MailProviderConsole = "console"
	MailProviderSES     = "ses"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string // public base URL for links embedded in emails

	// cPanel settings
	CPanelBaseURL      string // origin of the cPanel frontend (ticket URLs point here)
	CPanelCookieDomain string // domain for cpanel_access_token / cpanel_refresh_token cookies
	CPanelCookieSecure bool   // Secure flag on cPanel cookies (true in prod)

	// JWT signing domains. Each domain has its own secret so a token from one
	// domain can never verify in another even if payloads overlap.
	EndUserJWTSecret   string
	DeveloperJWTSecret string
	CPanelJWTSecret    string

	EndUserTokenExpiration     time.Duration // default 168h (7 days), per-App override possible
	DeveloperAccessExpiration  time.Duration // default 15m
	DeveloperRefreshExpiration time.Duration // default 168h, persisted server-side
	CPanelAccessExpiration     time.Duration
	CPanelRefreshExpiration    time.Duration

	// Single-use token lifetimes
	VerificationTokenExpiration time.Duration // email verification / delete account (24h)
	ResetTokenExpiration        time.Duration // password reset (1h)

	// SSO ticket settings
	TicketStore string // "memory" or "redis"
	TicketTTL   time.Duration

	// Account lockout policy (developers)
	MaxFailedLogins int
	LockoutDuration time.Duration

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Redis (ticket store + distributed rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitEnabled bool
	RateLimitPerMin  int
	RateLimitStore   string // "memory" or "redis"

	// Mail
	MailProvider string // "console" or "ses"
	MailFrom     string
	AWSRegion    string

	// Metrics
	MetricsEnabled bool

	// Swagger UI (development only)
	SwaggerEnabled bool
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "authwave.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),

		CPanelBaseURL:      getEnv("CPANEL_BASE_URL", "http://localhost:3100"),
		CPanelCookieDomain: getEnv("CPANEL_COOKIE_DOMAIN", ""),
		CPanelCookieSecure: getEnvBool("CPANEL_COOKIE_SECURE", false),

		EndUserJWTSecret:   getEnv("ENDUSER_JWT_SECRET", "enduser-secret-change-in-production"),
		DeveloperJWTSecret: getEnv("DEVELOPER_JWT_SECRET", "developer-secret-change-in-production"),
		CPanelJWTSecret:    getEnv("CPANEL_JWT_SECRET", "cpanel-secret-change-in-production"),

		EndUserTokenExpiration:     getEnvDuration("ENDUSER_TOKEN_EXPIRATION", 168*time.Hour),
		DeveloperAccessExpiration:  getEnvDuration("DEVELOPER_ACCESS_EXPIRATION", 15*time.Minute),
		DeveloperRefreshExpiration: getEnvDuration("DEVELOPER_REFRESH_EXPIRATION", 168*time.Hour),
		CPanelAccessExpiration:     getEnvDuration("CPANEL_ACCESS_EXPIRATION", 15*time.Minute),
		CPanelRefreshExpiration:    getEnvDuration("CPANEL_REFRESH_EXPIRATION", 168*time.Hour),

		VerificationTokenExpiration: getEnvDuration("VERIFICATION_TOKEN_EXPIRATION", 24*time.Hour),
		ResetTokenExpiration:        getEnvDuration("RESET_TOKEN_EXPIRATION", time.Hour),

		TicketStore: getEnv("TICKET_STORE", TicketStoreMemory),
		TicketTTL:   getEnvDuration("TICKET_TTL", 60*time.Second),

		MaxFailedLogins: getEnvInt("MAX_FAILED_LOGINS", 5),
		LockoutDuration: getEnvDuration("LOCKOUT_DURATION", 30*time.Minute),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitStore:   getEnv("RATE_LIMIT_STORE", "memory"),

		MailProvider: getEnv("MAIL_PROVIDER", MailProviderConsole),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		SwaggerEnabled: getEnvBool("SWAGGER_ENABLED", false),
	}
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("unsupported DATABASE_DRIVER: %s", c.DatabaseDriver)
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required when DATABASE_DRIVER=postgres")
	}
	if c.TicketStore != TicketStoreMemory && c.TicketStore != TicketStoreRedis {
		return fmt.Errorf("unsupported TICKET_STORE: %s", c.TicketStore)
	}
	if c.MailProvider != MailProviderConsole && c.MailProvider != MailProviderSES {
		return fmt.Errorf("unsupported MAIL_PROVIDER: %s", c.MailProvider)
	}
	if c.TicketTTL <= 0 {
		return fmt.Errorf("TICKET_TTL must be positive")
	}
	if c.MaxFailedLogins < 1 {
		return fmt.Errorf("MAX_FAILED_LOGINS must be at least 1")
	}

	// Distinct secrets per signing domain is a hard requirement: identical
	// secrets would allow cross-domain token replay.
	secrets := map[string]string{
		"ENDUSER_JWT_SECRET":   c.EndUserJWTSecret,
		"DEVELOPER_JWT_SECRET": c.DeveloperJWTSecret,
		"CPANEL_JWT_SECRET":    c.CPanelJWTSecret,
	}
	seen := make(map[string]string, len(secrets))
	for name, secret := range secrets {
		if prev, ok := seen[secret]; ok {
			return fmt.Errorf("%s and %s must not share the same secret", prev, name)
		}
		seen[secret] = name
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

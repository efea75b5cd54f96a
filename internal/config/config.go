package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Commerce CommerceConfig
	Ticket   TicketConfig
	Servers  ServersConfig
	Platform PlatformConfig
}

// PlatformConfig holds chat-platform API credentials.
type PlatformConfig struct {
	BotToken   string
	APIBaseURL string
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Host    string
	Port    string
	Version string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters for the ops API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPasswordHash     string
	BcryptCost            int
}

// CommerceConfig holds credentials for the storefront admin API.
type CommerceConfig struct {
	ShopURL         string
	AdminToken      string
	APIVersion      string
	RiskCacheTTLSec int
}

// TicketConfig holds ticket lifecycle timing.
type TicketConfig struct {
	InactivitySeconds     int
	ReconcileArmSeconds   int
	CompletedDelaySeconds int
	CleanupPacingMillis   int
	MaxActivePerUser      int
}

// ServersConfig points at the server table file.
type ServersConfig struct {
	Path string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "claim-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "8080"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminUsername:         getEnv("AUTH_ADMIN_USERNAME", "admin"),
			AdminPasswordHash:     os.Getenv("AUTH_ADMIN_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Commerce: CommerceConfig{
			ShopURL:         os.Getenv("SHOPIFY_URL"),
			AdminToken:      os.Getenv("SHOPIFY_ADMIN_API_TOKEN"),
			APIVersion:      getEnv("SHOPIFY_API_VERSION", "2024-04"),
			RiskCacheTTLSec: getEnvAsInt("COMMERCE_RISK_CACHE_TTL_SECONDS", 300),
		},
		Ticket: TicketConfig{
			InactivitySeconds:     getEnvAsInt("TICKET_INACTIVITY_SECONDS", 120),
			ReconcileArmSeconds:   getEnvAsInt("TICKET_RECONCILE_ARM_SECONDS", 60),
			CompletedDelaySeconds: getEnvAsInt("TICKET_CANCELLED_DELETE_DELAY_SECONDS", 120),
			CleanupPacingMillis:   getEnvAsInt("TICKET_CLEANUP_PACING_MILLIS", 200),
			MaxActivePerUser:      getEnvAsInt("TICKET_MAX_ACTIVE_PER_USER", 2),
		},
		Servers: ServersConfig{
			Path: getEnv("SERVERS_CONFIG_PATH", "servers.json"),
		},
		Platform: PlatformConfig{
			BotToken:   os.Getenv("DISCORD_BOT_TOKEN"),
			APIBaseURL: getEnv("DISCORD_API_BASE_URL", "https://discord.com/api/v10"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address for the ops API.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// InactivityTimeout returns the delay before an idle ticket channel is
// deleted.
func (t TicketConfig) InactivityTimeout() time.Duration {
	return time.Duration(t.InactivitySeconds) * time.Second
}

// ReconcileArmTimeout returns the shorter delay used when re-arming
// timers after a restart.
func (t TicketConfig) ReconcileArmTimeout() time.Duration {
	return time.Duration(t.ReconcileArmSeconds) * time.Second
}

// CancelledDeleteDelay returns the grace period before a cancelled
// ticket's channel is removed.
func (t TicketConfig) CancelledDeleteDelay() time.Duration {
	return time.Duration(t.CompletedDelaySeconds) * time.Second
}

// CleanupPacing returns the inter-deletion delay used during batch
// channel cleanup to stay under platform rate limits.
func (t TicketConfig) CleanupPacing() time.Duration {
	return time.Duration(t.CleanupPacingMillis) * time.Millisecond
}

// RiskCacheTTL returns how long risk/financial-status lookups are cached.
func (c CommerceConfig) RiskCacheTTL() time.Duration {
	return time.Duration(c.RiskCacheTTLSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

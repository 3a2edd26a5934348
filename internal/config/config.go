// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full service configuration. Defaults line up with the
// docker-compose descriptor at the repository root, so a containerised run
// only needs the variables the descriptor injects (DB_HOST in particular).
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `env:"SERVER_HOST,default=0.0.0.0"`
	Port int    `env:"SERVER_PORT,default=8000"`
}

// DatabaseConfig controls the Postgres connection.
type DatabaseConfig struct {
	Host            string `env:"DB_HOST,default=localhost"`
	Port            int    `env:"DB_PORT,default=5432"`
	User            string `env:"DB_USER,default=rental"`
	Password        string `env:"DB_PASSWORD,default=rental"`
	Name            string `env:"DB_NAME,default=rentaldb"`
	SSLMode         string `env:"DB_SSLMODE,default=disable"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME_SECONDS,default=300"`
}

// AuthConfig controls token issuing and verification. The signing secret has
// no default; a deployment that forgets to set it must not come up.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

// RedisConfig controls the optional movie cache. An empty address disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,default="`
	Password string        `env:"REDIS_PASSWORD,default="`
	DB       int           `env:"REDIS_DB,default=0"`
	TTL      time.Duration `env:"REDIS_CACHE_TTL,default=5m"`
}

// HTTPConfig controls middleware behaviour.
type HTTPConfig struct {
	AllowedOrigins    []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitPerSec   int      `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst    int      `env:"RATE_LIMIT_BURST,default=40"`
	RequestTimeoutSec int      `env:"REQUEST_TIMEOUT_SECONDS,default=30"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	return &cfg, nil
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Identity IdentityConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  string        `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

// DatabaseConfig holds the cars database configuration.
type DatabaseConfig struct {
	URL         string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig holds cache configuration.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CarTTL   time.Duration `env:"CACHE_TTL" envDefault:"15m"`
}

// StorageConfig holds photo object storage configuration.
type StorageConfig struct {
	Endpoint      string        `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey     string        `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey     string        `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL        bool          `env:"MINIO_USE_SSL" envDefault:"false"`
	Bucket        string        `env:"STORAGE_BUCKET" envDefault:"car-images"`
	PublicURL     string        `env:"STORAGE_PUBLIC_URL"`
	MaxImageSize  int64         `env:"MAX_IMAGE_SIZE" envDefault:"5242880"`
	SweepInterval time.Duration `env:"STORAGE_SWEEP_INTERVAL" envDefault:"1h"`
}

// IdentityConfig holds the hosted identity provider configuration.
type IdentityConfig struct {
	URL           string        `env:"IDENTITY_URL"`
	APIKey        string        `env:"IDENTITY_API_KEY"`
	JWTSecret     string        `env:"JWT_SECRET"`
	JWKSURL       string        `env:"IDENTITY_JWKS_URL"`
	SiteURL       string        `env:"SITE_URL" envDefault:"http://localhost:3000"`
	SessionCookie string        `env:"SESSION_COOKIE" envDefault:"sb-access-token"`
	RefreshCookie string        `env:"REFRESH_COOKIE" envDefault:"sb-refresh-token"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`
	Timeout       time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadEnvFiles copies variables from the given dotenv files (".env" when none
// are named) into the process environment. Missing files are skipped and
// variables already set are left alone.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, fmt.Errorf("parsing redis config: %w", err)
	}
	if err := env.Parse(&cfg.Storage); err != nil {
		return nil, fmt.Errorf("parsing storage config: %w", err)
	}
	if err := env.Parse(&cfg.Identity); err != nil {
		return nil, fmt.Errorf("parsing identity config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins returns the allowed CORS origins as a slice.
func (c *ServerConfig) Origins() []string {
	origins := strings.Split(c.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// ObjectBaseURL is the prefix public photo URLs are built from.
// Without STORAGE_PUBLIC_URL it is derived from the MinIO endpoint.
func (c *StorageConfig) ObjectBaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Identity.URL == "" {
		return fmt.Errorf("IDENTITY_URL is required")
	}
	if c.Identity.JWTSecret == "" && c.Identity.JWKSURL == "" {
		return fmt.Errorf("one of JWT_SECRET or IDENTITY_JWKS_URL is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET must not be empty")
	}
	if c.Storage.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Catalog     CatalogConfig
	Persistence PersistenceConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool

	PoolSize    int
	DialTimeout time.Duration
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// CatalogBackend selects which remote service answers catalog queries
type CatalogBackend string

const (
	CatalogBackendPostgres  CatalogBackend = "postgres"
	CatalogBackendTypesense CatalogBackend = "typesense"
)

// CatalogConfig holds remote catalog query configuration
type CatalogConfig struct {
	Backend             CatalogBackend
	PageCacheTTLSeconds int
	FetchRetries        int
	CoalesceWindowMs    int
	FetchTimeout        time.Duration
	WarmPages           int
}

// PersistenceConfig holds filter-state persistence configuration
type PersistenceConfig struct {
	KeyPrefix string
	// SessionIdleTTL is how long an unused session stays open in memory
	SessionIdleTTL time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "furniture_finder"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),

			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 20),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Catalog: CatalogConfig{
			Backend:             CatalogBackend(strings.ToLower(getEnv("CATALOG_BACKEND", string(CatalogBackendPostgres)))),
			PageCacheTTLSeconds: getEnvAsInt("CATALOG_PAGE_CACHE_TTL_SECONDS", 120),
			FetchRetries:        getEnvAsInt("CATALOG_FETCH_RETRIES", 3),
			CoalesceWindowMs:    getEnvAsInt("CATALOG_COALESCE_WINDOW_MS", 2),
			FetchTimeout:        getEnvAsDuration("CATALOG_FETCH_TIMEOUT", 30*time.Second),
			WarmPages:           getEnvAsInt("CATALOG_WARM_PAGES", 3),
		},
		Persistence: PersistenceConfig{
			KeyPrefix:      getEnv("FILTER_STATE_KEY_PREFIX", "product-filter-storage"),
			SessionIdleTTL: getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "furniture-finder"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Catalog.Backend {
	case CatalogBackendPostgres, CatalogBackendTypesense:
	default:
		return fmt.Errorf("unsupported CATALOG_BACKEND %q", c.Catalog.Backend)
	}
	if c.Catalog.FetchRetries < 1 {
		return fmt.Errorf("CATALOG_FETCH_RETRIES must be at least 1, got %d", c.Catalog.FetchRetries)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/store"
	pkgconfig "github.com/SajivJess/Wally/pkg/config"
	"github.com/SajivJess/Wally/pkg/database"
)

// ServiceName identifies the API in logs, metrics and traces.
const ServiceName = "wally-api"

// Config holds all configuration for the Wally API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8001"`

	// Record store
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"redis"`
	StoreKeyPrefix string `env:"STORE_KEY_PREFIX" envDefault:"wally:"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"wally"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"wally_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"wally"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"5"`

	// Queries slower than this are logged; 0 disables it.
	SlowQueryThresholdMs int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// MongoDB
	MongoURL string `env:"MONGO_URL" envDefault:"mongodb://localhost:27017"`
	DBName   string `env:"DB_NAME" envDefault:"wally"`

	// Store resilience
	StoreRetryAttempts         uint `env:"STORE_RETRY_ATTEMPTS" envDefault:"3"`
	StoreBreakerTimeoutSeconds int  `env:"STORE_BREAKER_TIMEOUT_SECONDS" envDefault:"30"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Sample data and checkout behaviour
	SeedSampleData bool   `env:"SEED_SAMPLE_DATA" envDefault:"true"`
	OrderIDScheme  string `env:"ORDER_ID_SCHEME" envDefault:"unique"`

	// Per-IP rate limit on /api; RATE_LIMIT_RPS <= 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// CORS
	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreDriver {
	case store.DriverRedis, store.DriverPostgres, store.DriverMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of redis, postgres, mongo, got %q", c.StoreDriver)
	}
	if c.StoreDriver == store.DriverMongo && c.MongoURL == "" {
		return fmt.Errorf("MONGO_URL is required for the mongo store")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.StoreDriver == store.DriverPostgres && c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required for the postgres store")
	}
	if c.StoreRetryAttempts < 1 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1")
	}
	if c.StoreBreakerTimeoutSeconds < 1 {
		return fmt.Errorf("STORE_BREAKER_TIMEOUT_SECONDS must be at least 1")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if c.OrderIDScheme != domain.OrderIDSchemeLegacy && c.OrderIDScheme != domain.OrderIDSchemeUnique {
		return fmt.Errorf("ORDER_ID_SCHEME must be legacy or unique, got %q", c.OrderIDScheme)
	}
	return nil
}

// RedisConfig returns the Redis connection settings.
func (c *Config) RedisConfig() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// PostgresConfig returns the PostgreSQL pool settings.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	pc := database.DefaultPostgresConfig()
	pc.Host = c.PostgresHost
	pc.Port = c.PostgresPort
	pc.User = c.PostgresUser
	pc.Password = c.PostgresPass
	pc.DBName = c.PostgresDB
	pc.SSLMode = c.PostgresSSL
	pc.MaxConns = c.DBMaxConns
	pc.MinConns = c.DBMinConns
	return &pc
}

// MongoConfig returns the MongoDB connection settings.
func (c *Config) MongoConfig() database.MongoConfig {
	mc := database.DefaultMongoConfig()
	mc.URL = c.MongoURL
	mc.Database = c.DBName
	return mc
}

// ResilienceConfig returns the retry and circuit breaker settings for the store.
func (c *Config) ResilienceConfig() store.ResilienceConfig {
	rc := store.DefaultResilienceConfig()
	rc.Attempts = c.StoreRetryAttempts
	rc.BreakerTimeout = time.Duration(c.StoreBreakerTimeoutSeconds) * time.Second
	return rc
}

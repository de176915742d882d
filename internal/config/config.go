package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Store    StoreConfig
	Cart     CartConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Invoice  InvoiceConfig
	Company  CompanyConfig
	Finalize FinalizeConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	AutoMigrate     bool
	MigrationsPath  string
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// StoreConfig holds store-wide settings.
type StoreConfig struct {
	Currency string // ISO 4217
}

// Cart storage backends.
const (
	CartBackendPostgres = "postgres"
	CartBackendMongo    = "mongo"
)

// CartConfig selects where carts live.
type CartConfig struct {
	Backend string
}

// MongoConfig is used when the cart backend is mongo.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig configures the cart cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures order event publishing.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Invoice storage backends.
const (
	InvoiceStorageLocal = "local"
	InvoiceStorageS3    = "s3"
)

// InvoiceConfig configures invoice rendering and storage.
type InvoiceConfig struct {
	Storage            string
	Dir                string
	S3Bucket           string
	S3Region           string
	S3Prefix           string
	Timeout            time.Duration
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
}

// CompanyConfig is the seller block printed on invoices.
type CompanyConfig struct {
	Name    string
	Address string
	Email   string
	TaxID   string
}

// FinalizeConfig tunes the finalize workflow.
type FinalizeConfig struct {
	StepTimeout       time.Duration
	RetryAttempts     int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", false),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Store: StoreConfig{
			Currency: strings.ToUpper(getEnv("STORE_CURRENCY", "USD")),
		},
		Cart: CartConfig{
			Backend: getEnv("CART_BACKEND", CartBackendPostgres),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "storefront"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_CART_TTL", 15*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "orders.finalized"),
		},
		Invoice: InvoiceConfig{
			Storage:            getEnv("INVOICE_STORAGE", InvoiceStorageLocal),
			Dir:                getEnv("INVOICE_DIR", "data"),
			S3Bucket:           getEnv("INVOICE_S3_BUCKET", ""),
			S3Region:           getEnv("INVOICE_S3_REGION", "us-east-1"),
			S3Prefix:           getEnv("INVOICE_S3_PREFIX", ""),
			Timeout:            getEnvAsDuration("INVOICE_TIMEOUT", 10*time.Second),
			BreakerFailures:    getEnvAsInt("INVOICE_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getEnvAsDuration("INVOICE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Company: CompanyConfig{
			Name:    getEnv("COMPANY_NAME", "Storefront Ltd"),
			Address: getEnv("COMPANY_ADDRESS", ""),
			Email:   getEnv("COMPANY_EMAIL", ""),
			TaxID:   getEnv("COMPANY_TAX_ID", ""),
		},
		Finalize: FinalizeConfig{
			StepTimeout:       getEnvAsDuration("FINALIZE_STEP_TIMEOUT", 10*time.Second),
			RetryAttempts:     getEnvAsInt("FINALIZE_RETRY_ATTEMPTS", 3),
			RetryInitialDelay: getEnvAsDuration("FINALIZE_RETRY_INITIAL_DELAY", 100*time.Millisecond),
			RetryMaxDelay:     getEnvAsDuration("FINALIZE_RETRY_MAX_DELAY", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Database.AutoMigrate && c.Database.MigrationsPath == "" {
		return fmt.Errorf("migrations path is required when auto migrate is enabled")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if _, err := currency.ParseISO(c.Store.Currency); err != nil {
		return fmt.Errorf("invalid store currency: %q", c.Store.Currency)
	}

	switch c.Cart.Backend {
	case CartBackendPostgres:
	case CartBackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("mongo URI and database are required when the cart backend is mongo")
		}
	default:
		return fmt.Errorf("invalid cart backend: %s (must be postgres or mongo)", c.Cart.Backend)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	switch c.Invoice.Storage {
	case InvoiceStorageLocal:
		if c.Invoice.Dir == "" {
			return fmt.Errorf("invoice directory is required for local invoice storage")
		}
	case InvoiceStorageS3:
		if c.Invoice.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required when invoice storage is s3")
		}
		if c.Invoice.S3Region == "" {
			return fmt.Errorf("S3 region is required when invoice storage is s3")
		}
	default:
		return fmt.Errorf("invalid invoice storage: %s (must be local or s3)", c.Invoice.Storage)
	}

	if c.Invoice.BreakerFailures < 1 {
		return fmt.Errorf("invoice breaker failures must be at least 1")
	}

	if c.Finalize.RetryAttempts < 1 {
		return fmt.Errorf("finalize retry attempts must be at least 1")
	}

	if c.Finalize.RetryInitialDelay > c.Finalize.RetryMaxDelay {
		return fmt.Errorf("finalize retry initial delay cannot exceed max delay")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration parses values such as "500ms" or "30s".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

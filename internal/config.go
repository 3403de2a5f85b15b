package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
}

// SecurityConfig with an empty JWTSecret falls back to trusting ActorHeader.
type SecurityConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer"`
	ActorHeader string `mapstructure:"actor_header"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LedgerConfig struct {
	DefaultExpectedAmount  string        `mapstructure:"default_expected_amount"`
	ReferencePrefix        string        `mapstructure:"reference_prefix"`
	ReferenceMaxAttempts   int           `mapstructure:"reference_max_attempts"`
	Timezone               string        `mapstructure:"timezone"`
	OverdueRefreshInterval time.Duration `mapstructure:"overdue_refresh_interval"`
	OverdueBatchSize       int           `mapstructure:"overdue_batch_size"`
}

const (
	defaultExpectedAmount  = "1000"
	defaultReferencePrefix = "PAY"
	defaultActorHeader     = "X-Actor-ID"
)

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds the config for container deployments where no
// config.yml is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
			LockTimeout:     getEnvAsDuration("DB_LOCK_TIMEOUT", 5*time.Second),
		},
		Security: SecurityConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			JWTIssuer:   getEnv("JWT_ISSUER", ""),
			ActorHeader: getEnv("ACTOR_HEADER", defaultActorHeader),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Ledger: LedgerConfig{
			DefaultExpectedAmount:  getEnv("LEDGER_DEFAULT_EXPECTED_AMOUNT", defaultExpectedAmount),
			ReferencePrefix:        getEnv("LEDGER_REFERENCE_PREFIX", defaultReferencePrefix),
			ReferenceMaxAttempts:   getEnvAsInt("LEDGER_REFERENCE_MAX_ATTEMPTS", 10),
			Timezone:               getEnv("LEDGER_TIMEZONE", "UTC"),
			OverdueRefreshInterval: getEnvAsDuration("LEDGER_OVERDUE_REFRESH_INTERVAL", time.Hour),
			OverdueBatchSize:       getEnvAsInt("LEDGER_OVERDUE_BATCH_SIZE", 500),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values left by a partial config file.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Security.ActorHeader == "" {
		c.Security.ActorHeader = defaultActorHeader
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
	if c.Ledger.DefaultExpectedAmount == "" {
		c.Ledger.DefaultExpectedAmount = defaultExpectedAmount
	}
	if c.Ledger.ReferencePrefix == "" {
		c.Ledger.ReferencePrefix = defaultReferencePrefix
	}
	if c.Ledger.ReferenceMaxAttempts <= 0 {
		c.Ledger.ReferenceMaxAttempts = 10
	}
	if c.Ledger.Timezone == "" {
		c.Ledger.Timezone = "UTC"
	}
	if c.Ledger.OverdueRefreshInterval <= 0 {
		c.Ledger.OverdueRefreshInterval = time.Hour
	}
	if c.Ledger.OverdueBatchSize <= 0 {
		c.Ledger.OverdueBatchSize = 500
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Ledger.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("ledger config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range c.Origins() {
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported level %q", c.Level)
	}
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	return nil
}

func (c *LedgerConfig) Validate() error {
	amount, err := c.DefaultAmount()
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return errors.New("default_expected_amount cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if strings.ContainsAny(c.ReferencePrefix, " \t") {
		return errors.New("reference_prefix must not contain whitespace")
	}
	return nil
}

// DefaultAmount is the expected amount used when a payment covers a day that
// has no debt record yet.
func (c *LedgerConfig) DefaultAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(c.DefaultExpectedAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid default_expected_amount %q: %w", c.DefaultExpectedAmount, err)
	}
	return amount, nil
}

func (c *LedgerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

package config

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	Isolation       string        `mapstructure:"DATABASE_ISOLATION"`
	MaxTxRetries    int           `mapstructure:"DATABASE_MAX_TX_RETRIES"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"REDIS_ADDR"`
	Password     string        `mapstructure:"REDIS_PASSWORD"`
	DB           int           `mapstructure:"REDIS_DB"`
	LoanCacheTTL time.Duration `mapstructure:"REDIS_LOAN_CACHE_TTL"`
}

type SchedulerConfig struct {
	OverdueReportSpec string `mapstructure:"SCHEDULER_OVERDUE_REPORT_SPEC"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	Timezone                  string `mapstructure:"BUSINESS_TIMEZONE"`
	StatementPageSize         int    `mapstructure:"BUSINESS_STATEMENT_PAGE_SIZE"`
	PenaltyPercentPerHalfYear string `mapstructure:"BUSINESS_PENALTY_PERCENT_PER_HALF_YEAR"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var isolationLevels = map[string]sql.IsolationLevel{
	"serializable":    sql.LevelSerializable,
	"repeatable_read": sql.LevelRepeatableRead,
	"read_committed":  sql.LevelReadCommitted,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DATABASE_ISOLATION", "serializable")
	v.SetDefault("DATABASE_MAX_TX_RETRIES", 3)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LOAN_CACHE_TTL", "24h")
	v.SetDefault("SCHEDULER_OVERDUE_REPORT_SPEC", "0 0 1 * * *")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("BUSINESS_STATEMENT_PAGE_SIZE", 50)
	v.SetDefault("BUSINESS_PENALTY_PERCENT_PER_HALF_YEAR", "1")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Values already in the environment win over the .env file
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q", DriverPostgres, DriverMemory)
	}

	if _, ok := isolationLevels[strings.ToLower(c.Database.Isolation)]; !ok {
		return fmt.Errorf("DATABASE_ISOLATION %q is not supported", c.Database.Isolation)
	}

	if c.Database.MaxTxRetries < 0 {
		return fmt.Errorf("DATABASE_MAX_TX_RETRIES must not be negative")
	}

	if c.Business.StatementPageSize <= 0 {
		return fmt.Errorf("BUSINESS_STATEMENT_PAGE_SIZE must be greater than 0")
	}

	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE must be a valid IANA zone: %w", err)
	}

	// Validate penalty step
	penalty, err := decimal.NewFromString(c.Business.PenaltyPercentPerHalfYear)
	if err != nil {
		return fmt.Errorf("BUSINESS_PENALTY_PERCENT_PER_HALF_YEAR must be a valid decimal: %w", err)
	}
	if penalty.IsNegative() {
		return fmt.Errorf("BUSINESS_PENALTY_PERCENT_PER_HALF_YEAR must not be negative")
	}

	// Validate cron expression
	if _, err := cron.NewParser(CronFields).Parse(c.Scheduler.OverdueReportSpec); err != nil {
		return fmt.Errorf("SCHEDULER_OVERDUE_REPORT_SPEC must be a valid cron spec: %w", err)
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a positive duration")
	}

	return nil
}

// ValidateScheduler checks the settings the overdue report scheduler needs on top of Validate.
// The memory driver is refused: the scheduler runs in its own process and would only
// ever see an empty store.
func (c *Config) ValidateScheduler() error {
	if c.Database.Driver != DriverPostgres {
		return fmt.Errorf("DATABASE_DRIVER %q is not shared between processes, the scheduler requires %q",
			c.Database.Driver, DriverPostgres)
	}
	return nil
}

// CronFields is the cron dialect of the scheduler: seconds first, like cron.WithSeconds.
const CronFields = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Addr returns the host:port the HTTP server listens on
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GetIsolationLevel returns the transaction isolation used for financial mutations
func (c *Config) GetIsolationLevel() sql.IsolationLevel {
	return isolationLevels[strings.ToLower(c.Database.Isolation)]
}

// GetLocation returns the business timezone that defines "today"
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetPenaltyPercentPerHalfYear returns the overdue penalty step as decimal
func (c *Config) GetPenaltyPercentPerHalfYear() decimal.Decimal {
	penalty, _ := decimal.NewFromString(c.Business.PenaltyPercentPerHalfYear)
	return penalty
}

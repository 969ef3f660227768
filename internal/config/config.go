package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Redis         RedisConfig         `json:"redis"`
	Storage       StorageConfig       `json:"storage"`
	Notifications NotificationsConfig `json:"notifications"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
	Inbox         InboxConfig         `json:"inbox"`
	Workflow      WorkflowConfig      `json:"workflow"`
	Jobs          JobsConfig          `json:"jobs"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host" env:"SERVER_HOST"`
	Port            int           `json:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `json:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS" envSeparator:","`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	// Driver is postgres or sqlite3.
	Driver         string        `json:"driver" env:"DATABASE_DRIVER"`
	DSN            string        `json:"dsn" env:"DATABASE_DSN"`
	Host           string        `json:"host" env:"DATABASE_HOST"`
	Port           int           `json:"port" env:"DATABASE_PORT"`
	User           string        `json:"user" env:"DATABASE_USER"`
	Password       string        `json:"password" env:"DATABASE_PASSWORD"`
	DBName         string        `json:"db_name" env:"DATABASE_DBNAME"`
	SSLMode        string        `json:"ssl_mode" env:"DATABASE_SSLMODE"`
	MaxConnections int           `json:"max_connections" env:"DATABASE_MAX_CONNECTIONS"`
	MaxIdleConns   int           `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MaxLifetime    time.Duration `json:"max_lifetime" env:"DATABASE_MAX_LIFETIME"`
}

// RedisConfig configures the inbox projection cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled" env:"REDIS_ENABLED"`
	Addr     string `json:"addr" env:"REDIS_ADDR"`
	Password string `json:"password" env:"REDIS_PASSWORD"`
	DB       int    `json:"db" env:"REDIS_DB"`
}

// StorageConfig configures the attachment store. An empty bucket keeps
// files in memory.
type StorageConfig struct {
	Bucket      string `json:"bucket" env:"STORAGE_BUCKET"`
	Region      string `json:"region" env:"AWS_REGION"`
	Endpoint    string `json:"endpoint" env:"STORAGE_ENDPOINT"`
	Prefix      string `json:"prefix" env:"STORAGE_PREFIX"`
	AccessKeyID string `json:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretKey   string `json:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
}

type NotificationsConfig struct {
	EmailEnabled bool   `json:"email_enabled" env:"NOTIFICATIONS_EMAIL_ENABLED"`
	EmailFrom    string `json:"email_from" env:"NOTIFICATIONS_EMAIL_FROM"`
	PushEnabled  bool   `json:"push_enabled" env:"NOTIFICATIONS_PUSH_ENABLED"`
	PushTopicARN string `json:"push_topic_arn" env:"NOTIFICATIONS_PUSH_TOPIC_ARN"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret" env:"JWT_SECRET"`
	// AllowUserHeader trusts X-User-ID. Development only.
	AllowUserHeader bool `json:"allow_user_header" env:"SECURITY_ALLOW_USER_HEADER"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level" env:"LOG_LEVEL"`
	Development bool   `json:"development" env:"LOG_DEVELOPMENT"`
}

type InboxConfig struct {
	// MarkerStore is sql or dynamodb.
	MarkerStore string        `json:"marker_store" env:"INBOX_MARKER_STORE"`
	DynamoTable string        `json:"dynamodb_table" env:"INBOX_DYNAMODB_TABLE"`
	CacheTTL    time.Duration `json:"cache_ttl" env:"INBOX_CACHE_TTL"`
}

// WorkflowConfig holds the fallbacks used until an admin stores settings.
type WorkflowConfig struct {
	MaxNormalPerDay       int `json:"max_normal_per_day" env:"WORKFLOW_MAX_NORMAL_PER_DAY"`
	MaxUrgentPerDay       int `json:"max_urgent_per_day" env:"WORKFLOW_MAX_URGENT_PER_DAY"`
	OrderableDaysInFuture int `json:"orderable_days_in_future" env:"WORKFLOW_ORDERABLE_DAYS_IN_FUTURE"`
}

// JobsConfig schedules the background jobs. Expressions use six fields,
// seconds first. An empty expression disables that job.
type JobsConfig struct {
	Enabled             bool   `json:"enabled" env:"JOBS_ENABLED"`
	LedgerAudit         string `json:"ledger_audit" env:"JOBS_LEDGER_AUDIT"`
	DueReminders        string `json:"due_reminders" env:"JOBS_DUE_REMINDERS"`
	DueReminderLeadDays int    `json:"due_reminder_lead_days" env:"JOBS_DUE_REMINDER_LEAD_DAYS"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "request_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Storage: StorageConfig{Region: "us-east-1", Prefix: "attachments"},
		Logging: LoggingConfig{Level: "info"},
		Inbox:   InboxConfig{MarkerStore: "sql", CacheTTL: 5 * time.Minute},
		Workflow: WorkflowConfig{
			MaxNormalPerDay:       5,
			MaxUrgentPerDay:       2,
			OrderableDaysInFuture: 30,
		},
		Jobs: JobsConfig{
			Enabled:             true,
			LedgerAudit:         "0 30 2 * * *",
			DueReminders:        "0 0 7 * * *",
			DueReminderLeadDays: 1,
		},
	}
}

// LoadConfig loads configuration from defaults, the JSON file at configPath
// (if it exists), .env files, then environment variables, in that order.
func LoadConfig(configPath string, envFiles ...string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadEnvFiles loads the files that exist. Variables already set win.
func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Validate rejects impossible values, reporting all of them.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "postgres":
	case "sqlite3":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for sqlite3"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.MaxConnections < 1 {
		errs = append(errs, errors.New("database.max_connections must be positive"))
	}
	switch c.Inbox.MarkerStore {
	case "sql":
	case "dynamodb":
		if c.Inbox.DynamoTable == "" {
			errs = append(errs, errors.New("inbox.dynamodb_table is required for the dynamodb marker store"))
		}
	default:
		errs = append(errs, fmt.Errorf("inbox.marker_store %q is not supported", c.Inbox.MarkerStore))
	}
	if c.Notifications.EmailEnabled && c.Notifications.EmailFrom == "" {
		errs = append(errs, errors.New("notifications.email_from is required when email is enabled"))
	}
	if c.Security.JWTSecret == "" && !c.Security.AllowUserHeader {
		errs = append(errs, errors.New("security.jwt_secret is required unless allow_user_header is set"))
	}
	if c.Workflow.MaxNormalPerDay < 0 || c.Workflow.MaxUrgentPerDay < 0 || c.Workflow.OrderableDaysInFuture < 0 {
		errs = append(errs, errors.New("workflow limits must not be negative"))
	}
	for name, spec := range map[string]string{"jobs.ledger_audit": c.Jobs.LedgerAudit, "jobs.due_reminders": c.Jobs.DueReminders} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Jobs.DueReminderLeadDays < 0 {
		errs = append(errs, errors.New("jobs.due_reminder_lead_days must not be negative"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not supported", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

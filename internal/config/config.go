// Package config provides configuration management for the WiFi registry service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Enrichment session stores
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string `yaml:"port"`
	RateLimit       int64  `yaml:"rate_limit"`        // requests per minute per IP
	UploadRateLimit int64  `yaml:"upload_rate_limit"` // uploads per minute per IP
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTAccessTokenTTL time.Duration `yaml:"jwt_access_token_ttl"`
	// Required protects mutating routes with an operator token
	Required bool `yaml:"required"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver                string        `yaml:"driver"` // "sqlite" or "postgres"
	SQLitePath            string        `yaml:"sqlite_path"`
	URL                   string        `yaml:"url"`
	Host                  string        `yaml:"host"`
	Port                  string        `yaml:"port"`
	Name                  string        `yaml:"name"`
	User                  string        `yaml:"user"`
	Password              string        `yaml:"password"`
	SSLMode               string        `yaml:"sslmode"`
	MaxConnections        int           `yaml:"max_connections"`
	MaxIdleConnections    int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// IngestConfig holds ingestion pipeline settings
type IngestConfig struct {
	DedupFields       []string `yaml:"dedup_fields"`
	MaxReportedErrors int      `yaml:"max_reported_errors"`
	ProgressInterval  int      `yaml:"progress_interval"`
	// HistoryDedup seeds every batch with the signatures of stored records
	HistoryDedup bool `yaml:"history_dedup"`
}

// EnrichmentConfig holds settings for the enrichment conversation
type EnrichmentConfig struct {
	SessionStore  string        `yaml:"session_store"` // "memory" or "redis"
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// MQTTConfig holds the optional MQTT ingestion transport settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables MQTT ingestion
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// TelegramConfig holds the optional chat transport settings
type TelegramConfig struct {
	BotToken         string `yaml:"bot_token"` // empty disables the bot
	AuthorizedChatID int64  `yaml:"authorized_chat_id"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // "json" or "console"
	Service string `yaml:"service"`
}

// Load loads configuration from a .env file if present, environment
// variables and the optional YAML file named by WIFI_CONFIG_FILE. Values in
// the YAML file override environment values.
func Load() (*Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			RateLimit:       int64(getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100)),
			UploadRateLimit: int64(getEnvAsInt("UPLOAD_RATE_LIMIT_PER_MINUTE", 10)),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Database: DatabaseConfig{
			Driver:                getEnv("DB_DRIVER", DriverSQLite),
			SQLitePath:            getEnv("SQLITE_PATH", "data/wifi.db"),
			URL:                   os.Getenv("DATABASE_URL"),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnv("DB_PORT", "5432"),
			Name:                  getEnv("DB_NAME", "wifi_registry"),
			User:                  getEnv("DB_USER", "wifi_user"),
			Password:              GetSecret("DB_PASSWORD", "wifi_pass"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConnections:    getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnectionMaxLifetime: getEnvAsDuration("DB_CONNECTION_MAX_LIFETIME", "5m"),
		},
		Auth: AuthConfig{
			JWTSecret:         GetSecret("JWT_SECRET", "dev-secret-key-change-in-production"),
			JWTAccessTokenTTL: getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", "1h"),
			Required:          getEnvAsBool("AUTH_REQUIRED", false),
		},
		Ingest: IngestConfig{
			DedupFields:       getEnvAsList("DEDUP_FIELDS"),
			MaxReportedErrors: getEnvAsInt("MAX_REPORTED_ERRORS", 10),
			ProgressInterval:  getEnvAsInt("PROGRESS_INTERVAL", 10),
			HistoryDedup:      getEnvAsBool("HISTORY_DEDUP", false),
		},
		Enrichment: EnrichmentConfig{
			SessionStore:  getEnv("SESSION_STORE", SessionStoreMemory),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: GetSecret("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", "30m"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    getEnv("MQTT_TOPIC", "wifi/observations"),
			ClientID: getEnv("MQTT_CLIENT_ID", "wifi-registry"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: GetSecret("MQTT_PASSWORD", ""),
			QoS:      getEnvAsInt("MQTT_QOS", 1),
		},
		Telegram: TelegramConfig{
			BotToken:         GetSecret("TELEGRAM_BOT_TOKEN", ""),
			AuthorizedChatID: int64(getEnvAsInt("AUTHORIZED_CHAT_ID", 0)),
		},
		Logging: LoggingConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("SERVICE_NAME", "wifi-registry"),
		},
	}

	if path := os.Getenv("WIFI_CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFile overlays the settings of a YAML file on the configuration.
// Keys missing from the file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	case DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Enrichment.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Enrichment.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.Enrichment.SessionStore)
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return errors.New("MQTT_TOPIC is required when MQTT_BROKER is set")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.New("MQTT_QOS must be 0, 1 or 2")
	}

	if c.Ingest.MaxReportedErrors <= 0 {
		return errors.New("MAX_REPORTED_ERRORS must be positive")
	}
	if c.Ingest.ProgressInterval <= 0 {
		return errors.New("PROGRESS_INTERVAL must be positive")
	}

	return nil
}

// ConnectionString returns the database connection string for the configured driver
func (d *DatabaseConfig) ConnectionString() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated environment variable, nil when unset
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		defaultDuration, _ := time.ParseDuration(defaultValue)
		return defaultDuration
	}
	return value
}

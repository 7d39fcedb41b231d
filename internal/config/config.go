// Package config provides configuration management for the certificate
// access server. Configuration can be loaded from YAML files and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	// BaseURL is the public origin issued URLs point at, without a
	// trailing slash.
	BaseURL string `mapstructure:"base_url"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tokens   TokensConfig   `mapstructure:"tokens"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// SQLite settings (used when Driver is "sqlite")
	Path        string `mapstructure:"path"`
	JournalMode string `mapstructure:"journal_mode"`
	BusyTimeout int    `mapstructure:"busy_timeout"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings. When disabled, token
// usage counters and the revocation list live in process memory.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds certificate file storage settings.
type StorageConfig struct {
	// Backend specifies the file store: "local" or "s3".
	Backend string          `mapstructure:"backend"`
	DataDir string          `mapstructure:"data_dir"`
	S3      S3StorageConfig `mapstructure:"s3"`
}

// S3StorageConfig holds S3 backend settings.
type S3StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// TokensConfig holds signed-token settings.
type TokensConfig struct {
	// Secret signs and verifies tokens. Required.
	Secret string `mapstructure:"secret"`

	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`

	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	DownloadTokenTTL time.Duration `mapstructure:"download_token_ttl"`
	ShareTokenTTL    time.Duration `mapstructure:"share_token_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_token_ttl"`

	// RotateRefresh revokes a refresh token when it is used and issues
	// a replacement.
	RotateRefresh bool `mapstructure:"rotate_refresh"`
}

// AdminConfig holds settings for the issuing API.
type AdminConfig struct {
	// APIKeyHash is the bcrypt hash of the key admin callers present
	// in the X-Admin-Key header. Empty disables the admin routes.
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// RendererConfig holds settings for the external render service that
// turns certificate HTML into PDF and PNG files.
type RendererConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with CULTURE_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDatabase reads configuration but validates only the database
// section. Maintenance tools use it so they do not require the full
// server configuration.
func LoadDatabase(configPath string) (DatabaseConfig, error) {
	cfg, err := load(configPath)
	if err != nil {
		return DatabaseConfig{}, err
	}

	if err := cfg.validateDatabase(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.Database, nil
}

func load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CULTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/culture")
	}

	// Config file not found is acceptable; defaults and env vars apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8080")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "culture")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "culture")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	// SQLite defaults
	v.SetDefault("database.path", "./data/culture.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.data_dir", "./data/certificates")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", false)

	// Token defaults
	v.SetDefault("tokens.secret", "") // Must be provided
	v.SetDefault("tokens.issuer", "culture-certificates")
	v.SetDefault("tokens.audience", "certificate-access")
	v.SetDefault("tokens.access_token_ttl", 7*24*time.Hour)
	v.SetDefault("tokens.download_token_ttl", time.Hour)
	v.SetDefault("tokens.share_token_ttl", 30*24*time.Hour)
	v.SetDefault("tokens.refresh_token_ttl", 90*24*time.Hour)
	v.SetDefault("tokens.rotate_refresh", false)

	// Renderer defaults
	v.SetDefault("renderer.url", "http://localhost:3001/render")
	v.SetDefault("renderer.timeout", 30*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be 'local' or 's3'")
	}

	if c.Tokens.Secret == "" {
		return fmt.Errorf("tokens.secret is required")
	}
	if len(c.Tokens.Secret) < 32 {
		return fmt.Errorf("tokens.secret must be at least 32 characters")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite driver")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

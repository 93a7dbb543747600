package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds read-path cache TTLs
type CacheConfig struct {
	OffersTTL  time.Duration `mapstructure:"offers_ttl"`
	ButtonsTTL time.Duration `mapstructure:"buttons_ttl"`
	StatsTTL   time.Duration `mapstructure:"stats_ttl"`
}

// AuthConfig holds authentication configuration for write endpoints
type AuthConfig struct {
	APITokens []string `mapstructure:"api_tokens"`
}

// IngestConfig holds ingest pipeline configuration
type IngestConfig struct {
	MaxRetries    uint64        `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PoolSize      int           `mapstructure:"pool_size"`
	QueueSize     int           `mapstructure:"queue_size"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
}

// EventsConfig holds user event recorder configuration
type EventsConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ButtonsConfig holds order button configuration
type ButtonsConfig struct {
	ConfigPath string `mapstructure:"config_path"`
}

// APIConfig holds configuration for the api binary
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Ingest     IngestConfig   `mapstructure:"ingest"`
	Events     EventsConfig   `mapstructure:"events"`
	Buttons    ButtonsConfig  `mapstructure:"buttons"`
}

// LoadAPIConfig loads configuration for the api binary
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("cache.offers_ttl", "30s")
	v.SetDefault("cache.buttons_ttl", "5m")
	v.SetDefault("cache.stats_ttl", "10s")
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.timeout", "10s")
	v.SetDefault("ingest.pool_size", 4)
	v.SetDefault("ingest.queue_size", 256)
	v.SetDefault("ingest.rate_per_minute", 120)
	v.SetDefault("events.pool_size", 2)
	v.SetDefault("events.queue_size", 1024)
	v.SetDefault("events.write_timeout", "5s")
	v.SetDefault("buttons.config_path", "config/button_config.json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("CARD_LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// Cache
		"cache.offers_ttl",
		"cache.buttons_ttl",
		"cache.stats_ttl",
		// Auth
		"auth.api_tokens",
		// Ingest
		"ingest.max_retries",
		"ingest.timeout",
		"ingest.pool_size",
		"ingest.queue_size",
		"ingest.rate_per_minute",
		// Events
		"events.pool_size",
		"events.queue_size",
		"events.write_timeout",
		// Buttons
		"buttons.config_path",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

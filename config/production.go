// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	JWT      JWTConfig      `json:"jwt"`
	Gateway  GatewayConfig  `json:"gateway"`
	Quota    QuotaConfig    `json:"quota"`
	Engine   EngineConfig   `json:"engine"`
	Logging  LoggingConfig  `json:"logging"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
	CORSOrigins     []string      `json:"cors_origins"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
}

// GatewayConfig configures the WhatsApp gateway client
type GatewayConfig struct {
	BaseURL  string        `json:"base_url"`
	Instance string        `json:"instance"`
	APIKey   string        `json:"api_key"`
	Timeout  time.Duration `json:"timeout"`
}

// QuotaConfig configures the plan-limit service client
type QuotaConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
	// Disabled skips quota checks entirely (single-tenant deployments)
	Disabled bool `json:"disabled"`
}

// EngineConfig tunes the campaign delivery engine
type EngineConfig struct {
	LockTTL            time.Duration `json:"lock_ttl"`
	LockStaleAfter     time.Duration `json:"lock_stale_after"`
	LockAcquireTimeout time.Duration `json:"lock_acquire_timeout"`
	MaxSendRetries     int           `json:"max_send_retries"`
	RetryBaseDelay     time.Duration `json:"retry_base_delay"`
	QuotaDeniedPause   time.Duration `json:"quota_denied_pause"`
	DefaultCountryCode string        `json:"default_country_code"`
}

type LoggingConfig struct {
	Dir        string `json:"dir"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// LoadProductionConfig loads the configuration from the environment,
// seeding it from a .env file when one exists
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "cortexx"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
			CORSOrigins:     strings.Split(getEnvString("SERVER_CORS_ORIGINS", "*"), ","),
		},
		Redis: RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnvString("REDIS_PREFIX", "cortexx:"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 1*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "cortexx"),
		},
		Gateway: GatewayConfig{
			BaseURL:  getEnvString("GATEWAY_BASE_URL", ""),
			Instance: getEnvString("GATEWAY_INSTANCE", ""),
			APIKey:   getEnvString("GATEWAY_API_KEY", ""),
			Timeout:  getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
		},
		Quota: QuotaConfig{
			BaseURL:  getEnvString("QUOTA_BASE_URL", ""),
			APIKey:   getEnvString("QUOTA_API_KEY", ""),
			Timeout:  getEnvDuration("QUOTA_TIMEOUT", 10*time.Second),
			Disabled: getEnvBool("QUOTA_DISABLED", false),
		},
		Engine: EngineConfig{
			LockTTL:            getEnvDuration("ENGINE_LOCK_TTL", 5*time.Minute),
			LockStaleAfter:     getEnvDuration("ENGINE_LOCK_STALE_AFTER", 10*time.Minute),
			LockAcquireTimeout: getEnvDuration("ENGINE_LOCK_ACQUIRE_TIMEOUT", 2*time.Second),
			MaxSendRetries:     getEnvInt("ENGINE_MAX_SEND_RETRIES", 3),
			RetryBaseDelay:     getEnvDuration("ENGINE_RETRY_BASE_DELAY", 2*time.Second),
			QuotaDeniedPause:   getEnvDuration("ENGINE_QUOTA_DENIED_PAUSE", 30*time.Second),
			DefaultCountryCode: getEnvString("ENGINE_DEFAULT_COUNTRY_CODE", "55"),
		},
		Logging: LoggingConfig{
			Dir:        getEnvString("LOG_DIR", "data"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateProductionConfig checks required settings and sane bounds
func ValidateProductionConfig(cfg *ProductionConfig) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if cfg.Engine.LockTTL <= 0 || cfg.Engine.LockStaleAfter <= 0 {
		return fmt.Errorf("engine lock durations must be positive")
	}
	if cfg.Engine.LockStaleAfter < cfg.Engine.LockTTL {
		return fmt.Errorf("ENGINE_LOCK_STALE_AFTER must not be shorter than ENGINE_LOCK_TTL")
	}
	if cfg.Engine.MaxSendRetries < 0 {
		return fmt.Errorf("ENGINE_MAX_SEND_RETRIES must not be negative")
	}
	return nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

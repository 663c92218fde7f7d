package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tulisin/db"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type (
	Config struct {
		Env string
		HTTP
		Database db.Config
		Auth
		Log
		RateLimit
	}

	HTTP struct {
		Port            int
		Host            string
		ShutdownTimeout time.Duration
		// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
		// Only enable it behind a proxy that overwrites those headers.
		TrustProxy bool
	}

	Auth struct {
		JWTSecret  string
		JWTExpiry  time.Duration
		BcryptCost int
	}

	Log struct {
		Level string
		File  string
	}

	// RateLimit applies per client IP to the login and register endpoints.
	RateLimit struct {
		RPS   float64
		Burst int
	}
)

// Debug reports whether unexpected errors may be shown to clients.
func (c *Config) Debug() bool {
	return c.Env == EnvDevelopment
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing file is fine
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("port", 3000)
	v.SetDefault("host", "")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("trust_proxy", false)

	v.SetDefault("db_driver", db.DriverMySQL)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 3306)
	v.SetDefault("db_name", "tulisin_db")
	v.SetDefault("db_user", "root")
	v.SetDefault("db_password", "")
	v.SetDefault("db_path", "./tulisin.db")
	v.SetDefault("db_pool_size", 20)
	v.SetDefault("db_idle_timeout", 30000)      // ms
	v.SetDefault("db_connection_timeout", 2000) // ms

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expires_in", "7d")
	v.SetDefault("bcrypt_salt_rounds", 12)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetDefault("rate_limit_rps", 1.0)
	v.SetDefault("rate_limit_burst", 10)

	expiry, err := ParseExpiry(v.GetString("JWT_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}

	cfg := &Config{
		Env: strings.ToLower(v.GetString("APP_ENV")),
		HTTP: HTTP{
			Port:            v.GetInt("PORT"),
			Host:            v.GetString("HOST"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
			TrustProxy:      v.GetBool("TRUST_PROXY"),
		},
		Database: db.Config{
			Driver:         v.GetString("DB_DRIVER"),
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			Name:           v.GetString("DB_NAME"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			Path:           v.GetString("DB_PATH"),
			MaxConns:       v.GetInt("DB_POOL_SIZE"),
			IdleTimeout:    time.Duration(v.GetInt("DB_IDLE_TIMEOUT")) * time.Millisecond,
			ConnectTimeout: time.Duration(v.GetInt("DB_CONNECTION_TIMEOUT")) * time.Millisecond,
		},
		Auth: Auth{
			JWTSecret:  v.GetString("JWT_SECRET"),
			JWTExpiry:  expiry,
			BcryptCost: v.GetInt("BCRYPT_SALT_ROUNDS"),
		},
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
			File:  v.GetString("LOG_FILE"),
		},
		RateLimit: RateLimit{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// devSecret is only accepted when APP_ENV=development.
const devSecret = "development-secret-change-me"

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if c.Env != EnvDevelopment {
			return errors.New("JWT_SECRET must be set")
		}
		c.JWTSecret = devSecret
	}
	if c.Database.Driver != db.DriverMySQL && c.Database.Driver != db.DriverSQLite {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// ParseExpiry accepts Go durations ("90m", "168h") as well as whole days ("7d").
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %s", s)
	}
	return d, nil
}

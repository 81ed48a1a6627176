package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8000"`
	DatabaseDriver          string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL             string `env:"DATABASE_URL" envDefault:"file:./data/enroll.db?_pragma=busy_timeout(5000)"`
	RedisURL                string `env:"REDIS_URL"`
	NaverCloudAccessKey     string `env:"NAVER_CLOUD_ACCESS_KEY"`
	NaverCloudSecretKey     string `env:"NAVER_CLOUD_SECRET_KEY"`
	NaverCloudSMSServiceID  string `env:"NAVER_CLOUD_SMS_SERVICE_ID"`
	SMSSenderPhone          string `env:"PHONE_NUMBER_SMS_SENDER"`
	SENSBaseURL             string `env:"SENS_BASE_URL" envDefault:"https://sens.apigw.ntruss.com"`
	AdminUsername           string `env:"ADMIN_USERNAME"`
	AdminPasswordHash       string `env:"ADMIN_PASSWORD_HASH"`
	StaticDir               string `env:"STATIC_DIR" envDefault:"./web"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile                 string `env:"LOG_FILE"`
	RegisterRateLimitPerMin int    `env:"REGISTER_RATE_LIMIT_PER_MIN" envDefault:"30"`
	NotifyWorkers           int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueueSize         int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"64"`
}

// SMSConfig holds the Naver Cloud SENS credentials. The transport is usable
// only when every field is present.
type SMSConfig struct {
	BaseURL     string
	AccessKey   string
	SecretKey   string
	ServiceID   string
	SenderPhone string
}

func (s SMSConfig) Enabled() bool {
	return s.AccessKey != "" && s.SecretKey != "" && s.ServiceID != "" && s.SenderPhone != ""
}

func (s SMSConfig) partial() bool {
	return !s.Enabled() && (s.AccessKey != "" || s.SecretKey != "" || s.ServiceID != "" || s.SenderPhone != "")
}

func (c *Config) SMS() SMSConfig {
	return SMSConfig{
		BaseURL:     c.SENSBaseURL,
		AccessKey:   c.NaverCloudAccessKey,
		SecretKey:   c.NaverCloudSecretKey,
		ServiceID:   c.NaverCloudSMSServiceID,
		SenderPhone: c.SMSSenderPhone,
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AdminAuthEnabled reports whether admin routes require basic auth.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminPasswordHash != ""
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver)
	}

	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
		if c.AdminUsername == "" {
			return fmt.Errorf("ADMIN_USERNAME is required when ADMIN_PASSWORD_HASH is set")
		}
	}

	if c.RegisterRateLimitPerMin <= 0 {
		return fmt.Errorf("REGISTER_RATE_LIMIT_PER_MIN must be positive")
	}
	if c.NotifyWorkers <= 0 || c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}

	if c.SMS().partial() {
		log.Warn().Msg("SMS transport is partially configured: notifications disabled until all four NAVER_CLOUD/PHONE_NUMBER variables are set")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

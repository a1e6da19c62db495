package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string     `yaml:"log_level"`
	DB        *Postgres  `yaml:"database"`
	RMQ       *RabbitMQ  `yaml:"rabbitmq"`
	Redis     *Redis     `yaml:"redis"`
	SMTP      *SMTP      `yaml:"smtp"`
	Auth      *Auth      `yaml:"auth"`
	Tracking  *Tracking  `yaml:"tracking"`
	Telemetry *Telemetry `yaml:"telemetry"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN builds the pgx connection string.
func (p *Postgres) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
	)
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

func (r *RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s", r.User, r.Password, r.Host, r.Port, r.VHost)
}

type Redis struct {
	URL string `yaml:"url"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type Auth struct {
	// AdminEmail identifies the staff account. It skips email verification
	// and is the only account allowed on /admin routes.
	AdminEmail string        `yaml:"admin_email"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	// PublicURL is the storefront base URL used in emailed links.
	PublicURL string `yaml:"public_url"`
}

type Tracking struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	PrepDuration time.Duration `yaml:"prep_duration"`
}

type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// LoadConfig reads the yaml file on top of the environment defaults.
// A missing file is not an error: the environment alone is used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := LoadDotEnv()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

func LoadDotEnv() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		DB: &Postgres{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "admin"),
			Password: getEnv("POSTGRES_PASSWORD", "admin"),
			Database: getEnv("POSTGRES_DBNAME", "restaurant_db"),
		},
		RMQ: &RabbitMQ{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT_APP", "5672"),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", ""),
		},
		Redis: &Redis{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		SMTP: &SMTP{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "orders@restaurant.local"),
		},
		Auth: &Auth{
			AdminEmail: getEnv("ADMIN_EMAIL", "admin@restaurant.local"),
			SessionTTL: 24 * time.Hour,
			TokenTTL:   time.Hour,
			PublicURL:  getEnv("PUBLIC_URL", "http://localhost:3000"),
		},
		Tracking: &Tracking{
			TickInterval: 10 * time.Second,
			PrepDuration: 5 * time.Minute,
		},
		Telemetry: &Telemetry{
			Enabled:     getEnv("TELEMETRY_ENABLED", "") == "true",
			ServiceName: getEnv("OTEL_SERVICE_NAME", "restaurant"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	RabbitMQ RabbitMQConfig
	Search   SearchConfig
	Alerts   AlertsConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	Schema       string
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify identity tokens
type JWTConfig struct {
	Secret string
}

// RabbitMQConfig configures the notification broker. An empty URL disables it.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	PoolSize int
}

type SearchConfig struct {
	DefaultRadiusKm    float64
	MaxResults         int
	RateLimitPerMinute int
}

type AlertsConfig struct {
	ExpiryWindowDays int
	SweepTimeout     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	// .env values populate the process environment; real env vars win
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RABBITMQ_EXCHANGE", "geopharm.events")
	viper.SetDefault("RABBITMQ_POOL_SIZE", 4)
	viper.SetDefault("SEARCH_DEFAULT_RADIUS_KM", 50.0)
	viper.SetDefault("SEARCH_MAX_RESULTS", 500)
	viper.SetDefault("SEARCH_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("ALERTS_EXPIRY_WINDOW_DAYS", 30)
	viper.SetDefault("ALERTS_SWEEP_TIMEOUT", "5m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	return &Config{
		Server: ServerConfig{
			Port:     viper.GetString("SERVER_PORT"),
			Env:      viper.GetString("SERVER_ENV"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:         viper.GetString("DB_HOST"),
			Port:         viper.GetString("DB_PORT"),
			User:         viper.GetString("DB_USER"),
			Password:     viper.GetString("DB_PASSWORD"),
			Database:     viper.GetString("DB_DATABASE"),
			Schema:       viper.GetString("DB_SCHEMA"),
			MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
			PoolSize: viper.GetInt("RABBITMQ_POOL_SIZE"),
		},
		Search: SearchConfig{
			DefaultRadiusKm:    viper.GetFloat64("SEARCH_DEFAULT_RADIUS_KM"),
			MaxResults:         viper.GetInt("SEARCH_MAX_RESULTS"),
			RateLimitPerMinute: viper.GetInt("SEARCH_RATE_LIMIT_PER_MINUTE"),
		},
		Alerts: AlertsConfig{
			ExpiryWindowDays: viper.GetInt("ALERTS_EXPIRY_WINDOW_DAYS"),
			SweepTimeout:     viper.GetDuration("ALERTS_SWEEP_TIMEOUT"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports settings the API cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Search.MaxResults < 0 {
		errs = append(errs, errors.New("SEARCH_MAX_RESULTS cannot be negative"))
	}
	if c.Search.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("SEARCH_RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if c.Alerts.ExpiryWindowDays < 0 {
		errs = append(errs, errors.New("ALERTS_EXPIRY_WINDOW_DAYS cannot be negative"))
	}
	return errors.Join(errs...)
}

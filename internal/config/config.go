package config

import (
	"errors"
	"fmt"
	"os"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// app config, loaded from environment variables
type Config struct {
	Port         string
	StoreBackend string
	RedisAddr    string

	PostgresHost     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresPort     string
	PostgresSSLMode  string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		StoreBackend: getEnvOrDefault("STORE_BACKEND", BackendRedis),
		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		PostgresHost:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresUser:     getEnvOrDefault("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnvOrDefault("POSTGRES_DB", "codeshare"),
		PostgresPort:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.StoreBackend != BackendRedis && config.StoreBackend != BackendPostgres {
		return errors.New("unsupported store backend: " + config.StoreBackend +
			". Supported: " + BackendRedis + ", " + BackendPostgres)
	}
	return nil
}

// PostgresDSN assembles the gorm/postgres connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

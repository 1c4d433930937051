package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type MongoConfig struct {
	URI      string
	Database string
}

type AuthConfig struct {
	// SecretKey signs session tokens. Changing it invalidates every token
	// in circulation.
	SecretKey string

	// Salt and HashIterations parameterize the password digest. Both are
	// process-wide; changing either invalidates every stored hash.
	Salt           string
	HashIterations int

	SessionHorizon time.Duration
	RenewalWindow  time.Duration
}

type RepositoriesConfig struct {
	Mongo MongoConfig
}

type Config struct {
	Repositories RepositoriesConfig
	Auth         AuthConfig
	ServerPort   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Mongo: MongoConfig{
				URI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
				Database: getEnvOrDefault("MONGO_DB", "BTDT"),
			},
		},
		Auth: AuthConfig{
			SecretKey:      os.Getenv("KEY"),
			Salt:           os.Getenv("SALT"),
			HashIterations: getEnvIntOrDefault("ITERS", 600_000),
			SessionHorizon: getEnvDurationOrDefault("SESSION_HORIZON", 30*24*time.Hour),
			RenewalWindow:  getEnvDurationOrDefault("SESSION_RENEWAL_WINDOW", 7*24*time.Hour),
		},
		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	if cfg.Auth.SecretKey == "" {
		return nil, fmt.Errorf("KEY environment variable is required")
	}
	if cfg.Auth.Salt == "" {
		return nil, fmt.Errorf("SALT environment variable is required")
	}
	if cfg.Auth.HashIterations < 1 {
		return nil, fmt.Errorf("ITERS must be a positive integer")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

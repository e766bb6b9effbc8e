package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP server configuration
	ListenAddr string

	// Redis configuration; empty disables the report cache
	RedisAddr string

	// Platform fee charged on collected interest, in basis points
	PlatformFeeBps int64

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		// 2.5% of collected interest by default
		PlatformFeeBps: 250,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}

	if fee := os.Getenv("PLATFORM_FEE_BPS"); fee != "" {
		parsedFee, err := strconv.ParseInt(fee, 10, 64)
		if err != nil || parsedFee < 0 {
			return nil, fmt.Errorf("invalid PLATFORM_FEE_BPS: %s", fee)
		}
		config.PlatformFeeBps = parsedFee
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

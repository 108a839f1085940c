package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Application settings
	AppEnv        string
	AppPort       int
	FrontendURL   string
	RunMigrations bool

	// Database settings
	DatabaseURL                string
	DatabaseMaxConnections     int
	DatabaseMaxIdleConnections int
	DatabaseConnectionLifetime time.Duration

	// CORS settings
	CORSAllowedOrigins   string
	CORSAllowCredentials bool

	// Logging
	LogLevel  string
	LogFormat string

	// NATS settings
	NATSURL string

	// Query/compute limits
	MaxQueryRecords      int
	QueryTimeout         int
	MaxConcurrentQueries int

	// Simulator / planning horizon knobs (spec §6.4)
	VelocityLookbackDays     int
	OrderDeadlineDays        int
	PlanningHorizonMonths    int
	WarehouseCapacityPallets float64
	DefaultMinCoverageDays   int
	CoverageGapDoubleCount   bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		AppPort:     getEnvAsInt("APP_PORT", 8080),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 25),
		DatabaseMaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		DatabaseConnectionLifetime: getEnvAsDuration("DATABASE_CONNECTION_LIFETIME", 5*time.Minute),

		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		CORSAllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		MaxQueryRecords:      getEnvAsInt("MAX_QUERY_RECORDS", 100000),
		QueryTimeout:         getEnvAsInt("QUERY_TIMEOUT", 300),
		MaxConcurrentQueries: getEnvAsInt("MAX_CONCURRENT_QUERIES", 5),

		VelocityLookbackDays:     getEnvAsInt("VELOCITY_LOOKBACK_DAYS", 90),
		OrderDeadlineDays:        getEnvAsInt("ORDER_DEADLINE_DAYS", 30),
		PlanningHorizonMonths:    getEnvAsInt("PLANNING_HORIZON_MONTHS", 3),
		WarehouseCapacityPallets: getEnvAsFloat("WAREHOUSE_CAPACITY_PALLETS", 740),
		DefaultMinCoverageDays:   getEnvAsInt("DEFAULT_MIN_COVERAGE_DAYS", 45),
		CoverageGapDoubleCount:   getEnvAsBool("COVERAGE_GAP_DOUBLE_COUNT", false),

		RunMigrations: getEnvAsBool("RUN_MIGRATIONS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_QUERIES must be positive")
	}
	if c.PlanningHorizonMonths <= 0 {
		return fmt.Errorf("PLANNING_HORIZON_MONTHS must be positive")
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

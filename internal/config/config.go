package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL    string
	DBQueryTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AdminJWTSecret string

	// Clinic identity defaults; full business config lives in the clinic store.
	ClinicID      string
	ClinicName    string
	AssistantName string
	Timezone      string

	// Consultation fee recorded as expected revenue on new bookings.
	ConsultationFeeCents int
	Currency             string

	ToolRetryMaxAttempts int
	ToolRetryBaseDelay   time.Duration

	SearchBaseURL   string
	SearchTimeout   time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBQueryTimeout: getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		ClinicID:      getEnv("CLINIC_ID", "romi-dental"),
		ClinicName:    getEnv("CLINIC_NAME", "Romi Dental Clinic"),
		AssistantName: getEnv("ASSISTANT_NAME", "Elo"),
		Timezone:      getEnv("CLINIC_TZ", "Europe/Tirane"),

		ConsultationFeeCents: getEnvAsInt("CONSULTATION_FEE_CENTS", 5000),
		Currency:             getEnv("CURRENCY", "EUR"),

		ToolRetryMaxAttempts: getEnvAsInt("TOOL_RETRY_MAX_ATTEMPTS", 3),
		ToolRetryBaseDelay:   getEnvAsDuration("TOOL_RETRY_BASE_DELAY", 200*time.Millisecond),

		SearchBaseURL:   getEnv("SEARCH_BASE_URL", "https://html.duckduckgo.com/html/"),
		SearchTimeout:   getEnvAsDuration("SEARCH_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	// Intent oracle
	OpenAIAPIKey string
	OpenAIModel  string

	// Specialty matching
	MatchThreshold  float64
	MatchSuggestion int

	// Availability and recommendations
	AvailabilityHorizonDays int
	RecommendWindowDays     int
	RecommendMaxResults     int

	// Booking
	BookingTimeout time.Duration

	// Chat history
	HistoryTTL         time.Duration
	HistoryRecentTurns int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		MatchThreshold:  getEnvAsFloat("MATCH_THRESHOLD", 0.6),
		MatchSuggestion: getEnvAsInt("MATCH_SUGGESTIONS", 3),

		AvailabilityHorizonDays: getEnvAsInt("AVAILABILITY_HORIZON_DAYS", 14),
		RecommendWindowDays:     getEnvAsInt("RECOMMEND_WINDOW_DAYS", 7),
		RecommendMaxResults:     getEnvAsInt("RECOMMEND_MAX_RESULTS", 3),

		BookingTimeout: getEnvAsDuration("BOOKING_TIMEOUT", 3*time.Second),

		HistoryTTL:         getEnvAsDuration("HISTORY_TTL", 24*time.Hour),
		HistoryRecentTurns: getEnvAsInt("HISTORY_RECENT_TURNS", 20),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

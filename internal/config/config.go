package config

import (
	"os"
	"strconv"
)

// Analyzer provider names
const (
	AnalyzerPlaceholder = "placeholder"
	AnalyzerOpenAI      = "openai"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string

	// Analyzer configuration — which daily-analysis backend to use
	Analyzer     string // "placeholder" or "openai"
	OpenAIAPIKey string
	OpenAIModel  string
	OpenAIRPM    int // client-side requests-per-minute cap for the OpenAI analyzer

	// Scheduled rebuild configuration (empty = on-demand only)
	RebuildCron string

	Environment string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		MongoURI: getEnv("MONGODB_URI", ""),

		Analyzer:     getEnv("ANALYZER", AnalyzerPlaceholder),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIRPM:    getIntEnv("OPENAI_RPM", 30),

		RebuildCron: getEnv("REBUILD_CRON", ""),

		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

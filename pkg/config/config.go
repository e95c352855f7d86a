package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment         string
	LogLevel            string
	Port                string
	OpenAIAPIKey        string
	AnthropicAPIKey     string
	ExtractionBackends  string // comma-separated provider order, e.g. "openai,anthropic"
	ExtractionTimeout   time.Duration
	EmbeddingProvider   string // "openai", "mock", or "" to disable
	ConfidenceThreshold float64
	SimilarityThreshold float64
	FusionStrategy      string
	FusionSchedule      string // cron expression; empty disables scheduled fusion
	OntologyPath        string
	DatabasePath        string // sqlite file; empty disables persistence
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnv("PORT", "8080"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		ExtractionBackends:  getEnv("EXTRACTION_BACKENDS", ""),
		ExtractionTimeout:   time.Duration(getEnvAsInt("EXTRACTION_TIMEOUT_SECONDS", 60)) * time.Second,
		EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", ""),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.85),
		FusionStrategy:      getEnv("FUSION_STRATEGY", "evidence_based"),
		FusionSchedule:      getEnv("FUSION_SCHEDULE", ""),
		OntologyPath:        getEnv("ONTOLOGY_PATH", ""),
		DatabasePath:        getEnv("DATABASE_PATH", ""),
	}

	if config.ConfidenceThreshold < 0 || config.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %v", config.ConfidenceThreshold)
	}
	if config.SimilarityThreshold < 0 || config.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in [0,1], got %v", config.SimilarityThreshold)
	}
	if config.EmbeddingProvider == "openai" && config.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER is openai")
	}

	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

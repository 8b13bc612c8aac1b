// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
	Timeout   time.Duration
}

type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type ScrapeConfig struct {
	Timeout    time.Duration
	MaxBody    int64
	MaxTextLen int
	UserAgent  string
	MinTextLen int
}

type Config struct {
	Addr string

	StoreBackend string
	PostgresDSN  string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	Embeddings EmbeddingsConfig
	LLM        LLMConfig
	Scrape     ScrapeConfig

	ChunkSize    int
	ChunkOverlap int
	DefaultTopK  int

	MaxContextChunks int
	MaxContextLength int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:          getEnv("PAGEQUERY_ADDR", ":8000"),
		StoreBackend:  getEnv("VECTOR_STORE", StoreMemory),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/pagequery?sslmode=disable"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
			Timeout:   getEnvDuration("EMBEDDINGS_TIMEOUT_SECS", 30*time.Second),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvDuration("LLM_TIMEOUT_SECS", 60*time.Second),
		},
		Scrape: ScrapeConfig{
			Timeout:    getEnvDuration("SCRAPE_TIMEOUT_SECS", 30*time.Second),
			MaxBody:    int64(getEnvInt("SCRAPE_MAX_BODY", 2<<20)),
			MaxTextLen: getEnvInt("SCRAPE_MAX_TEXT_LEN", 100000),
			UserAgent:  getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
			MinTextLen: getEnvInt("SCRAPE_MIN_TEXT_LEN", 20),
		},
		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		DefaultTopK:      getEnvInt("TOP_K_RESULTS", 5),
		MaxContextChunks: getEnvInt("MAX_CONTEXT_CHUNKS", 5),
		MaxContextLength: getEnvInt("MAX_CONTEXT_LENGTH", 6000),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

package config

import (
	"log"
	"os"
	"strconv"

	"doc-chat-be/internal/apperr"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type DatabaseConfig struct {
	// Connection is optional. When set, chunk vectors are stored in
	// Postgres/pgvector instead of the in-memory index.
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "gemini"
	OllamaBaseURL     string
	OllamaModel       string
	GeminiApiKey      string
	LLMProvider       string // "ollama"
	LLMModel          string // e.g. "llama3", "qwen2.5"
}

type RetrievalConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	FusionAlpha      float64
	OverfetchFactor  int
	CacheCapacity    int
	MaxContextLength int
}

type SessionConfig struct {
	MaxFilesPerSession     int
	MaxFileSizeMB          int
	MaxQuestionsPerSession int
	TimeoutHours           int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/rag.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GeminiApiKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Retrieval: RetrievalConfig{
			ChunkSize:        getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:     getEnvAsInt("CHUNK_OVERLAP", 200),
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 5),
			FusionAlpha:      getEnvAsFloat("FUSION_ALPHA", 0.7),
			OverfetchFactor:  getEnvAsInt("OVERFETCH_FACTOR", 3),
			CacheCapacity:    getEnvAsInt("CACHE_CAPACITY", 1024),
			MaxContextLength: getEnvAsInt("MAX_CONTEXT_LENGTH", 4000),
		},
		Session: SessionConfig{
			MaxFilesPerSession:     getEnvAsInt("MAX_FILES_PER_SESSION", 4),
			MaxFileSizeMB:          getEnvAsInt("MAX_FILE_SIZE_MB", 20),
			MaxQuestionsPerSession: getEnvAsInt("MAX_QUESTIONS_PER_SESSION", 50),
			TimeoutHours:           getEnvAsInt("SESSION_TIMEOUT_HOURS", 24),
		},
	}
}

// Validate checks configuration invariants once at startup.
func (c *Config) Validate() error {
	if c.Retrieval.ChunkSize <= 0 {
		return apperr.Newf(apperr.ErrInvalidConfiguration, "CHUNK_SIZE must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 {
		return apperr.Newf(apperr.ErrInvalidConfiguration, "CHUNK_OVERLAP must not be negative, got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return apperr.Newf(apperr.ErrInvalidConfiguration,
			"CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if c.Retrieval.FusionAlpha < 0 || c.Retrieval.FusionAlpha > 1 {
		return apperr.Newf(apperr.ErrInvalidConfiguration, "FUSION_ALPHA must be in [0,1], got %g", c.Retrieval.FusionAlpha)
	}
	if c.Retrieval.OverfetchFactor < 2 {
		return apperr.Newf(apperr.ErrInvalidConfiguration, "OVERFETCH_FACTOR must be at least 2, got %d", c.Retrieval.OverfetchFactor)
	}
	if c.Retrieval.CacheCapacity <= 0 {
		return apperr.Newf(apperr.ErrInvalidConfiguration, "CACHE_CAPACITY must be positive, got %d", c.Retrieval.CacheCapacity)
	}
	if c.Session.MaxFilesPerSession <= 0 || c.Session.MaxQuestionsPerSession <= 0 {
		return apperr.New(apperr.ErrInvalidConfiguration, "session quotas must be positive")
	}
	if c.Session.TimeoutHours <= 0 {
		return apperr.Newf(apperr.ErrInvalidConfiguration, "SESSION_TIMEOUT_HOURS must be positive, got %d", c.Session.TimeoutHours)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

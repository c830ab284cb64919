package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	MongoURI string
	DBName   string

	// Redis Configuration (asynq + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini
	GeminiAPIKey          string
	GeminiModel           string
	GeminiTier            string
	GoogleEmbeddingsModel string
	VectorDimensions      int
	EmbedConcurrency      int

	// Retrieval
	MaxChunkSize int
	TopK         int

	// Uploads
	FileStorageDir string
	MaxFileSize    int64
	MaxUploadFiles int

	RateLimitReqs   int
	RateLimitWindow int

	// Optional bearer auth; disabled when empty
	JWTSecret string

	// Telemetry
	OTLPEndpoint string
	ServiceName  string

	// Worker
	WorkerConcurrency    int
	StaleProcessingAfter time.Duration
	SweepInterval        time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/contract_qa"),
		DBName:   getEnv("DB_NAME", "contract_qa"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "embedding-001"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),
		EmbedConcurrency:      getEnvInt("EMBED_CONCURRENCY", 4),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		TopK:         getEnvInt("RAG_TOP_K", 5),

		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		MaxUploadFiles: getEnvInt("MAX_UPLOAD_FILES", 10),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		JWTSecret: getEnv("JWT_SECRET", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "contract-qa-platform"),

		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 10),
		StaleProcessingAfter: getEnvDuration("STALE_PROCESSING_AFTER", 30*time.Minute),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges. A missing GEMINI_API_KEY is not an error:
// embeddings then fall back to zero vectors and generation endpoints fail.
func (c *Config) Validate() error {
	if c.VectorDimensions != 768 {
		return fmt.Errorf("VECTOR_DIM must be 768, got %d", c.VectorDimensions)
	}
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("RAG_TOP_K must be positive")
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("EMBED_CONCURRENCY must be positive")
	}
	if c.MaxUploadFiles <= 0 {
		return fmt.Errorf("MAX_UPLOAD_FILES must be positive")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig
	Auth        AuthConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Rag         RagConfig
	Ai          AIConfig
	VectorStore VectorStoreConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
	OtelEndpoint       string
}

type AuthConfig struct {
	JwtSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type StorageConfig struct {
	RootDir        string
	MaxUploadBytes int64
	MaxFiles       int
}

// RagConfig holds the pipeline tuning knobs. It can be overlaid from a YAML file.
type RagConfig struct {
	ChunkSize          int           `yaml:"chunk_size"`
	ChunkOverlap       int           `yaml:"chunk_overlap"`
	DefaultTopK        int           `yaml:"default_top_k"`
	MaxTopK            int           `yaml:"max_top_k"`
	FetchKMultiplier   int           `yaml:"fetch_k_multiplier"`
	FetchKFloor        int           `yaml:"fetch_k_floor"`
	DefaultTemperature float64       `yaml:"default_temperature"`
	UpstreamTimeout    time.Duration `yaml:"upstream_timeout"`
	FilterInactive     bool          `yaml:"filter_inactive"`
	EmbedConcurrency   int           `yaml:"embed_concurrency"`
}

type AIConfig struct {
	EmbeddingProvider    string // "huggingface", "ollama", "gemini" or "jina"
	LocalEmbeddingModel  string
	ModelDir             string
	OllamaBaseURL        string
	OllamaEmbeddingModel string
	GeminiAPIKey         string
	GeminiEmbeddingModel string
	GeminiRatePerSecond  float64
	JinaAPIKey           string
	JinaEmbeddingModel   string
	EmbeddingMaxTries    int
	LLMProvider          string // "gemini", "ollama", "huggingface" or "none"
	LLMModel             string
	HuggingFaceAPIKey    string
	QueryCacheTTL        time.Duration
}

type VectorStoreConfig struct {
	Backend    string // "pgvector" or "chromem"
	ChromemDir string
	Collection string
	Dimension  int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Auth: AuthConfig{
			JwtSecret:       getEnv("JWT_SECRET", "default_secret"),
			AccessTokenTTL:  getEnvAsDuration("JWT_ACCESS_TTL", 30*time.Minute),
			RefreshTokenTTL: getEnvAsDuration("JWT_REFRESH_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Storage: StorageConfig{
			RootDir:        getEnv("MEDIA_ROOT", "./media"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 20)) * 1024 * 1024,
			MaxFiles:       getEnvAsInt("MAX_UPLOAD_FILES", 10),
		},
		Rag: RagConfig{
			ChunkSize:          getEnvAsInt("RAG_CHUNK_SIZE", 800),
			ChunkOverlap:       getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
			DefaultTopK:        getEnvAsInt("RAG_DEFAULT_TOP_K", 4),
			MaxTopK:            getEnvAsInt("RAG_MAX_TOP_K", 50),
			FetchKMultiplier:   getEnvAsInt("RAG_FETCH_K_MULTIPLIER", 5),
			FetchKFloor:        getEnvAsInt("RAG_FETCH_K", 20),
			DefaultTemperature: getEnvAsFloat("RAG_DEFAULT_TEMPERATURE", 0.7),
			UpstreamTimeout:    getEnvAsDuration("RAG_UPSTREAM_TIMEOUT", 60*time.Second),
			FilterInactive:     getEnvAsBool("RAG_FILTER_INACTIVE", true),
			EmbedConcurrency:   getEnvAsInt("RAG_EMBED_CONCURRENCY", 4),
		},
		Ai: AIConfig{
			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "huggingface"),
			LocalEmbeddingModel:  getEnv("RAG_HF_MODEL_NAME", "sentence-transformers/all-MiniLM-L6-v2"),
			ModelDir:             getEnv("MODEL_DIR", "./models"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GeminiAPIKey:         firstNonEmpty(getEnv("GEMINI_API_KEY", ""), getEnv("GOOGLE_API_KEY", "")),
			GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			GeminiRatePerSecond:  getEnvAsFloat("GEMINI_RATE_PER_SECOND", 10),
			JinaAPIKey:           getEnv("JINA_API_KEY", ""),
			JinaEmbeddingModel:   getEnv("JINA_EMBEDDING_MODEL", "jina-embeddings-v3"),
			EmbeddingMaxTries:    getEnvAsInt("EMBEDDING_MAX_TRIES", 3),
			LLMProvider:          getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:             getEnv("RAG_LLM_MODEL", "gemini-2.5-flash"),
			HuggingFaceAPIKey:    getEnv("HUGGINGFACE_API_KEY", ""),
			QueryCacheTTL:        getEnvAsDuration("QUERY_CACHE_TTL", 10*time.Minute),
		},
		VectorStore: VectorStoreConfig{
			Backend:    getEnv("VECTOR_STORE", "pgvector"),
			ChromemDir: getEnv("CHROMA_PERSIST_DIR", "./chroma"),
			Collection: getEnv("VECTOR_COLLECTION", "documents"),
			Dimension:  getEnvAsInt("EMBEDDING_DIMENSION", 384),
		},
	}

	overlay := getEnv("RAG_CONFIG_FILE", "rag.yaml")
	if err := cfg.ApplyRagOverlay(overlay); err != nil {
		log.Fatalf("[FATAL] Invalid RAG overlay %s: %v", overlay, err)
	}
	if err := cfg.Rag.Validate(); err != nil {
		log.Fatalf("[FATAL] Invalid RAG configuration: %v", err)
	}

	return cfg
}

// ApplyRagOverlay merges a YAML file over the env-derived Rag section.
// A missing file is not an error.
func (c *Config) ApplyRagOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, &c.Rag)
}

func (r RagConfig) Validate() error {
	if r.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, %d), got %d", r.ChunkSize, r.ChunkOverlap)
	}
	if r.DefaultTopK < 1 || r.MaxTopK < r.DefaultTopK {
		return fmt.Errorf("default_top_k must be in [1, max_top_k]")
	}
	if r.DefaultTemperature < 0 || r.DefaultTemperature > 2 {
		return fmt.Errorf("default_temperature must be in [0, 2]")
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Queue       QueueConfig
	Session     SessionConfig
	Pipeline    PipelineConfig
	GigaChat    GigaChatConfig
	Transcriber TranscriberConfig
	Currency    CurrencyConfig
	Embedding   EmbeddingConfig
	Gateway     GatewayConfig
	Webhook     WebhookConfig
	Logger      LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type QueueConfig struct {
	InboundConcurrency  int
	OutboundConcurrency int
	MaxRetry            int
	TaskTimeout         time.Duration
}

type SessionConfig struct {
	ContextTTL time.Duration
	PdfTTL     time.Duration
}

type PipelineConfig struct {
	ConfidenceThreshold float64
	DefaultCurrency     string
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

type TranscriberConfig struct {
	URL    string
	APIKey string
	Model  string
}

type CurrencyConfig struct {
	URL string
}

type EmbeddingConfig struct {
	URL    string
	APIKey string
	Model  string
}

// GatewayConfig points at the conversational-channel gateway that delivers
// replies back to the user.
type GatewayConfig struct {
	URL   string
	Token string
}

type WebhookConfig struct {
	Token string
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// If no .env file was found, continue with plain environment
	// variables (useful for Docker/K8s).

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	dbMaxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	inboundConcurrency, _ := strconv.Atoi(getEnv("QUEUE_INBOUND_CONCURRENCY", "4"))
	outboundConcurrency, _ := strconv.Atoi(getEnv("QUEUE_OUTBOUND_CONCURRENCY", "5"))
	maxRetry, _ := strconv.Atoi(getEnv("QUEUE_MAX_RETRY", "3"))
	taskTimeout, _ := strconv.Atoi(getEnv("QUEUE_TASK_TIMEOUT", "180"))
	contextTTL, _ := strconv.Atoi(getEnv("SESSION_CONTEXT_TTL_HOURS", "24"))
	pdfTTL, _ := strconv.Atoi(getEnv("SESSION_PDF_TTL_MINUTES", "5"))
	confidenceThreshold, _ := strconv.ParseFloat(getEnv("CONFIDENCE_THRESHOLD", "0.8"), 64)
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "true") == "true"

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "finbot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Queue: QueueConfig{
			InboundConcurrency:  inboundConcurrency,
			OutboundConcurrency: outboundConcurrency,
			MaxRetry:            maxRetry,
			TaskTimeout:         time.Duration(taskTimeout) * time.Second,
		},
		Session: SessionConfig{
			ContextTTL: time.Duration(contextTTL) * time.Hour,
			PdfTTL:     time.Duration(pdfTTL) * time.Minute,
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: confidenceThreshold,
			DefaultCurrency:     getEnv("DEFAULT_CURRENCY", "BRL"),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: insecureSkipVerify,
		},
		Transcriber: TranscriberConfig{
			URL:    getEnv("TRANSCRIBER_URL", ""),
			APIKey: getEnv("TRANSCRIBER_API_KEY", ""),
			Model:  getEnv("TRANSCRIBER_MODEL", "whisper-1"),
		},
		Currency: CurrencyConfig{
			URL: getEnv("CURRENCY_API_URL", ""),
		},
		Embedding: EmbeddingConfig{
			URL:    getEnv("EMBEDDING_URL", ""),
			APIKey: getEnv("EMBEDDING_API_KEY", ""),
			Model:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Gateway: GatewayConfig{
			URL:   getEnv("GATEWAY_URL", "http://localhost:3000"),
			Token: getEnv("GATEWAY_TOKEN", ""),
		},
		Webhook: WebhookConfig{
			Token: getEnv("WEBHOOK_TOKEN", ""),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

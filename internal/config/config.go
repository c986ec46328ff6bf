package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Queue / worker settings
	UseMemoryQueue       bool
	WorkerCount          int
	NegotiationQueueURL  string
	QueueReceiveWaitSecs int

	// Catalog service
	CatalogBaseURL string
	CatalogAPIKey  string
	CatalogTimeout time.Duration

	// LLM providers
	LLMProvider    string
	GeminiAPIKey   string
	GeminiModelID  string
	BedrockModelID string
	LLMTimeout     time.Duration
	LLMMaxTokens   int
	LLMTemperature float64

	// AWS (SQS queue, DynamoDB state store, Bedrock)
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	NegotiationStateTable string

	// State store selection: memory, redis or dynamo
	StateBackend  string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	StateTTL      time.Duration

	// Deal archive (Postgres)
	DatabaseURL string

	// Pricing policy
	TargetRatio        float64
	MinRatio           float64
	CounterIncrement   int64
	MaxPriceTurns      int
	CategoryRatiosJSON string

	// Idle-state eviction
	IdleEvictAfter time.Duration
	EvictInterval  time.Duration

	// Seller notifications
	SellerWebhookURL  string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SellerAlertEmail  string

	// Seller/admin endpoint auth
	AdminJWTSecret string

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables. A local .env file is
// applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		NegotiationQueueURL:  getEnv("NEGOTIATION_QUEUE_URL", ""),
		QueueReceiveWaitSecs: getEnvAsInt("QUEUE_RECEIVE_WAIT_SECONDS", 2),

		CatalogBaseURL: getEnv("CATALOG_BASE_URL", ""),
		CatalogAPIKey:  getEnv("CATALOG_API_KEY", ""),
		CatalogTimeout: getEnvAsDuration("CATALOG_TIMEOUT", 10*time.Second),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 500),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.7),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NegotiationStateTable: getEnv("NEGOTIATION_STATE_TABLE", "negotiation_state"),

		StateBackend:  strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "memory"))),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		StateTTL:      getEnvAsDuration("STATE_TTL", 72*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TargetRatio:        getEnvAsFloat("NEGOTIATION_TARGET_RATIO", 0.85),
		MinRatio:           getEnvAsFloat("NEGOTIATION_MIN_RATIO", 0.70),
		CounterIncrement:   int64(getEnvAsInt("NEGOTIATION_COUNTER_INCREMENT", 1000)),
		MaxPriceTurns:      getEnvAsInt("NEGOTIATION_MAX_PRICE_TURNS", 6),
		CategoryRatiosJSON: getEnv("NEGOTIATION_CATEGORY_RATIOS_JSON", ""),

		IdleEvictAfter: getEnvAsDuration("NEGOTIATION_IDLE_EVICT_AFTER", 48*time.Hour),
		EvictInterval:  getEnvAsDuration("NEGOTIATION_EVICT_INTERVAL", time.Hour),

		SellerWebhookURL:  getEnv("SELLER_WEBHOOK_URL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Adol Negotiator"),
		SellerAlertEmail:  getEnv("SELLER_ALERT_EMAIL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 0),
	}
}

// getEnvAsList splits a comma-separated environment variable.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

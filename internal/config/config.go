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
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Intake
	DuplicateCooldown time.Duration
	RateLimitPerSec   float64
	RateLimitBurst    int

	// Email webhook verification
	EmailWebhookSecret string
	WebhookTolerance   time.Duration

	// Lead scoring weights. Defaults follow observed marketing policy but
	// are deliberately configurable.
	ScoreEmailOpened      int
	ScoreLinkClicked      int
	ScoreQualifyingSignal int
	ScoreCorporateDomain  int
	ScoreCap              int

	// Download tokens
	DownloadTokenSecret string
	DownloadTokenTTL    time.Duration
	DownloadBucket      string
	DownloadURLExpiry   time.Duration

	// Admin auth
	AdminJWTSecret string

	// Email dispatch
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	NotifyToEmail     string
	UseMemoryQueue    bool
	EmailQueueURL     string
	WorkerCount       int

	// Redis cooldown cache (optional)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		DuplicateCooldown: getEnvAsDuration("DUPLICATE_COOLDOWN", 5*time.Minute),
		RateLimitPerSec:   getEnvAsFloat("RATE_LIMIT_PER_SEC", 2),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 10),

		EmailWebhookSecret: getEnv("EMAIL_WEBHOOK_SECRET", ""),
		WebhookTolerance:   getEnvAsDuration("EMAIL_WEBHOOK_TOLERANCE", 5*time.Minute),

		ScoreEmailOpened:      getEnvAsInt("SCORE_EMAIL_OPENED", 10),
		ScoreLinkClicked:      getEnvAsInt("SCORE_LINK_CLICKED", 20),
		ScoreQualifyingSignal: getEnvAsInt("SCORE_QUALIFYING_SIGNAL", 5),
		ScoreCorporateDomain:  getEnvAsInt("SCORE_CORPORATE_DOMAIN", 5),
		ScoreCap:              getEnvAsInt("SCORE_CAP", 100),

		DownloadTokenSecret: getEnv("DOWNLOAD_TOKEN_SECRET", ""),
		DownloadTokenTTL:    getEnvAsDuration("DOWNLOAD_TOKEN_TTL", 24*time.Hour),
		DownloadBucket:      getEnv("DOWNLOAD_BUCKET", ""),
		DownloadURLExpiry:   getEnvAsDuration("DOWNLOAD_URL_EXPIRY", 15*time.Minute),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		EmailProvider:     getEnv("EMAIL_PROVIDER", "auto"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "GLEC"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "GLEC"),
		NotifyToEmail:     getEnv("NOTIFY_TO_EMAIL", ""),
		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		EmailQueueURL:     getEnv("EMAIL_QUEUE_URL", ""),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

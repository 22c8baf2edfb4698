// Package config loads the environment-variable surface spec'd in §6 via
// viper, replacing the donor's JSON-file loader: this service's
// configuration contract is env vars, not a mounted file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AIConfig struct {
	Provider            string // "openai" | "gemini"
	APIKey              string
	BaseURL             string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
}

type RAGConfig struct {
	DefaultK          int
	DefaultMinScore   float64
	MaxContextTokens  int
	ClientSideVectorK bool
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	SweepInterval     time.Duration
	SweepTTL          time.Duration
}

type SummaryCacheConfig struct {
	TTL time.Duration
}

type EmailConfig struct {
	Provider   string // "brevo"
	APIKey     string
	BaseURL    string
	FromEmail  string
	FromName   string
	CronSecret string
	DigestCron string
}

type AuthConfig struct {
	JWTSecret          string
	ServiceToken       string
	ServiceTokenPrefix string
	BackendURL         string
}

type Config struct {
	Port              int
	DB                DatabaseConfig
	AI                AIConfig
	RAG               RAGConfig
	RateLimit         RateLimitConfig
	SummaryCache      SummaryCacheConfig
	Email             EmailConfig
	Auth              AuthConfig
	FetchPageEnabled  bool
	LogLevel          string
	CORSAllowlist     []string
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_PROVIDER", "openai")
	v.SetDefault("AI_EMBEDDING_DIMENSIONS", 1536)
	v.SetDefault("RAG_DEFAULT_K", 6)
	v.SetDefault("RAG_DEFAULT_MIN_SCORE", 0.2)
	v.SetDefault("RAG_MAX_CONTEXT_TOKENS", 2000)
	v.SetDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 30)
	v.SetDefault("RATE_LIMIT_SWEEP_INTERVAL_MINUTES", 10)
	v.SetDefault("RATE_LIMIT_SWEEP_TTL_MINUTES", 30)
	v.SetDefault("SUMMARY_CACHE_TTL_MINUTES", 60)
	v.SetDefault("FETCH_PAGE_CONTENT_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("EMAIL_PROVIDER", "brevo")
	v.SetDefault("EMAIL_DIGEST_CRON", "0 8 * * *")
	v.SetDefault("AUTH_SERVICE_TOKEN_PREFIX", "svc_")
	v.SetDefault("MAX_CONCURRENT_JOBS", 16)

	cfg := &Config{
		Port: v.GetInt("PORT"),
		DB: DatabaseConfig{
			DSN:      v.GetString("DB_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		AI: AIConfig{
			Provider:            v.GetString("AI_PROVIDER"),
			APIKey:              v.GetString("AI_API_KEY"),
			BaseURL:             v.GetString("AI_BASE_URL"),
			ChatModel:           v.GetString("CHAT_MODEL"),
			EmbeddingModel:      v.GetString("EMBEDDING_MODEL"),
			EmbeddingDimensions: v.GetInt("AI_EMBEDDING_DIMENSIONS"),
		},
		RAG: RAGConfig{
			DefaultK:          v.GetInt("RAG_DEFAULT_K"),
			DefaultMinScore:   v.GetFloat64("RAG_DEFAULT_MIN_SCORE"),
			MaxContextTokens:  v.GetInt("RAG_MAX_CONTEXT_TOKENS"),
			ClientSideVectorK: v.GetBool("RAG_CLIENT_SIDE_VECTOR_SEARCH"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetInt("RATE_LIMIT_REQUESTS_PER_MINUTE"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
			SweepInterval:     time.Duration(v.GetInt("RATE_LIMIT_SWEEP_INTERVAL_MINUTES")) * time.Minute,
			SweepTTL:          time.Duration(v.GetInt("RATE_LIMIT_SWEEP_TTL_MINUTES")) * time.Minute,
		},
		SummaryCache: SummaryCacheConfig{
			TTL: time.Duration(v.GetInt("SUMMARY_CACHE_TTL_MINUTES")) * time.Minute,
		},
		Email: EmailConfig{
			Provider:   v.GetString("EMAIL_PROVIDER"),
			APIKey:     v.GetString("EMAIL_API_KEY"),
			BaseURL:    v.GetString("EMAIL_BASE_URL"),
			FromEmail:  v.GetString("EMAIL_FROM_EMAIL"),
			FromName:   v.GetString("EMAIL_FROM_NAME"),
			CronSecret: v.GetString("EMAIL_CRON_SECRET"),
			DigestCron: v.GetString("EMAIL_DIGEST_CRON"),
		},
		Auth: AuthConfig{
			JWTSecret:          v.GetString("AUTH_JWT_SECRET"),
			ServiceToken:       v.GetString("AUTH_SERVICE_TOKEN"),
			ServiceTokenPrefix: v.GetString("AUTH_SERVICE_TOKEN_PREFIX"),
			BackendURL:         v.GetString("AUTH_BACKEND_URL"),
		},
		FetchPageEnabled:  v.GetBool("FETCH_PAGE_CONTENT_ENABLED"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		CORSAllowlist:     splitCSV(v.GetString("CORS_ALLOWLIST")),
		MaxConcurrentJobs: v.GetInt("MAX_CONCURRENT_JOBS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.DB.DSN == "" && c.DB.Host == "" {
		return fmt.Errorf("DB_URL or DB_HOST is required")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.Auth.JWTSecret == "" && c.Auth.ServiceToken == "" {
		return fmt.Errorf("at least one of AUTH_JWT_SECRET or AUTH_SERVICE_TOKEN is required")
	}
	return nil
}

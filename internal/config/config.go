package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the synthgen server and CLI.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	AI         AIConfig
	Generation GenerationConfig
	RateLimit  RateLimitConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	// WriteTimeout of zero leaves long dataset streams unbounded.
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// DatabaseConfig is optional. An empty URL disables the run audit and
// keeps schema descriptions in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
	Gemini           GeminiConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// GenerationConfig bounds the dataset pipeline.
type GenerationConfig struct {
	BatchSize         int
	CacheRowThreshold int
	CacheTTL          time.Duration
	MaxRows           int
	DefaultRows       int
	MaxPromptChars    int
	MaxUploadBytes    int64
	ContextTopK       int
	Domain            string
}

type RateLimitConfig struct {
	PerMinute     int
	PerTenSeconds int
}

type AuthConfig struct {
	Enabled bool
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("SYNTHGEN_PORT", 8001),
			Env:            envString("SYNTHGEN_ENV", "development"),
			AllowedOrigins: envList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:    envDuration("SYNTHGEN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   envDuration("SYNTHGEN_WRITE_TIMEOUT", 0),
			IdleTimeout:    envDuration("SYNTHGEN_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: envString("REDIS_URL", "redis://localhost:6379/0"),
		},
		AI: AIConfig{
			Provider:         strings.ToLower(os.Getenv("AI_PROVIDER")),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
				APIKey:  os.Getenv("VLLM_API_KEY"),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				BaseURL:   envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
				Model:     envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				MaxTokens: envInt("ANTHROPIC_MAX_TOKENS", 8192),
			},
			Gemini: GeminiConfig{
				BaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-1.5-flash"),
			},
		},
		Generation: GenerationConfig{
			BatchSize:         envInt("GEN_BATCH_SIZE", 10000),
			CacheRowThreshold: envInt("GEN_CACHE_ROW_THRESHOLD", 10000),
			CacheTTL:          envDuration("GEN_CACHE_TTL", time.Hour),
			MaxRows:           envInt("GEN_MAX_ROWS", 1000000),
			DefaultRows:       envInt("GEN_DEFAULT_ROWS", 1000),
			MaxPromptChars:    envInt("GEN_MAX_PROMPT_CHARS", 2000),
			MaxUploadBytes:    int64(envInt("GEN_MAX_UPLOAD_BYTES", 10<<20)),
			ContextTopK:       envInt("GEN_CONTEXT_TOP_K", 3),
			Domain:            envString("GEN_DOMAIN", "general"),
		},
		RateLimit: RateLimitConfig{
			PerMinute:     envInt("RATE_LIMIT_PER_MINUTE", 20),
			PerTenSeconds: envInt("RATE_LIMIT_PER_10S", 5),
		},
		Auth: AuthConfig{
			Enabled: envBool("API_AUTH_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic, gemini; got %q", c.AI.Provider)
	}

	switch c.AI.Provider {
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
		}
	case "anthropic":
		if c.AI.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
		}
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
		}
	case "vllm":
		if c.AI.VLLM.Model == "" {
			return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
		}
	}

	if c.Generation.BatchSize <= 0 {
		return fmt.Errorf("GEN_BATCH_SIZE must be positive, got %d", c.Generation.BatchSize)
	}
	if c.Generation.CacheRowThreshold < 0 {
		return fmt.Errorf("GEN_CACHE_ROW_THRESHOLD must not be negative, got %d", c.Generation.CacheRowThreshold)
	}
	if c.Generation.MaxRows <= 0 {
		return fmt.Errorf("GEN_MAX_ROWS must be positive, got %d", c.Generation.MaxRows)
	}
	if c.Generation.DefaultRows <= 0 || c.Generation.DefaultRows > c.Generation.MaxRows {
		return fmt.Errorf("GEN_DEFAULT_ROWS must be between 1 and GEN_MAX_ROWS, got %d", c.Generation.DefaultRows)
	}

	if c.Auth.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when API_AUTH_ENABLED is true")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

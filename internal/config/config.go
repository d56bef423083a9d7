// Package config provides configuration management for Loom.
// It loads settings from environment variables with the LOOM_ prefix and
// provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration settings for the Loom application.
type Config struct {
	Storage   StorageConfig
	Session   SessionConfig
	Routing   RoutingConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Activity  ActivityConfig
}

// StorageConfig selects the persona/memory store backend.
type StorageConfig struct {
	Engine      string // Storage engine: postgres, chromem (default: chromem)
	PostgresDSN string // Postgres connection string (required when Engine is postgres)
	Dimension   int    // Embedding vector dimension (default: 384)
}

// SessionConfig selects the session workspace backend.
type SessionConfig struct {
	Engine     string // Session engine: sqlite, memory (default: sqlite)
	SQLitePath string // SQLite database path (default: ./data/sessions.db)
}

// RoutingConfig tunes domain resolution and retrieval.
type RoutingConfig struct {
	SimilarityMargin float64 // Score lead required to switch domains (default: 0.05)
	TopKSemantic     int     // Semantic memories per turn (default: 5)
	TopKEpisodic     int     // Episodic memories per turn (default: 5)
	TemplatePath     string  // Prompt template file; empty uses the built-in template
	KnowledgeBase    string  // Knowledge base YAML path (default: ./knowledge_base.yaml)
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider    string // Embedding provider: ollama, openai, hash (default: ollama)
	OllamaURL   string // Ollama API URL (default: http://localhost:11434)
	OllamaModel string // Ollama embedding model (default: nomic-embed-text)
	CacheSize   int    // Embedding cache entries, 0 disables (default: 4096)
}

// LLMConfig contains downstream model provider configuration.
type LLMConfig struct {
	Provider        string // LLM provider: ollama, openai, anthropic (default: ollama)
	OllamaURL       string // Ollama API URL (default: http://localhost:11434)
	OllamaModel     string // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey    string // OpenAI API key
	OpenAIModel     string // OpenAI model name (default: gpt-4o-mini)
	AnthropicAPIKey string // Anthropic API key
	AnthropicModel  string // Anthropic model name (default: claude-3-5-sonnet-20241022)
}

// ActivityConfig controls the live activity feed.
type ActivityConfig struct {
	Enabled bool   // Serve the WebSocket activity feed (default: false)
	Host    string // Feed host (default: 127.0.0.1)
	Port    int    // Feed port (default: 7474)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the LOOM_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Engine:      getEnv("LOOM_STORAGE_ENGINE", "chromem"),
			PostgresDSN: getEnv("LOOM_POSTGRES_DSN", ""),
			Dimension:   getEnvInt("LOOM_VECTOR_DIMENSION", 384),
		},
		Session: SessionConfig{
			Engine:     getEnv("LOOM_SESSION_ENGINE", "sqlite"),
			SQLitePath: getEnv("LOOM_SESSION_PATH", "./data/sessions.db"),
		},
		Routing: RoutingConfig{
			SimilarityMargin: getEnvFloat("LOOM_SIMILARITY_MARGIN", 0.05),
			TopKSemantic:     getEnvInt("LOOM_TOP_K_SEMANTIC", 5),
			TopKEpisodic:     getEnvInt("LOOM_TOP_K_EPISODIC", 5),
			TemplatePath:     getEnv("LOOM_TEMPLATE_PATH", ""),
			KnowledgeBase:    getEnv("LOOM_KNOWLEDGE_BASE", "./knowledge_base.yaml"),
		},
		Embedding: EmbeddingConfig{
			Provider:    getEnv("LOOM_EMBEDDING_PROVIDER", "ollama"),
			OllamaURL:   getEnv("LOOM_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel: getEnv("LOOM_EMBEDDING_MODEL", "nomic-embed-text"),
			CacheSize:   getEnvInt("LOOM_EMBEDDING_CACHE_SIZE", 4096),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LOOM_LLM_PROVIDER", "ollama"),
			OllamaURL:       getEnv("LOOM_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:     getEnv("LOOM_OLLAMA_MODEL", "qwen2.5:7b"),
			OpenAIAPIKey:    getEnv("LOOM_OPENAI_API_KEY", ""),
			OpenAIModel:     getEnv("LOOM_OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicAPIKey: getEnv("LOOM_ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("LOOM_ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		},
		Activity: ActivityConfig{
			Enabled: getEnvBool("LOOM_ACTIVITY_ENABLED", false),
			Host:    getEnv("LOOM_ACTIVITY_HOST", "127.0.0.1"),
			Port:    getEnvInt("LOOM_ACTIVITY_PORT", 7474),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work. Values with defaults are
// never invalid; this checks the combinations a default cannot fix.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: LOOM_POSTGRES_DSN is required when LOOM_STORAGE_ENGINE is postgres")
		}
	case "chromem":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}

	switch c.Session.Engine {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown session engine %q", c.Session.Engine)
	}

	if c.Storage.Dimension <= 0 {
		return fmt.Errorf("config: vector dimension must be positive, got %d", c.Storage.Dimension)
	}
	if c.Routing.SimilarityMargin < 0 {
		return fmt.Errorf("config: similarity margin must be >= 0, got %g", c.Routing.SimilarityMargin)
	}

	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the OpenAlex paper source.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the number of papers requested per search (default 10, max 200).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Email is sent as the mailto parameter for OpenAlex polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// RequestsPerSecond caps the request rate against the API (default 5).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// MaxRetries is the number of retries on 429, 5xx and transport errors (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// LLM providers accepted by LLMConfig.Provider.
const (
	ProviderLangChain = "langchain"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LLMConfig holds settings for the language model client.
type LLMConfig struct {
	// Provider selects the client implementation: langchain, openai or anthropic.
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "llama-3.3-70b-versatile").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint. The langchain and openai
	// providers speak the OpenAI wire format, so any compatible host works.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens bounds completion length (anthropic requires it; default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// MaxRetries is the number of retry attempts for failed API calls (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// Checkpoint store backends accepted by StoreConfig.Backend.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// StoreConfig selects and configures the thread checkpoint store.
type StoreConfig struct {
	// Backend is one of memory, sqlite, redis, postgres.
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`

	// Prefix namespaces Redis keys (default "research-assistant:").
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// TTL expires idle threads in Redis. Zero keeps them forever.
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	// PostgresDSN is a pgx connection string.
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`

	// Table names the SQL table holding thread snapshots (default "threads").
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

// WorkflowConfig holds settings for the workflow controller.
type WorkflowConfig struct {
	// CallTimeout bounds every language model and paper source call.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

// Config groups all component configurations.
type Config struct {
	Search   SearchConfig   `json:"search" yaml:"search"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "research-assistant/0.1",
			},
			MaxResults:        10,
			RequestsPerSecond: 5,
			MaxRetries:        3,
		},
		LLM: LLMConfig{
			Provider:    ProviderLangChain,
			Model:       "llama-3.3-70b-versatile",
			BaseURL:     "https://api.groq.com/openai/v1",
			Temperature: 0.3,
			MaxTokens:   2048,
			MaxRetries:  2,
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
			Path:    "research-assistant.db",
			Prefix:  "research-assistant:",
			Table:   "threads",
		},
		Workflow: WorkflowConfig{
			CallTimeout: 60 * time.Second,
		},
	}
}

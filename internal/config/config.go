// Package config loads responder configuration from YAML with environment
// variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all responder configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Completion client configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector store configuration
	Store StoreConfig `yaml:"store"`

	// Retrieval pipeline tuning
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Reasoning loop policy
	Agent AgentConfig `yaml:"agent"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RetrievalConfig tunes the retrieval pipeline.
type RetrievalConfig struct {
	MaxContexts      int     `yaml:"max_contexts"`      // Final context cap
	PerQueryLimit    int     `yaml:"per_query_limit"`   // Results per expanded query
	Parallelism      int     `yaml:"parallelism"`       // Concurrent searches
	ScoreThreshold   float64 `yaml:"score_threshold"`   // Relevance cutoff (1-10 scale)
	PassageCharLimit int     `yaml:"passage_char_limit"` // Truncation before relevance scoring
}

// AgentConfig configures the reasoning loop.
type AgentConfig struct {
	// MaxSteps caps tool iterations per run. 0 means unlimited.
	MaxSteps int `yaml:"max_steps"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "auto-responder",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "RETRIEVAL_QUERY",
		},

		Store: StoreConfig{
			DatabasePath: "data/responder.db",
		},

		Retrieval: RetrievalConfig{
			MaxContexts:      10,
			PerQueryLimit:    5,
			Parallelism:      4,
			ScoreThreshold:   6.0,
			PassageCharLimit: 1000,
		},

		Agent: AgentConfig{
			MaxSteps: 10,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Keys never belong in the YAML file checked into a repo.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == "gemini" || c.LLM.APIKey == "" {
			c.LLM.APIKey = key
			c.LLM.Provider = "gemini"
		}
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = key
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if path := os.Getenv("RESPONDER_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "ollama", "genai", "":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Retrieval.MaxContexts < 0 {
		return fmt.Errorf("retrieval.max_contexts must be >= 0")
	}
	if c.Agent.MaxSteps < 0 {
		return fmt.Errorf("agent.max_steps must be >= 0")
	}
	return nil
}

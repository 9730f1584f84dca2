// Package config loads the YAML configuration for the server and worker
// binaries. Every sub-config follows the teacher's idiom: yaml-tagged
// fields, a SetDefaults method that also falls back to environment
// variables for secrets, and a Validate method for the fields that must
// be present before the component can start.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/duhu110/axiom/pkg/observability"
	"github.com/duhu110/axiom/pkg/vector"
)

// Config is the top-level configuration for cmd/server and cmd/worker.
// Both binaries load the same file; cmd/worker only uses the Log, Store,
// Vector, Embedding, and Ingestion sections.
type Config struct {
	Server        ServerConfig                 `yaml:"server"`
	LLM           LLMConfig                    `yaml:"llm"`
	Router        RouterConfig                 `yaml:"router"`
	Embedding     EmbeddingConfig              `yaml:"embedding"`
	Vector        vector.ProviderConfig        `yaml:"vector"`
	Store         StoreConfig                  `yaml:"store"`
	Ingestion     IngestionConfig              `yaml:"ingestion"`
	Log           LogConfig                    `yaml:"log"`
	Metrics       observability.MetricsConfig  `yaml:"metrics"`
	Tracing       observability.TracerConfig   `yaml:"tracing"`
}

// ServerConfig configures the HTTP entrypoint.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// SetDefaults fills in ServerConfig defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// LLMProvider identifies the chat-completion API flavor.
type LLMProvider string

const (
	// LLMProviderOpenAICompatible covers any OpenAI-wire-compatible
	// endpoint, including DeepSeek, which is what original_source targets.
	LLMProviderOpenAICompatible LLMProvider = "openai-compatible"
)

// LLMConfig configures pkg/llm's OpenAI-compatible provider. It is used
// both for the main sub-agent LLM and, with the model name overridden by
// RouterConfig.Model, for the router's secondary routing-decision LLM call.
type LLMConfig struct {
	Provider LLMProvider `yaml:"provider,omitempty" jsonschema:"description=chat completion API flavor,default=openai-compatible"`
	Model    string      `yaml:"model,omitempty" jsonschema:"description=model identifier"`
	APIKey   string      `yaml:"api_key,omitempty" jsonschema:"description=API key; falls back to LLM_API_KEY env var"`
	BaseURL  string      `yaml:"base_url,omitempty" jsonschema:"description=chat completion endpoint base URL"`
}

// SetDefaults fills in LLMConfig defaults, pulling the API key from the
// environment when the YAML field is empty — the same pattern the
// teacher's LLMConfig.SetDefaults uses for provider API keys.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderOpenAICompatible
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.deepseek.com"
	}
	if c.Model == "" {
		c.Model = "deepseek-reasoner"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("LLM_API_KEY")
	}
}

// Validate checks that the fields required to make a request are present.
func (c *LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm: api_key is required (set llm.api_key or LLM_API_KEY)")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("llm: base_url is required")
	}
	return nil
}

// RouterConfig configures the router's LLM-based decision call.
type RouterConfig struct {
	// Model overrides LLMConfig.Model for the routing call when non-empty;
	// routing wants a cheap, fast model distinct from the answering model.
	Model string `yaml:"model,omitempty"`
}

// EmbeddingConfig configures pkg/embedding's provider.
type EmbeddingConfig struct {
	Model    string `yaml:"model,omitempty" jsonschema:"description=embedding model name"`
	APIKey   string `yaml:"api_key,omitempty" jsonschema:"description=API key; falls back to EMBEDDING_API_KEY env var"`
	BaseURL  string `yaml:"base_url,omitempty"`
	MaxConcurrency int `yaml:"max_concurrency,omitempty" jsonschema:"description=bounded worker pool size for blocking embed calls,default=4"`
}

// SetDefaults fills in EmbeddingConfig defaults.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "bge-small-zh-v1.5"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("EMBEDDING_API_KEY")
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
}

// StoreConfig configures the SQL-backed checkpoint/memory/usage store.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty" jsonschema:"description=postgres|mysql|sqlite3,default=sqlite3"`
	DSN    string `yaml:"dsn,omitempty" jsonschema:"description=data source name; falls back to STORE_DSN env var"`
}

// SetDefaults fills in StoreConfig defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite3"
	}
	if c.DSN == "" {
		if dsn := os.Getenv("STORE_DSN"); dsn != "" {
			c.DSN = dsn
		} else if c.Driver == "sqlite3" {
			c.DSN = "file:axiom.db?_foreign_keys=on"
		}
	}
}

// Validate checks StoreConfig.
func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case "postgres", "mysql", "sqlite3":
	default:
		return fmt.Errorf("store: unknown driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("store: dsn is required (set store.dsn or STORE_DSN)")
	}
	return nil
}

// IngestionConfig configures the worker pool and default chunking
// parameters used when a KB does not override them.
type IngestionConfig struct {
	Concurrency       int `yaml:"concurrency,omitempty" jsonschema:"description=number of concurrent ingestion jobs,default=4"`
	DefaultChunkSize  int `yaml:"default_chunk_size,omitempty" jsonschema:"default=1000"`
	DefaultOverlap    int `yaml:"default_overlap,omitempty" jsonschema:"default=200"`
}

// SetDefaults fills in IngestionConfig defaults.
func (c *IngestionConfig) SetDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.DefaultChunkSize == 0 {
		c.DefaultChunkSize = 1000
	}
	if c.DefaultOverlap == 0 {
		c.DefaultOverlap = 200
	}
}

// LogConfig configures pkg/logger.Init.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" jsonschema:"description=debug|info|warn|error,default=info"`
	Format string `yaml:"format,omitempty" jsonschema:"description=simple|verbose,default=simple"`
}

// SetDefaults fills in LogConfig defaults.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// SetDefaults applies every sub-config's SetDefaults in turn.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedding.SetDefaults()
	c.Vector.SetDefaults()
	c.Store.SetDefaults()
	c.Ingestion.SetDefaults()
	c.Log.SetDefaults()
}

// Validate runs every sub-config's Validate.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Vector.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads a YAML config file at path, expands ${VAR}/${VAR:-default}/
// $VAR environment references in every string value, applies defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	raw = expandEnvInStrings(raw).(map[string]any)

	expanded, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: re-encode %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

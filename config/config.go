// Package config loads shopmesh settings from defaults, a YAML file, .env
// files and SHOPMESH_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFileName is searched for in the working directory and in
// $HOME/.config/shopmesh when no explicit path is given.
const DefaultConfigFileName = "shopmesh"

// EnvPrefix prefixes environment overrides, e.g. SHOPMESH_SERVER_PORT.
const EnvPrefix = "SHOPMESH"

// Config is the root application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Agent       AgentConfig       `mapstructure:"agent" yaml:"agent"`
	Embedder    EmbedderConfig    `mapstructure:"embedder" yaml:"embedder"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	Retriever   RetrieverConfig   `mapstructure:"retriever" yaml:"retriever"`
	Catalog     CatalogConfig     `mapstructure:"catalog" yaml:"catalog"`
	Memory      MemoryConfig      `mapstructure:"memory" yaml:"memory"`
	Sessions    SessionsConfig    `mapstructure:"sessions" yaml:"sessions"`
	Ingest      IngestConfig      `mapstructure:"ingest" yaml:"ingest"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// DefaultThreadID is used by POST /get when the form carries no thread_id.
	DefaultThreadID string `mapstructure:"default_thread_id" yaml:"default_thread_id"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// LoggingConfig selects the log backend.
type LoggingConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	Format    string `mapstructure:"format" yaml:"format"`
	Backend   string `mapstructure:"backend" yaml:"backend"`
	AddSource bool   `mapstructure:"add_source" yaml:"add_source"`
}

// LLMConfig configures the conversational model.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int64         `mapstructure:"max_tokens" yaml:"max_tokens"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AgentConfig configures the agent loop.
type AgentConfig struct {
	Name          string        `mapstructure:"name" yaml:"name"`
	HistoryTurns  int           `mapstructure:"history_turns" yaml:"history_turns"`
	CommitTimeout time.Duration `mapstructure:"commit_timeout" yaml:"commit_timeout"`
}

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	Dimension int    `mapstructure:"dimension" yaml:"dimension"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// VectorStoreConfig selects the vector index.
type VectorStoreConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant" yaml:"qdrant"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// QdrantConfig contains connection details for a Qdrant collection.
type QdrantConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PostgresConfig contains connection details for pgvector.
type PostgresConfig struct {
	URL   string `mapstructure:"url" yaml:"url,omitempty"`
	Table string `mapstructure:"table" yaml:"table"`
}

// RetrieverConfig tunes retrieval and reranking.
type RetrieverConfig struct {
	K               int           `mapstructure:"k" yaml:"k"`
	MaxK            int           `mapstructure:"max_k" yaml:"max_k"`
	FetchMultiplier int           `mapstructure:"fetch_multiplier" yaml:"fetch_multiplier"`
	Lambda          float64       `mapstructure:"lambda" yaml:"lambda"`
	KeywordWeight   float64       `mapstructure:"keyword_weight" yaml:"keyword_weight"`
	PriceWeight     float64       `mapstructure:"price_weight" yaml:"price_weight"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CatalogConfig tunes result normalization.
type CatalogConfig struct {
	MaxResults int     `mapstructure:"max_results" yaml:"max_results"`
	WeakScore  float64 `mapstructure:"weak_score" yaml:"weak_score"`
}

// MemoryConfig sets the compaction policy.
type MemoryConfig struct {
	Threshold       int           `mapstructure:"threshold" yaml:"threshold"`
	KeepRecent      int           `mapstructure:"keep_recent" yaml:"keep_recent"`
	MaxTurns        int           `mapstructure:"max_turns" yaml:"max_turns"`
	Sizer           string        `mapstructure:"sizer" yaml:"sizer"`
	Summarizer      string        `mapstructure:"summarizer" yaml:"summarizer"`
	SummaryMaxChars int           `mapstructure:"summary_max_chars" yaml:"summary_max_chars"`
	SummaryTimeout  time.Duration `mapstructure:"summary_timeout" yaml:"summary_timeout"`
}

// SessionsConfig selects the session backend and idle eviction.
type SessionsConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url,omitempty"`
	// IdleTTL enables eviction when positive.
	IdleTTL       time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule" yaml:"sweep_schedule"`
}

// IngestConfig configures catalog ingestion.
type IngestConfig struct {
	File         string `mapstructure:"file" yaml:"file"`
	BatchSize    int    `mapstructure:"batch_size" yaml:"batch_size"`
	SkipExisting bool   `mapstructure:"skip_existing" yaml:"skip_existing"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			DefaultThreadID: "default_thread",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Backend: "slog"},
		LLM: LLMConfig{
			Provider:    "none",
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     20 * time.Second,
		},
		Agent:    AgentConfig{Name: "ShopMesh", HistoryTurns: 6, CommitTimeout: 5 * time.Second},
		Embedder: EmbedderConfig{Provider: "hashing", Model: "text-embedding-3-small", Dimension: 384, BatchSize: 64},
		VectorStore: VectorStoreConfig{
			Backend:  "memory",
			Qdrant:   QdrantConfig{URL: "http://localhost:6333", Collection: "products", Timeout: 10 * time.Second},
			Postgres: PostgresConfig{Table: "products"},
		},
		Retriever: RetrieverConfig{
			K:               3,
			MaxK:            20,
			FetchMultiplier: 4,
			Lambda:          0.5,
			KeywordWeight:   0.15,
			PriceWeight:     0.1,
			Timeout:         10 * time.Second,
		},
		Catalog: CatalogConfig{MaxResults: 5, WeakScore: 0},
		Memory: MemoryConfig{
			Threshold:       2000,
			KeepRecent:      4,
			MaxTurns:        10,
			Sizer:           "chars",
			Summarizer:      "extractive",
			SummaryMaxChars: 600,
			SummaryTimeout:  15 * time.Second,
		},
		Sessions: SessionsConfig{Backend: "memory", SQLitePath: "shopmesh.db", SweepSchedule: "*/10 * * * *"},
		Ingest:   IngestConfig{BatchSize: 64},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// Load reads configuration with this priority (highest first):
//  1. SHOPMESH_* environment variables (after loading .env files)
//  2. the config file at path, or shopmesh.yaml found in the search paths
//  3. defaults
//
// Provider credentials also fall back to the conventional variables
// OPENAI_API_KEY, ANTHROPIC_API_KEY, DATABASE_URL, QDRANT_URL and QDRANT_API_KEY.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "shopmesh"))
		}
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyProviderEnv(&cfg)
	return &cfg, nil
}

// setDefaults registers every key of Default() so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) error {
	raw, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	d := viper.New()
	d.SetConfigType("yaml")
	if err := d.ReadConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("read defaults: %w", err)
	}
	for _, key := range d.AllKeys() {
		v.SetDefault(key, d.Get(key))
	}
	// Keys omitted from the YAML rendering still need a default to be
	// bound to the environment.
	for _, key := range []string{
		"llm.api_key", "llm.base_url", "embedder.api_key", "embedder.base_url",
		"vector_store.qdrant.api_key", "vector_store.postgres.url", "sessions.postgres_url",
	} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	return nil
}

func applyProviderEnv(cfg *Config) {
	fallback := func(dst *string, envs ...string) {
		for _, env := range envs {
			if *dst != "" {
				return
			}
			*dst = os.Getenv(env)
		}
	}
	switch cfg.LLM.Provider {
	case "openai":
		fallback(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	case "anthropic":
		fallback(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	}
	if cfg.Embedder.Provider == "openai" {
		fallback(&cfg.Embedder.APIKey, "OPENAI_API_KEY")
	}
	fallback(&cfg.VectorStore.Qdrant.APIKey, "QDRANT_API_KEY")
	if url := os.Getenv("QDRANT_URL"); url != "" && cfg.VectorStore.Qdrant.URL == Default().VectorStore.Qdrant.URL {
		cfg.VectorStore.Qdrant.URL = url
	}
	fallback(&cfg.VectorStore.Postgres.URL, "DATABASE_URL")
	fallback(&cfg.Sessions.PostgresURL, "DATABASE_URL")
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	out.LLM.APIKey = mask(c.LLM.APIKey)
	out.Embedder.APIKey = mask(c.Embedder.APIKey)
	out.VectorStore.Qdrant.APIKey = mask(c.VectorStore.Qdrant.APIKey)
	out.VectorStore.Postgres.URL = mask(c.VectorStore.Postgres.URL)
	out.Sessions.PostgresURL = mask(c.Sessions.PostgresURL)
	return &out
}

// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration (spec §6.4).
type Config struct {
	ProviderEndpoint string `mapstructure:"provider_endpoint"`
	ProviderKey      string `mapstructure:"provider_key"`
	ChatModel        string `mapstructure:"chat_model"`
	EmbeddingModel   string `mapstructure:"embedding_model"`
	StoreConnection  string `mapstructure:"store_connection"`
	DatabaseName     string `mapstructure:"database_name"`
	FrontendOrigin   string `mapstructure:"frontend_origin"`

	Chunking ChunkingConfig `mapstructure:"chunking"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Keyword  KeywordConfig  `mapstructure:"keyword"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// ChunkingConfig controls the document chunker (C3).
type ChunkingConfig struct {
	MaxChunkSize int `mapstructure:"max_chunk_size"`
	OverlapSize  int `mapstructure:"overlap_size"`
}

// LLMConfig configures the language-model adapter (C1).
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	EmbedModel  string  `mapstructure:"embed_model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// VectorConfig configures the qdrant-backed chunk store (C2).
type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

// KeywordConfig configures the bleve keyword index backing C5's keyword leg.
type KeywordConfig struct {
	IndexDir string `mapstructure:"index_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// HTTPConfig configures the HTTP transport surface.
type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// DefaultConfig returns sensible defaults, overridden by file/env in Load.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{MaxChunkSize: 1500, OverlapSize: 100},
		Vector:   VectorConfig{Host: "localhost", Port: 6334, Collection: "code_chunks", Dimension: 1536},
		Keyword:  KeywordConfig{IndexDir: "./data/keyword"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Tracing:  TracingConfig{SampleRate: 1.0},
		HTTP:     HTTPConfig{ListenAddr: ":8080"},
	}
}

// Validate checks configuration for issues and returns warnings. Missing
// ProviderKey or StoreConnection is fatal and reported by Load, not here.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("llm temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.Chunking.MaxChunkSize <= 0 {
		warnings = append(warnings, "chunking.max_chunk_size must be positive, using default")
		c.Chunking.MaxChunkSize = 1500
	}
	if c.Chunking.OverlapSize < 0 {
		warnings = append(warnings, "chunking.overlap_size cannot be negative, using default")
		c.Chunking.OverlapSize = 100
	}
	if c.Vector.Dimension <= 0 {
		warnings = append(warnings, "vector.dimension must be positive, using default 1536")
		c.Vector.Dimension = 1536
	}
	return warnings
}

// Load reads configuration from file and environment, applying defaults.
// A missing ProviderKey or StoreConnection is fatal per spec §6.4.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := DefaultConfig()

	v.SetConfigFile(path)
	v.SetEnvPrefix("CODERAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	if cfg.ProviderKey == "" {
		return nil, fmt.Errorf("config: provider_key is required")
	}
	if cfg.StoreConnection == "" {
		return nil, fmt.Errorf("config: store_connection is required")
	}

	return cfg, nil
}

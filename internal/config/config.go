// Package config loads assistant configuration from a JSON file backend with
// environment-variable overrides. Defaults cover every key; secrets (API
// keys) come from the environment only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server     ServerConfig
	Provider   ProviderConfig
	OpenAI     OpenAIConfig
	Ollama     OllamaConfig
	Embedding  EmbeddingConfig
	Retrieval  RetrievalConfig
	Quality    QualityConfig
	Generation GenerationConfig
	Ingest     IngestConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type ProviderConfig struct {
	// Kind selects the LLM backend: "openai" or "ollama".
	Kind string
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type EmbeddingConfig struct {
	Dimension int
}

type RetrievalConfig struct {
	MaxInteractions int
	MaxDocs         int
	MaxChunkLen     int
	ScoreThreshold  float64
}

type QualityConfig struct {
	MinDraftWords      int
	MinScreenshotChars int
	RequireQuestion    bool
}

type GenerationConfig struct {
	Temperature      float64
	RegenTemperature float64
	MaxTokens        int
}

type IngestConfig struct {
	MaxChunkChars int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Provider: ProviderConfig{
			Kind: "openai",
		},
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-4o",
			EmbedModel: "text-embedding-3-small",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
		},
		Embedding: EmbeddingConfig{
			Dimension: 1536,
		},
		Retrieval: RetrievalConfig{
			MaxInteractions: 3,
			MaxDocs:         2,
			MaxChunkLen:     450,
			ScoreThreshold:  0,
		},
		Quality: QualityConfig{
			MinDraftWords:      8,
			MinScreenshotChars: 20,
			RequireQuestion:    false,
		},
		Generation: GenerationConfig{
			Temperature:      0.65,
			RegenTemperature: 0.75,
			MaxTokens:        600,
		},
		Ingest: IngestConfig{
			MaxChunkChars: 1000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "assist-data"
		}
	}
	return filepath.Join(dir, "assist")
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/assist/config.json) with ASSIST_* environment variables
// overriding backend values. Secrets are environment-only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// OPENAI_API_KEY is honored as a fallback to the ASSIST_ variable, since
	// most environments already export it.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Provider.Kind {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. Set ASSIST_OPENAI_API_KEY or OPENAI_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown provider.kind %q (want \"openai\" or \"ollama\")", cfg.Provider.Kind)
	}
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", cfg.Embedding.Dimension)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ASSIST_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "ASSIST_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "provider.kind", typ: kString, env: "ASSIST_PROVIDER_KIND",
		apply:   func(cfg *Config, v any) { cfg.Provider.Kind = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Kind },
	},
	{
		key: "openai.api_key", typ: kString, env: "ASSIST_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "ASSIST_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.chat_model", typ: kString, env: "ASSIST_OPENAI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ChatModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "ASSIST_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "ollama.base_url", typ: kString, env: "ASSIST_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "ASSIST_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "ASSIST_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "embedding.dimension", typ: kInt, env: "ASSIST_EMBEDDING_DIMENSION",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Dimension = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.Dimension },
	},
	{
		key: "retrieval.max_interactions", typ: kInt, env: "ASSIST_RETRIEVAL_MAX_INTERACTIONS",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MaxInteractions = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MaxInteractions },
	},
	{
		key: "retrieval.max_docs", typ: kInt, env: "ASSIST_RETRIEVAL_MAX_DOCS",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MaxDocs = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MaxDocs },
	},
	{
		key: "retrieval.max_chunk_len", typ: kInt, env: "ASSIST_RETRIEVAL_MAX_CHUNK_LEN",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MaxChunkLen = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MaxChunkLen },
	},
	{
		key: "retrieval.score_threshold", typ: kFloat, env: "ASSIST_RETRIEVAL_SCORE_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ScoreThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.ScoreThreshold },
	},
	{
		key: "quality.min_draft_words", typ: kInt, env: "ASSIST_QUALITY_MIN_DRAFT_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Quality.MinDraftWords = v.(int) },
		extract: func(cfg Config) any { return cfg.Quality.MinDraftWords },
	},
	{
		key: "quality.min_screenshot_chars", typ: kInt, env: "ASSIST_QUALITY_MIN_SCREENSHOT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Quality.MinScreenshotChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Quality.MinScreenshotChars },
	},
	{
		key: "quality.require_question", typ: kBool, env: "ASSIST_QUALITY_REQUIRE_QUESTION",
		apply:   func(cfg *Config, v any) { cfg.Quality.RequireQuestion = v.(bool) },
		extract: func(cfg Config) any { return cfg.Quality.RequireQuestion },
	},
	{
		key: "generation.temperature", typ: kFloat, env: "ASSIST_GENERATION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generation.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.Temperature },
	},
	{
		key: "generation.regen_temperature", typ: kFloat, env: "ASSIST_GENERATION_REGEN_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generation.RegenTemperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.RegenTemperature },
	},
	{
		key: "generation.max_tokens", typ: kInt, env: "ASSIST_GENERATION_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxTokens },
	},
	{
		key: "ingest.max_chunk_chars", typ: kInt, env: "ASSIST_INGEST_MAX_CHUNK_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Ingest.MaxChunkChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.MaxChunkChars },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ASSIST_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "ASSIST_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

package config

import "time"

// Config is the full application configuration. Values come from defaults
// overlaid with OPSRELAY_* environment variables; a .env file is honored
// by the CLI before loading.
type Config struct {
	LLM   LLMConfig   `koanf:"llm"   validate:"required"`
	Tools ToolsConfig `koanf:"tools" validate:"required"`
	Chat  ChatConfig  `koanf:"chat"  validate:"required"`
	Store StoreConfig `koanf:"store" validate:"required"`
	Log   LogConfig   `koanf:"log"`
}

// LLMConfig configures the completion-service boundary.
type LLMConfig struct {
	Provider string `koanf:"provider" validate:"oneof=anthropic openai"`
	// APIKey is required for live providers; it is checked at client
	// construction so tool-server-only deployments can run without one.
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model" validate:"required"`
	// MaxTokens and Temperature are deployment constants in the observed
	// call sites (4096, 0.1) but stay configurable.
	MaxTokens      int32         `koanf:"max_tokens" validate:"gt=0"`
	Temperature    float64       `koanf:"temperature" validate:"gte=0,lte=1"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
}

// ToolsConfig configures the tool-server boundary.
type ToolsConfig struct {
	ServerURL      string        `koanf:"server_url" validate:"required,url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
}

// ChatConfig bounds the orchestration loop for the two observed flows.
type ChatConfig struct {
	// ConsoleMaxTurns bounds the single-user console flow.
	ConsoleMaxTurns int `koanf:"console_max_turns" validate:"gt=0"`
	// ChatMaxTurns bounds the externally visible chat-platform flow,
	// smaller to keep response latency bounded.
	ChatMaxTurns int `koanf:"chat_max_turns" validate:"gt=0"`
	// HistoryLimit is the number of persisted turns seeded ahead of a new
	// session-scoped query.
	HistoryLimit int `koanf:"history_limit" validate:"gt=0"`
}

// StoreConfig configures the SQLite session store.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// LogConfig configures the default logger.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration before any overrides.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "anthropic",
			Model:          "claude-3-7-sonnet-20250219",
			MaxTokens:      4096,
			Temperature:    0.1,
			RequestTimeout: 120 * time.Second,
		},
		Tools: ToolsConfig{
			ServerURL:      "http://localhost:8000/sse",
			ConnectTimeout: 10 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			ConsoleMaxTurns: 100,
			ChatMaxTurns:    10,
			HistoryLimit:    5,
		},
		Store: StoreConfig{
			Path: "chat_history.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

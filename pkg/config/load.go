package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "OPSRELAY_"

// envMappings maps environment variables to config paths. Explicit
// mappings keep multi-word keys unambiguous (API_KEY vs API.KEY).
var envMappings = map[string]string{
	"OPSRELAY_LLM_PROVIDER":          "llm.provider",
	"OPSRELAY_LLM_API_KEY":           "llm.api_key",
	"OPSRELAY_LLM_MODEL":             "llm.model",
	"OPSRELAY_LLM_MAX_TOKENS":        "llm.max_tokens",
	"OPSRELAY_LLM_TEMPERATURE":       "llm.temperature",
	"OPSRELAY_LLM_REQUEST_TIMEOUT":   "llm.request_timeout",
	"OPSRELAY_TOOLS_SERVER_URL":      "tools.server_url",
	"OPSRELAY_TOOLS_CONNECT_TIMEOUT": "tools.connect_timeout",
	"OPSRELAY_TOOLS_REQUEST_TIMEOUT": "tools.request_timeout",
	"OPSRELAY_CHAT_CONSOLE_MAX_TURNS": "chat.console_max_turns",
	"OPSRELAY_CHAT_CHAT_MAX_TURNS":    "chat.chat_max_turns",
	"OPSRELAY_CHAT_HISTORY_LIMIT":     "chat.history_limit",
	"OPSRELAY_STORE_PATH":             "store.path",
	"OPSRELAY_LOG_LEVEL":              "log.level",
	"OPSRELAY_LOG_JSON":               "log.json",

	// Aliases matching the names the original deployment used.
	"ANTHROPIC_API_KEY": "llm.api_key",
	"CLAUDE_MODEL":      "llm.model",
	"MCP_SERVER_URL":    "tools.server_url",
}

// Load builds the configuration from defaults overlaid with environment
// variables and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := envMappings[key]; ok {
				return path, value
			}
			if !strings.HasPrefix(key, envPrefix) {
				return "", nil
			}
			// Unmapped OPSRELAY_* keys fall back to a section.key split on
			// the first underscore after the prefix.
			rest := strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.Replace(rest, "_", ".", 1), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural invariants; a failure here is a fatal
// configuration fault raised before any conversation begins.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

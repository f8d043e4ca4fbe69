// Package config loads launcher settings from defaults, a YAML file, an
// optional profile overlay, LAUNCHER_* environment variables and CLI flags,
// in that order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LAUNCHER_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	LLM        LLMConfig        `koanf:"llm"`
	Extensions ExtensionsConfig `koanf:"extensions"`
	Assistant  AssistantConfig  `koanf:"assistant"`
	Governance GovernanceConfig `koanf:"governance"`
	MCP        MCPConfig        `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter           string            `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint       string            `koanf:"otlp_endpoint"`
	OTLPInsecure       bool              `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int               `koanf:"otlp_timeout_seconds"`
	OTLPHeaders        map[string]string `koanf:"otlp_headers"`
}

// LLMConfig selects the assistant backend. Empty Model and BaseURL fall
// back to each provider's defaults.
type LLMConfig struct {
	Provider       string `koanf:"provider"` // ollama, openai, anthropic, gemini, mock, none
	Model          string `koanf:"model"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	MaxTokens      int    `koanf:"max_tokens"` // 0 keeps the backend default
}

// ExtensionsConfig selects the artifact store and the extensions enabled
// at startup.
type ExtensionsConfig struct {
	Store        string   `koanf:"store"` // dir, sqlite, memory
	Dir          string   `koanf:"dir"`
	Suffix       string   `koanf:"suffix"`
	DatabasePath string   `koanf:"database_path"`
	Enabled      []string `koanf:"enabled"`
	Builtins     bool     `koanf:"builtins"`
}

type AssistantConfig struct {
	DirectPriority   int    `koanf:"direct_priority"`
	MaxNotifications int    `koanf:"max_notifications"`
	MaxRetries       int    `koanf:"max_retries"`
	RetryDelayMs     int    `koanf:"retry_delay_ms"`
	SystemPrompt     string `koanf:"system_prompt"`
}

type GovernanceConfig struct {
	PolicyFile string             `koanf:"policy_file"`
	Approval   string             `koanf:"approval"` // deny, allow, console
	Allowlist  []string           `koanf:"allowlist"`
	Denylist   []string           `koanf:"denylist"`
	Policies   []PolicyRuleConfig `koanf:"policies"`
}

// PolicyRuleConfig is one permission rule. Permission and Extension are
// glob patterns; empty matches everything.
type PolicyRuleConfig struct {
	ID         string `koanf:"id" yaml:"id"`
	Effect     string `koanf:"effect" yaml:"effect"` // allow, deny, pending
	Permission string `koanf:"permission" yaml:"permission"`
	Extension  string `koanf:"extension" yaml:"extension"`
	Reason     string `koanf:"reason" yaml:"reason"`
}

// MCPConfig covers both directions: the tool server the launcher exposes
// and the remote tool servers bridged in as extensions.
type MCPConfig struct {
	ServerName string            `koanf:"server_name"`
	Remotes    []MCPRemoteConfig `koanf:"remotes"`
}

// MCPRemoteConfig bridges one tool of a remote MCP server into the launcher
// as an extension. Exactly one of Command or URL is set.
type MCPRemoteConfig struct {
	ID             string   `koanf:"id"`
	Name           string   `koanf:"name"`
	Command        string   `koanf:"command"`
	Args           []string `koanf:"args"`
	URL            string   `koanf:"url"`
	Tool           string   `koanf:"tool"`
	Priority       int      `koanf:"priority"`
	TimeoutSeconds int      `koanf:"timeout_seconds"`
}

// Global k instance
var k = koanf.New(".")

func setDefaults() {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.otlp_timeout_seconds", 10)

	k.Set("llm.provider", "none")
	k.Set("llm.timeout_seconds", 60)

	k.Set("extensions.store", "dir")
	k.Set("extensions.dir", defaultDataDir("extensions"))
	k.Set("extensions.suffix", ".ext")
	k.Set("extensions.database_path", defaultDataDir("launcher.db"))
	k.Set("extensions.builtins", true)

	k.Set("assistant.direct_priority", 9)
	k.Set("assistant.max_notifications", 5)
	k.Set("assistant.max_retries", 2)
	k.Set("assistant.retry_delay_ms", 200)

	k.Set("governance.approval", "deny")
	k.Set("mcp.server_name", "launcher")
}

func defaultDataDir(name string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "launcher", name)
	}
	return filepath.Join(".launcher", name)
}

// Load reads defaults, the file at path and the environment.
func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile also merges "<name>.<profile><ext>" next to path when it
// exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI parses --config, --profile (alias --env) and repeated
// --set key=value from args and loads with those applied last.
func LoadWithCLI(args []string) (*Config, error) {
	path, profile, overrides, err := parseCLI(args)
	if err != nil {
		return nil, err
	}
	return load(path, profile, overrides)
}

func load(path, profile string, overrides map[string]any) (*Config, error) {
	k = koanf.New(".")
	setDefaults()

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if p := profileConfigPath(path, profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile config %s: %w", p, err)
			}
		}
	}

	// 2. Load from ENV (LAUNCHER_LLM_PROVIDER -> llm.provider,
	// LAUNCHER_LLM_API__KEY -> llm.api_key)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	// 3. CLI overrides
	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", "\x00")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "\x00", "_")
}

func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}

func parseCLI(args []string) (path, profile string, overrides map[string]any, err error) {
	overrides = make(map[string]any)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return "", "", nil, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			path = value
		case "--profile", "--env":
			profile = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return "", "", nil, fmt.Errorf("invalid --set %q, expected key=value", value)
			}
			overrides[key] = parseValue(raw)
		}
	}
	return path, profile, overrides, nil
}

// parseValue accepts JSON (objects, arrays, numbers, booleans) and falls
// back to the raw string.
func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			return int64(f)
		}
		return v
	}
	return raw
}

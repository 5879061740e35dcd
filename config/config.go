// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.aimuz.me/vhisper/hotkey"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "vhisper"
	configFileName = "config.json"
)

// Provider names accepted in ASRConfig.Provider.
const (
	ASRDashScope     = "DashScope"
	ASRQwen          = "Qwen"
	ASROpenAIWhisper = "OpenAIWhisper"
	ASRFunASR        = "FunASR"
)

// Provider names accepted in LLMConfig.Provider.
const (
	LLMDashScope = "DashScope"
	LLMOpenAI    = "OpenAI"
	LLMOllama    = "Ollama"
)

// Config represents the application configuration.
type Config struct {
	Hotkey    HotkeyConfig    `json:"hotkey" yaml:"hotkey"`
	ASR       ASRConfig       `json:"asr" yaml:"asr"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Output    OutputConfig    `json:"output" yaml:"output"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// HotkeyConfig holds the push-to-talk binding.
type HotkeyConfig struct {
	Binding hotkey.Binding `json:"binding" yaml:"binding"`
	// Deprecated: single-key trigger from older releases, migrated into Binding on load.
	TriggerKey string `json:"trigger_key,omitempty" yaml:"trigger_key,omitempty"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}

// ASRConfig selects the speech recognition provider.
// A nil provider section means the provider is not configured.
type ASRConfig struct {
	Provider  string          `json:"provider" yaml:"provider"`
	DashScope *DashScopeASR   `json:"dashscope,omitempty" yaml:"dashscope,omitempty"`
	Qwen      *QwenASR        `json:"qwen,omitempty" yaml:"qwen,omitempty"`
	OpenAI    *OpenAIWhisper  `json:"openai,omitempty" yaml:"openai,omitempty"`
	FunASR    *FunASRSettings `json:"funasr,omitempty" yaml:"funasr,omitempty"`
}

// DashScopeASR configures the paraformer realtime service.
type DashScopeASR struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	Model  string `json:"model" yaml:"model"`
}

// QwenASR configures the Qwen realtime transcription service.
type QwenASR struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	Model  string `json:"model" yaml:"model"`
}

// OpenAIWhisper configures the OpenAI transcription endpoint.
type OpenAIWhisper struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	Model    string `json:"model" yaml:"model"`
	Language string `json:"language" yaml:"language"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// FunASRSettings configures a self-hosted FunASR server.
type FunASRSettings struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// LLMConfig selects the optional refinement backend.
type LLMConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Provider  string        `json:"provider" yaml:"provider"`
	DashScope *DashScopeLLM `json:"dashscope,omitempty" yaml:"dashscope,omitempty"`
	OpenAI    *OpenAILLM    `json:"openai,omitempty" yaml:"openai,omitempty"`
	Ollama    *OllamaLLM    `json:"ollama,omitempty" yaml:"ollama,omitempty"`
}

// DashScopeLLM configures the DashScope OpenAI-compatible chat endpoint.
type DashScopeLLM struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	Model  string `json:"model" yaml:"model"`
}

// OpenAILLM configures OpenAI chat completions.
type OpenAILLM struct {
	APIKey      string  `json:"api_key" yaml:"api_key"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// OllamaLLM configures a local Ollama server.
type OllamaLLM struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Model    string `json:"model" yaml:"model"`
}

// OutputConfig controls how text is delivered.
type OutputConfig struct {
	RestoreClipboard bool   `json:"restore_clipboard" yaml:"restore_clipboard"`
	PasteDelayMS     uint64 `json:"paste_delay_ms" yaml:"paste_delay_ms"`
}

// TelemetryConfig holds diagnostics settings.
type TelemetryConfig struct {
	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	SentryDSN   string `json:"sentry_dsn,omitempty" yaml:"sentry_dsn,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Hotkey: HotkeyConfig{
			Binding: hotkey.DefaultBinding(),
			Enabled: true,
		},
		ASR: ASRConfig{Provider: ASRQwen},
		LLM: LLMConfig{
			Enabled:  true,
			Provider: LLMDashScope,
		},
		Output: OutputConfig{
			RestoreClipboard: true,
			PasteDelayMS:     50,
		},
		Telemetry: TelemetryConfig{LogLevel: "info"},
	}
}

// Load loads configuration from the default config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d := Default()
			applyEnvOverrides(&d)
			return &d, nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON. Missing fields keep their defaults.
// The returned error wraps fs.ErrNotExist when the file is absent.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Hotkey.Binding.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hotkey binding: %w", err)
	}
	return cfg, nil
}

// readFile decodes path without environment overrides.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.Hotkey.migrate()
	cfg.applyDefaults()
	return &cfg, nil
}

// Save persists the configuration to the default config file.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveFile(path)
}

// SaveFile persists the configuration as indented JSON at path. Values
// that came from VHISPER_* variables are not written; the file keeps what
// it had for them.
func (c *Config) SaveFile(path string) error {
	if err := c.Hotkey.Binding.Validate(); err != nil {
		return fmt.Errorf("invalid hotkey binding: %w", err)
	}

	base, err := readFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("existing config unreadable, overwriting", "path", path, "error", err)
		}
		d := Default()
		d.applyDefaults()
		base = &d
	}
	out := c.Clone()
	stripEnvOverrides(&out, *base)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Clone returns a deep copy suitable for use as an immutable snapshot.
func (c Config) Clone() Config {
	out := c
	out.Hotkey.Binding = c.Hotkey.Binding.Clone()
	out.ASR.DashScope = clonePtr(c.ASR.DashScope)
	out.ASR.Qwen = clonePtr(c.ASR.Qwen)
	out.ASR.OpenAI = clonePtr(c.ASR.OpenAI)
	out.ASR.FunASR = clonePtr(c.ASR.FunASR)
	out.LLM.DashScope = clonePtr(c.LLM.DashScope)
	out.LLM.OpenAI = clonePtr(c.LLM.OpenAI)
	out.LLM.Ollama = clonePtr(c.LLM.Ollama)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Dir returns the per-user application directory.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Defaults and Migration
// ─────────────────────────────────────────────────────────────────────────────

// migrate converts the legacy trigger_key field into a binding.
func (h *HotkeyConfig) migrate() {
	if h.TriggerKey == "" {
		return
	}
	switch h.TriggerKey {
	case "Alt":
		h.Binding = hotkey.Binding{Key: hotkey.Alt, Modifiers: []hotkey.KeyCode{}}
	case "Control":
		h.Binding = hotkey.Binding{Key: hotkey.Control, Modifiers: []hotkey.KeyCode{}}
	default:
		h.Binding = hotkey.DefaultBinding()
	}
	h.TriggerKey = ""
}

// applyDefaults fills empty fields of configured provider sections.
func (c *Config) applyDefaults() {
	if c.Hotkey.Binding.Key == "" {
		c.Hotkey.Binding = hotkey.DefaultBinding()
	}
	if c.Hotkey.Binding.Modifiers == nil {
		c.Hotkey.Binding.Modifiers = []hotkey.KeyCode{}
	}
	if c.ASR.Provider == "" {
		c.ASR.Provider = ASRQwen
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = LLMDashScope
	}

	if s := c.ASR.DashScope; s != nil {
		setDefault(&s.Model, "paraformer-realtime-v2")
	}
	if s := c.ASR.Qwen; s != nil {
		setDefault(&s.Model, "qwen3-asr-flash-realtime")
	}
	if s := c.ASR.OpenAI; s != nil {
		setDefault(&s.Model, "whisper-1")
		setDefault(&s.Language, "zh")
	}
	if s := c.ASR.FunASR; s != nil {
		setDefault(&s.Endpoint, "http://localhost:10096")
	}

	if s := c.LLM.DashScope; s != nil {
		setDefault(&s.Model, "qwen-plus")
	}
	if s := c.LLM.OpenAI; s != nil {
		setDefault(&s.Model, "gpt-4o-mini")
		if s.Temperature == 0 {
			s.Temperature = 0.3
		}
		if s.MaxTokens == 0 {
			s.MaxTokens = 2000
		}
	}
	if s := c.LLM.Ollama; s != nil {
		setDefault(&s.Endpoint, "http://localhost:11434")
		setDefault(&s.Model, "qwen3:8b")
	}
}

func setDefault(target *string, value string) {
	if strings.TrimSpace(*target) == "" {
		*target = value
	}
}

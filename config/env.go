package config

import (
	"os"
	"strconv"
	"strings"
)

// envString binds a VHISPER_* variable to a string field. field returns nil
// when the owning section is absent; with create set it allocates it.
type envString struct {
	key   string
	field func(c *Config, create bool) *string
}

var envStrings = []envString{
	{"VHISPER_ASR_PROVIDER", func(c *Config, _ bool) *string { return &c.ASR.Provider }},
	{"VHISPER_DASHSCOPE_API_KEY", func(c *Config, create bool) *string {
		return field(&c.ASR.DashScope, create, func(s *DashScopeASR) *string { return &s.APIKey })
	}},
	{"VHISPER_DASHSCOPE_API_KEY", func(c *Config, create bool) *string {
		return field(&c.LLM.DashScope, create, func(s *DashScopeLLM) *string { return &s.APIKey })
	}},
	{"VHISPER_QWEN_API_KEY", func(c *Config, create bool) *string {
		return field(&c.ASR.Qwen, create, func(s *QwenASR) *string { return &s.APIKey })
	}},
	{"VHISPER_OPENAI_API_KEY", func(c *Config, create bool) *string {
		return field(&c.ASR.OpenAI, create, func(s *OpenAIWhisper) *string { return &s.APIKey })
	}},
	{"VHISPER_OPENAI_API_KEY", func(c *Config, create bool) *string {
		return field(&c.LLM.OpenAI, create, func(s *OpenAILLM) *string { return &s.APIKey })
	}},
	{"VHISPER_FUNASR_ENDPOINT", func(c *Config, create bool) *string {
		return field(&c.ASR.FunASR, create, func(s *FunASRSettings) *string { return &s.Endpoint })
	}},
	{"VHISPER_LLM_PROVIDER", func(c *Config, _ bool) *string { return &c.LLM.Provider }},
	{"VHISPER_OLLAMA_ENDPOINT", func(c *Config, create bool) *string {
		return field(&c.LLM.Ollama, create, func(s *OllamaLLM) *string { return &s.Endpoint })
	}},
	{"VHISPER_OLLAMA_MODEL", func(c *Config, create bool) *string {
		return field(&c.LLM.Ollama, create, func(s *OllamaLLM) *string { return &s.Model })
	}},
	{"VHISPER_LOG_LEVEL", func(c *Config, _ bool) *string { return &c.Telemetry.LogLevel }},
	{"VHISPER_SENTRY_DSN", func(c *Config, _ bool) *string { return &c.Telemetry.SentryDSN }},
	{"VHISPER_METRICS_ADDR", func(c *Config, _ bool) *string { return &c.Telemetry.MetricsAddr }},
}

const envLLMEnabled = "VHISPER_LLM_ENABLED"

func field[T any](section **T, create bool, get func(*T) *string) *string {
	if *section == nil {
		if !create {
			return nil
		}
		*section = new(T)
	}
	return get(*section)
}

// applyEnvOverrides lets VHISPER_* variables take precedence over the file.
// Setting a provider credential creates that provider's section.
func applyEnvOverrides(cfg *Config) {
	for _, e := range envStrings {
		if v, ok := lookup(e.key); ok {
			*e.field(cfg, true) = v
		}
	}
	if v, ok := lookupBool(envLLMEnabled); ok {
		cfg.LLM.Enabled = v
	}
	cfg.applyDefaults()
}

// stripEnvOverrides undoes applyEnvOverrides before cfg is written to disk.
// A field still holding its environment value gets the value from base, the
// configuration as stored in the file; sections that exist only because of
// the environment are dropped.
func stripEnvOverrides(cfg *Config, base Config) {
	for _, e := range envStrings {
		v, ok := lookup(e.key)
		if !ok {
			continue
		}
		p := e.field(cfg, false)
		if p == nil || *p != v {
			continue
		}
		if bp := e.field(&base, false); bp != nil {
			*p = *bp
		} else {
			*p = ""
		}
	}
	if v, ok := lookupBool(envLLMEnabled); ok && cfg.LLM.Enabled == v {
		cfg.LLM.Enabled = base.LLM.Enabled
	}

	empty := emptySections()
	prune(&cfg.ASR.DashScope, base.ASR.DashScope, *empty.ASR.DashScope)
	prune(&cfg.ASR.Qwen, base.ASR.Qwen, *empty.ASR.Qwen)
	prune(&cfg.ASR.OpenAI, base.ASR.OpenAI, *empty.ASR.OpenAI)
	prune(&cfg.ASR.FunASR, base.ASR.FunASR, *empty.ASR.FunASR)
	prune(&cfg.LLM.DashScope, base.LLM.DashScope, *empty.LLM.DashScope)
	prune(&cfg.LLM.OpenAI, base.LLM.OpenAI, *empty.LLM.OpenAI)
	prune(&cfg.LLM.Ollama, base.LLM.Ollama, *empty.LLM.Ollama)
}

// emptySections returns every provider section with only defaults filled in.
func emptySections() Config {
	c := Config{
		ASR: ASRConfig{
			DashScope: &DashScopeASR{},
			Qwen:      &QwenASR{},
			OpenAI:    &OpenAIWhisper{},
			FunASR:    &FunASRSettings{},
		},
		LLM: LLMConfig{
			DashScope: &DashScopeLLM{},
			OpenAI:    &OpenAILLM{},
			Ollama:    &OllamaLLM{},
		},
	}
	c.applyDefaults()
	return c
}

func prune[T comparable](section **T, base *T, empty T) {
	if base == nil && *section != nil && **section == empty {
		*section = nil
	}
}

func lookup(envKey string) (string, bool) {
	value, ok := os.LookupEnv(envKey)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func lookupBool(envKey string) (bool, bool) {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return false, false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return parsed, true
}

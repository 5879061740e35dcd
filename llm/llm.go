// Package llm refines recognized text with a chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.aimuz.me/vhisper/config"
)

// Refiner improves a raw transcript. Refinement is best effort: callers
// keep the original text when Refine fails.
type Refiner interface {
	Refine(ctx context.Context, text string) (string, error)
}

var (
	// ErrNotConfigured means the selected backend has no usable settings.
	ErrNotConfigured = errors.New("llm provider not configured")
	// ErrUnknownProvider is returned for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrAPI wraps errors reported by the backend.
	ErrAPI = errors.New("llm api error")
)

const dashscopeCompatibleURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Option configures a Refiner.
type Option func(*options)

type options struct {
	http   *http.Client
	detect func(text string) string
}

// WithHTTPClient sets the client used for plain HTTP backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.http = c }
}

// WithLanguageDetector adds a note naming the transcript language to the
// prompt. detect returns an empty string when unsure.
func WithLanguageDetector(detect func(text string) string) Option {
	return func(o *options) { o.detect = detect }
}

// New creates the Refiner selected by cfg.Provider.
func New(cfg config.LLMConfig, opts ...Option) (Refiner, error) {
	o := options{http: &http.Client{Timeout: 60 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Provider {
	case config.LLMDashScope:
		c := cfg.DashScope
		if c == nil || c.APIKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return newOpenAIRefiner(c.APIKey, dashscopeCompatibleURL, c.Model, 0, 0, o), nil
	case config.LLMOpenAI:
		c := cfg.OpenAI
		if c == nil || c.APIKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return newOpenAIRefiner(c.APIKey, c.BaseURL, c.Model, c.Temperature, c.MaxTokens, o), nil
	case config.LLMOllama:
		c := cfg.Ollama
		if c == nil || c.Endpoint == "" || c.Model == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return &ollamaRefiner{endpoint: c.Endpoint, model: c.Model, opts: o}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Model returns the model name the selected backend would use.
func Model(cfg config.LLMConfig) string {
	switch cfg.Provider {
	case config.LLMDashScope:
		if cfg.DashScope != nil {
			return cfg.DashScope.Model
		}
	case config.LLMOpenAI:
		if cfg.OpenAI != nil {
			return cfg.OpenAI.Model
		}
	case config.LLMOllama:
		if cfg.Ollama != nil {
			return cfg.Ollama.Model
		}
	}
	return ""
}

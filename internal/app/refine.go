package app

import (
	"context"
	"log/slog"
	"time"

	"go.aimuz.me/vhisper/cache"
	"go.aimuz.me/vhisper/config"
	"go.aimuz.me/vhisper/langdetect"
	"go.aimuz.me/vhisper/llm"
)

// cachedRefiner remembers refinements so repeating a phrase does not cost
// another model call.
type cachedRefiner struct {
	cache    *cache.Cache
	next     llm.Refiner
	provider string
	model    string
}

func (r *cachedRefiner) Refine(ctx context.Context, text string) (string, error) {
	key := cache.GenerateKey(r.provider, r.model, text)

	if r.cache != nil {
		if entry, ok := r.cache.Get(key); ok {
			slog.Debug("refinement cache hit", "provider", r.provider)
			return entry.Text, nil
		}
	}

	refined, err := r.next.Refine(ctx, text)
	if err != nil {
		return "", err
	}

	if r.cache != nil && refined != "" {
		entry := &cache.Entry{
			Text:      refined,
			Provider:  r.provider,
			Model:     r.model,
			CreatedAt: time.Now(),
		}
		if err := r.cache.Set(key, entry, cache.DefaultTTL); err != nil {
			slog.Warn("cache refinement", "error", err)
		}
	}
	return refined, nil
}

// refinerFactory builds refiners that note the detected language in the
// prompt and go through c.
func refinerFactory(c *cache.Cache) func(config.LLMConfig) (llm.Refiner, error) {
	return func(cfg config.LLMConfig) (llm.Refiner, error) {
		r, err := llm.New(cfg, llm.WithLanguageDetector(langdetect.Name))
		if err != nil {
			return nil, err
		}
		return &cachedRefiner{
			cache:    c,
			next:     r,
			provider: cfg.Provider,
			model:    llm.Model(cfg),
		}, nil
	}
}

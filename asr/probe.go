package asr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"go.aimuz.me/vhisper/config"
)

var dashscopeModelsURL = "https://dashscope.aliyuncs.com/api/v1/models"

// TestAPI checks that provider is reachable with the credentials in cfg.
// It never runs a recognition session and gives up after five seconds.
func TestAPI(ctx context.Context, provider string, cfg config.ASRConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	switch provider {
	case config.ASRDashScope:
		if cfg.DashScope == nil || cfg.DashScope.APIKey == "" {
			return "", fmt.Errorf("%w: %s", ErrNotConfigured, provider)
		}
		return probeDashScope(ctx, cfg.DashScope.APIKey)
	case config.ASRQwen:
		if cfg.Qwen == nil || cfg.Qwen.APIKey == "" {
			return "", fmt.Errorf("%w: %s", ErrNotConfigured, provider)
		}
		return probeDashScope(ctx, cfg.Qwen.APIKey)
	case config.ASRFunASR:
		if cfg.FunASR == nil || cfg.FunASR.Endpoint == "" {
			return "", fmt.Errorf("%w: %s", ErrNotConfigured, provider)
		}
		return probeFunASR(ctx, cfg.FunASR.Endpoint)
	case config.ASROpenAIWhisper:
		if cfg.OpenAI == nil || cfg.OpenAI.APIKey == "" {
			return "", fmt.Errorf("%w: %s", ErrNotConfigured, provider)
		}
		return probeOpenAI(ctx, *cfg.OpenAI)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

func probeDashScope(ctx context.Context, apiKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dashscopeModelsURL, nil)
	if err != nil {
		return "", networkError("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", networkError("request models: timed out", err)
		}
		return "", networkError("request models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiError("invalid API key: HTTP " + resp.Status)
	}
	return "API key verified", nil
}

func probeFunASR(ctx context.Context, endpoint string) (string, error) {
	conn, _, err := insecureDialer().DialContext(ctx, wssEndpoint(endpoint), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", networkError("connect: timed out", err)
		}
		return "", networkError("connect", err)
	}
	conn.Close()
	return "connected", nil
}

func probeOpenAI(ctx context.Context, cfg config.OpenAIWhisper) (string, error) {
	client := openai.NewClient(openaiOptions(cfg.APIKey, cfg.BaseURL)...)
	if _, err := client.Models.List(ctx); err != nil {
		return "", openaiError(err)
	}
	return "API key verified", nil
}

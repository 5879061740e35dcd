package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiRefiner serves OpenAI and OpenAI-compatible chat endpoints.
type openaiRefiner struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	opts        options
}

func newOpenAIRefiner(apiKey, baseURL, model string, temperature float64, maxTokens int, o options) *openaiRefiner {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(o.http),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &openaiRefiner{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		opts:        o,
	}
}

func (r *openaiRefiner) Refine(ctx context.Context, text string) (string, error) {
	msgs := buildRefineMessages(text, r.opts)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(msgs[0].Content),
			openai.UserMessage(msgs[1].Content),
		},
	}
	if r.temperature > 0 {
		params.Temperature = openai.Float(r.temperature)
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(r.maxTokens))
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: HTTP %d: %s", ErrAPI, apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrAPI)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

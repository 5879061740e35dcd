package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaRefiner talks to a local Ollama server.
type ollamaRefiner struct {
	endpoint string
	model    string
	opts     options
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message *Message `json:"message"`
	Error   string   `json:"error"`
}

func (r *ollamaRefiner) Refine(ctx context.Context, text string) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    r.model,
		Messages: buildRefineMessages(text, r.opts),
		Stream:   false,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(r.endpoint, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.opts.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP %s: %s", ErrAPI, resp.Status, body)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", ErrAPI, err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrAPI, chatResp.Error)
	}
	if chatResp.Message == nil {
		return strings.TrimSpace(text), nil
	}
	return strings.TrimSpace(chatResp.Message.Content), nil
}

type ollamaTags struct {
	Models *[]struct {
		Name string `json:"name"`
	} `json:"models"`
}

// TestOllama checks that the server at endpoint is up and serves model.
// A model matches when its tagged name starts with model.
func TestOllama(ctx context.Context, endpoint, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := strings.TrimRight(endpoint, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: ollama HTTP %s", ErrAPI, resp.Status)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("%w: decode tags: %v", ErrAPI, err)
	}
	if tags.Models == nil {
		return "connected", nil
	}

	var names []string
	for _, m := range *tags.Models {
		if strings.HasPrefix(m.Name, model) {
			return fmt.Sprintf("connected, model %s available", model), nil
		}
		names = append(names, m.Name)
	}
	return "", fmt.Errorf("%w: model %s not found, available: %s", ErrAPI, model, strings.Join(names, ", "))
}

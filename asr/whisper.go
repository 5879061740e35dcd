package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.aimuz.me/vhisper/config"
)

// Whisper uploads a WAV container to the OpenAI transcription endpoint.
type Whisper struct {
	client   openai.Client
	model    string
	language string
}

// NewWhisper creates an OpenAI Whisper recognizer.
func NewWhisper(cfg config.OpenAIWhisper) *Whisper {
	return &Whisper{
		client:   openai.NewClient(openaiOptions(cfg.APIKey, cfg.BaseURL)...),
		model:    cfg.Model,
		language: cfg.Language,
	}
}

func openaiOptions(apiKey, baseURL string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return opts
}

// Recognize expects audio to be a complete WAV file. sampleRate is
// carried by the container header and is not used.
func (w *Whisper) Recognize(ctx context.Context, audio []byte, _ int) (Result, error) {
	if len(audio) == 0 {
		return Result{}, encodingError("empty audio", nil)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Result{}, openaiError(err)
	}
	return Result{Text: normalize(resp.Text), IsFinal: true}, nil
}

// openaiError maps API status errors to KindAPI and everything else to
// KindNetwork.
func openaiError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("HTTP %d", apiErr.StatusCode)
		if apiErr.Message != "" {
			msg += ": " + apiErr.Message
		}
		return apiError(msg)
	}
	return networkError("openai request", err)
}

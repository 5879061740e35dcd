// Package asr implements streaming speech recognition clients.
//
// Every provider implements Recognizer. A call opens its own session,
// streams the whole utterance, waits for the transcript and tears the
// session down again. Nothing is pooled and failed calls are not retried.
package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.aimuz.me/vhisper/config"
	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of one recognition session.
type Result struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Recognizer turns 16-bit PCM (or a WAV container, for providers that
// require one) into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, sampleRate int) (Result, error)
}

var (
	// ErrUnknownProvider is returned by New for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown asr provider")
	// ErrNotConfigured is returned by New when the selected provider has no settings.
	ErrNotConfigured = errors.New("asr provider not configured")
)

const (
	defaultAckTimeout  = 10 * time.Second
	defaultIdleTimeout = 30 * time.Second
	probeTimeout       = 5 * time.Second
)

// New builds the recognizer selected by cfg.Provider.
func New(cfg config.ASRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case config.ASRDashScope:
		if cfg.DashScope == nil || cfg.DashScope.APIKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return NewDashScope(cfg.DashScope.APIKey, cfg.DashScope.Model), nil
	case config.ASRQwen:
		if cfg.Qwen == nil || cfg.Qwen.APIKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return NewQwen(cfg.Qwen.APIKey, cfg.Qwen.Model), nil
	case config.ASRFunASR:
		if cfg.FunASR == nil || cfg.FunASR.Endpoint == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return NewFunASR(cfg.FunASR.Endpoint), nil
	case config.ASROpenAIWhisper:
		if cfg.OpenAI == nil || cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, cfg.Provider)
		}
		return NewWhisper(*cfg.OpenAI), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// normalize trims the transcript and puts it in NFC form.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// DashScopeChunkSize is the binary frame size for 100 ms of 16-bit mono audio.
func DashScopeChunkSize(sampleRate int) int {
	return sampleRate * 2 / 10
}

// FunASRChunkSize is the binary frame size for 200 ms of 16-bit mono audio.
func FunASRChunkSize(sampleRate int) int {
	return sampleRate * 2 / 5
}

// QwenChunkSize is the raw byte length carried by each append event.
const QwenChunkSize = 3200

// chunks splits data into consecutive slices of at most size bytes.
func chunks(data []byte, size int) [][]byte {
	out := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

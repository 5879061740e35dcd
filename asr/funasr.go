package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// FunASR talks to a self-hosted FunASR websocket server. The server is
// always reached over TLS and its certificate is not verified.
type FunASR struct {
	endpoint string
	dialer   *websocket.Dialer

	idleTimeout time.Duration
}

// NewFunASR creates a recognizer for endpoint. http, https and ws schemes
// are rewritten to wss.
func NewFunASR(endpoint string) *FunASR {
	return &FunASR{
		endpoint:    wssEndpoint(endpoint),
		dialer:      insecureDialer(),
		idleTimeout: defaultIdleTimeout,
	}
}

func wssEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	for _, scheme := range []string{"http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(endpoint, scheme) {
			return "wss://" + endpoint[len(scheme):]
		}
	}
	return "wss://" + endpoint
}

type funasrStart struct {
	ChunkSize     []int  `json:"chunk_size"`
	ChunkInterval int    `json:"chunk_interval"`
	WavName       string `json:"wav_name"`
	WavFormat     string `json:"wav_format"`
	AudioFS       int    `json:"audio_fs"`
	ITN           bool   `json:"itn"`
	IsSpeaking    bool   `json:"is_speaking"`
}

type funasrEnd struct {
	IsSpeaking bool `json:"is_speaking"`
}

type funasrMessage struct {
	Text    *string `json:"text"`
	IsFinal bool    `json:"is_final"`
	Mode    string  `json:"mode"`
}

// Recognize streams 16-bit PCM audio. Each server message carries the
// cumulative transcript, so the latest one wins.
func (f *FunASR) Recognize(ctx context.Context, audio []byte, sampleRate int) (Result, error) {
	chunkSize := FunASRChunkSize(sampleRate)
	if chunkSize <= 0 {
		return Result{}, encodingError(fmt.Sprintf("invalid sample rate %d", sampleRate), nil)
	}

	s, err := dial(ctx, f.dialer, f.endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	defer s.close()

	start := funasrStart{
		ChunkSize:     []int{5, 10, 5},
		ChunkInterval: 10,
		WavName:       "audio",
		WavFormat:     "pcm",
		AudioFS:       sampleRate,
		ITN:           true,
		IsSpeaking:    true,
	}
	if err := s.sendJSON(start); err != nil {
		return Result{}, err
	}

	for _, chunk := range chunks(audio, chunkSize) {
		if err := s.sendBinary(chunk); err != nil {
			return Result{}, err
		}
	}
	if err := s.sendJSON(funasrEnd{IsSpeaking: false}); err != nil {
		return Result{}, err
	}

	var text string
	for {
		data, err := s.readText(f.idleTimeout)
		if err != nil {
			if text != "" {
				slog.Warn("funasr session ended early, keeping partial result", "error", err)
				return Result{Text: normalize(text), IsFinal: true}, nil
			}
			return Result{}, s.failure("read result", err)
		}

		var msg funasrMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("funasr skip message", "error", err)
			continue
		}
		if msg.Text != nil {
			text = *msg.Text
		}
		if msg.IsFinal || msg.Mode == "offline" {
			return Result{Text: normalize(text), IsFinal: true}, nil
		}
	}
}

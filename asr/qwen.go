package asr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const qwenURL = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"

// Qwen speaks the OpenAI-style realtime protocol served by DashScope
// for qwen-asr models.
type Qwen struct {
	apiKey string
	model  string
	url    string
	dialer *websocket.Dialer

	ackTimeout  time.Duration
	idleTimeout time.Duration
}

// NewQwen creates a Qwen realtime recognizer.
func NewQwen(apiKey, model string) *Qwen {
	return &Qwen{
		apiKey:      apiKey,
		model:       model,
		url:         qwenURL,
		dialer:      websocket.DefaultDialer,
		ackTimeout:  defaultAckTimeout,
		idleTimeout: defaultIdleTimeout,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────────────────────────────────────────

type qwenSessionUpdate struct {
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	Session qwenSession `json:"session"`
}

type qwenSession struct {
	Modalities              []string          `json:"modalities"`
	InputAudioFormat        string            `json:"input_audio_format"`
	SampleRate              int               `json:"sample_rate"`
	InputAudioTranscription qwenTranscription `json:"input_audio_transcription"`
	// nil selects manual mode: the utterance ends on commit.
	TurnDetection *struct{} `json:"turn_detection"`
}

type qwenTranscription struct {
	Language string `json:"language"`
}

type qwenAppend struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

type qwenCommit struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

type qwenEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Text       string `json:"text"`
	Stash      string `json:"stash"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeQwen(data []byte) (qwenEvent, error) {
	var ev qwenEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, apiError("parse event: " + err.Error())
	}
	if ev.Error != nil {
		msg := ev.Error.Message
		if ev.Error.Code != "" {
			msg = ev.Error.Code + ": " + msg
		}
		return ev, apiError(msg)
	}
	return ev, nil
}

func qwenEventID() string {
	return "event_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

// Recognize streams 16-bit PCM audio as base64 append events and returns
// the completed transcription.
func (q *Qwen) Recognize(ctx context.Context, audio []byte, sampleRate int) (Result, error) {
	header := bearer(q.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	s, err := dial(ctx, q.dialer, q.url+"?model="+url.QueryEscape(q.model), header)
	if err != nil {
		return Result{}, err
	}
	defer s.close()

	update := qwenSessionUpdate{
		EventID: qwenEventID(),
		Type:    "session.update",
		Session: qwenSession{
			Modalities:              []string{"text"},
			InputAudioFormat:        "pcm",
			SampleRate:              sampleRate,
			InputAudioTranscription: qwenTranscription{Language: "zh"},
		},
	}
	if err := s.sendJSON(update); err != nil {
		return Result{}, err
	}

	for {
		data, err := s.readText(q.ackTimeout)
		if err != nil {
			return Result{}, s.failure("wait for session", err)
		}
		ev, err := decodeQwen(data)
		if err != nil {
			return Result{}, err
		}
		if ev.Type == "session.created" || ev.Type == "session.updated" {
			break
		}
	}

	if len(audio) == 0 {
		return Result{}, encodingError("empty audio", nil)
	}
	slog.Debug("qwen session ready", "bytes", len(audio))

	for _, chunk := range chunks(audio, QwenChunkSize) {
		ev := qwenAppend{
			EventID: qwenEventID(),
			Type:    "input_audio_buffer.append",
			Audio:   base64.StdEncoding.EncodeToString(chunk),
		}
		if err := s.sendJSON(ev); err != nil {
			return Result{}, err
		}
	}
	if err := s.sendJSON(qwenCommit{EventID: qwenEventID(), Type: "input_audio_buffer.commit"}); err != nil {
		return Result{}, err
	}

	var provisional string
	for {
		data, err := s.readText(q.idleTimeout)
		if err != nil {
			if provisional != "" {
				slog.Warn("qwen session ended early, keeping partial result", "error", err)
				return Result{Text: normalize(provisional), IsFinal: true}, nil
			}
			return Result{}, s.failure("read result", err)
		}
		ev, err := decodeQwen(data)
		if err != nil {
			return Result{}, err
		}

		switch ev.Type {
		case "conversation.item.input_audio_transcription.completed":
			text := ev.Transcript
			if text == "" {
				text = provisional
			}
			return Result{Text: normalize(text), IsFinal: true}, nil
		case "conversation.item.input_audio_transcription.text":
			switch {
			case ev.Transcript != "":
				provisional = ev.Transcript
			case ev.Text != "" || ev.Stash != "":
				provisional = ev.Text + ev.Stash
			}
		case "error":
			return Result{}, apiError("error event")
		}
	}
}

package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const dashscopeURL = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"

// DashScope speaks the DashScope realtime recognition protocol
// (paraformer models): run-task, binary audio, finish-task.
type DashScope struct {
	apiKey string
	model  string
	url    string
	dialer *websocket.Dialer

	ackTimeout  time.Duration
	idleTimeout time.Duration
}

// NewDashScope creates a DashScope recognizer.
func NewDashScope(apiKey, model string) *DashScope {
	return &DashScope{
		apiKey:      apiKey,
		model:       model,
		url:         dashscopeURL,
		dialer:      websocket.DefaultDialer,
		ackTimeout:  defaultAckTimeout,
		idleTimeout: defaultIdleTimeout,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────────────────────────────────────────

type dsHeader struct {
	Action       string `json:"action,omitempty"`
	TaskID       string `json:"task_id"`
	Streaming    string `json:"streaming,omitempty"`
	Event        string `json:"event,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type dsRequest struct {
	Header  dsHeader `json:"header"`
	Payload any      `json:"payload"`
}

type dsRunPayload struct {
	TaskGroup  string       `json:"task_group"`
	Task       string       `json:"task"`
	Function   string       `json:"function"`
	Model      string       `json:"model"`
	Parameters dsParameters `json:"parameters"`
	Input      struct{}     `json:"input"`
}

type dsParameters struct {
	Format        string   `json:"format"`
	SampleRate    int      `json:"sample_rate"`
	LanguageHints []string `json:"language_hints,omitempty"`
}

type dsFinishPayload struct {
	Input struct{} `json:"input"`
}

type dsResponse struct {
	Header  dsHeader `json:"header"`
	Payload struct {
		Output struct {
			Sentence *dsSentence `json:"sentence"`
		} `json:"output"`
	} `json:"payload"`
}

type dsSentence struct {
	Text        string `json:"text"`
	SentenceEnd bool   `json:"sentence_end"`
}

func decodeDashScope(data []byte) (dsResponse, error) {
	var resp dsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, apiError("parse response: " + err.Error())
	}
	if resp.Header.ErrorCode != "" {
		return resp, apiError(resp.Header.ErrorCode + ": " + resp.Header.ErrorMessage)
	}
	return resp, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

// Recognize streams 16-bit PCM audio and returns the full transcript.
func (d *DashScope) Recognize(ctx context.Context, audio []byte, sampleRate int) (Result, error) {
	chunkSize := DashScopeChunkSize(sampleRate)
	if chunkSize <= 0 {
		return Result{}, encodingError(fmt.Sprintf("invalid sample rate %d", sampleRate), nil)
	}

	s, err := dial(ctx, d.dialer, d.url, bearer(d.apiKey))
	if err != nil {
		return Result{}, err
	}
	defer s.close()

	taskID := strings.ReplaceAll(uuid.NewString(), "-", "")
	run := dsRequest{
		Header: dsHeader{Action: "run-task", TaskID: taskID, Streaming: "duplex"},
		Payload: dsRunPayload{
			TaskGroup: "audio",
			Task:      "asr",
			Function:  "recognition",
			Model:     d.model,
			Parameters: dsParameters{
				Format:        "pcm",
				SampleRate:    sampleRate,
				LanguageHints: []string{"zh", "en"},
			},
		},
	}
	if err := s.sendJSON(run); err != nil {
		return Result{}, err
	}

	for {
		data, err := s.readText(d.ackTimeout)
		if err != nil {
			return Result{}, s.failure("wait for task-started", err)
		}
		resp, err := decodeDashScope(data)
		if err != nil {
			return Result{}, err
		}
		if resp.Header.Event == "task-started" {
			break
		}
	}
	slog.Debug("dashscope task started", "task_id", taskID)

	for _, chunk := range chunks(audio, chunkSize) {
		if err := s.sendBinary(chunk); err != nil {
			return Result{}, err
		}
	}

	finish := dsRequest{
		Header:  dsHeader{Action: "finish-task", TaskID: taskID, Streaming: "duplex"},
		Payload: dsFinishPayload{},
	}
	if err := s.sendJSON(finish); err != nil {
		return Result{}, err
	}

	var text sentences
	for {
		data, err := s.readText(d.idleTimeout)
		if err != nil {
			if partial := text.String(); partial != "" {
				slog.Warn("dashscope session ended early, keeping partial result", "error", err)
				return Result{Text: normalize(partial), IsFinal: true}, nil
			}
			return Result{}, s.failure("read result", err)
		}
		resp, err := decodeDashScope(data)
		if err != nil {
			return Result{}, err
		}

		switch resp.Header.Event {
		case "result-generated":
			if st := resp.Payload.Output.Sentence; st != nil {
				slog.Debug("dashscope partial", "text", st.Text, "end", st.SentenceEnd)
				text.add(st.Text, st.SentenceEnd)
			}
		case "task-finished":
			return Result{Text: normalize(text.String()), IsFinal: true}, nil
		}
	}
}

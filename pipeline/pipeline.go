// Package pipeline turns a push-to-talk recording into pasted text:
// capture, gate, encode, recognize, refine, emit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/vhisper/asr"
	"go.aimuz.me/vhisper/audio"
	"go.aimuz.me/vhisper/config"
	"go.aimuz.me/vhisper/llm"
	"go.aimuz.me/vhisper/telemetry"
)

var (
	// ErrNoSignal means the capture was effectively silent, which usually
	// means the microphone permission was not granted.
	ErrNoSignal = errors.New("no audio signal, check microphone permission")
	// ErrTooQuiet means there was signal but too little to hold speech.
	ErrTooQuiet = errors.New("audio too quiet, speak louder or move closer")
	// ErrAudio wraps capture device failures.
	ErrAudio = errors.New("audio capture failed")
	// ErrOutput wraps clipboard and paste failures.
	ErrOutput = errors.New("output failed")
)

// Amplitude gate thresholds on the peak absolute sample.
const (
	NoSignalPeak = 0.001
	QuietPeak    = 0.05
)

// Recorder is the capture device.
type Recorder interface {
	Start() error
	Stop() ([]float32, error)
	SampleRate() int
	Channels() int
}

// Emitter delivers the final text.
type Emitter interface {
	Emit(text string, restoreClipboard bool, pasteDelayMs uint64, pid *int32) error
}

// RecognizerFactory builds the recognizer for a config snapshot.
type RecognizerFactory func(cfg config.ASRConfig) (asr.Recognizer, error)

// RefinerFactory builds the refiner for a config snapshot.
type RefinerFactory func(cfg config.LLMConfig) (llm.Refiner, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecognizerFactory replaces asr.New.
func WithRecognizerFactory(f RecognizerFactory) Option {
	return func(p *Pipeline) { p.newRecognizer = f }
}

// WithRefinerFactory replaces llm.New.
func WithRefinerFactory(f RefinerFactory) Option {
	return func(p *Pipeline) { p.newRefiner = f }
}

// WithMetrics records run outcomes on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline orchestrates one recording at a time.
type Pipeline struct {
	recorder      Recorder
	emitter       Emitter
	newRecognizer RecognizerFactory
	newRefiner    RefinerFactory
	metrics       *telemetry.Metrics

	cfg atomic.Pointer[config.Config]

	// mu guards recording and the recorder. It is never held across
	// network calls.
	mu        sync.Mutex
	recording bool
}

// New creates a Pipeline reading settings from cfg.
func New(rec Recorder, em Emitter, cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		recorder:      rec,
		emitter:       em,
		newRecognizer: asr.New,
		newRefiner: func(c config.LLMConfig) (llm.Refiner, error) {
			return llm.New(c)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.SetConfig(cfg)
	return p
}

// SetConfig swaps the settings used by subsequent runs.
func (p *Pipeline) SetConfig(cfg config.Config) {
	c := cfg.Clone()
	p.cfg.Store(&c)
}

// Config returns the current settings snapshot.
func (p *Pipeline) Config() config.Config {
	return p.cfg.Load().Clone()
}

// Recording reports whether a capture is active.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// StartRecording begins a capture. Calling it while already recording is
// a no-op.
func (p *Pipeline) StartRecording() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recording {
		return nil
	}
	if err := p.recorder.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrAudio, err)
	}
	p.recording = true
	p.metrics.RecordingStarted(context.Background())
	return nil
}

// Capture is a drained recording.
type Capture struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// StopAndProcess ends the capture and runs it through recognition,
// optional refinement and output. pid names the process that was
// frontmost when recording started. An empty capture yields "" and no
// error.
func (p *Pipeline) StopAndProcess(ctx context.Context, pid *int32) (string, error) {
	c, err := p.Stop()
	if err != nil {
		return "", err
	}
	return p.Process(ctx, c, pid)
}

// Stop moves the recorder to idle and takes its buffer. It only holds the
// recorder lock, so a new recording may start while the capture is
// processed.
func (p *Pipeline) Stop() (Capture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recording = false
	samples, err := p.recorder.Stop()
	c := Capture{
		Samples:    samples,
		SampleRate: p.recorder.SampleRate(),
		Channels:   p.recorder.Channels(),
	}
	if err != nil {
		if len(samples) == 0 {
			return Capture{}, p.fail(context.Background(), "audio", fmt.Errorf("%w: %w", ErrAudio, err))
		}
		slog.Warn("stop recorder", "error", err)
	}
	return c, nil
}

// Process runs a capture through the gate, recognition, refinement and
// output.
func (p *Pipeline) Process(ctx context.Context, c Capture, pid *int32) (string, error) {
	if len(c.Samples) == 0 {
		slog.Warn("empty capture")
		return "", nil
	}

	start := time.Now()
	cfg := p.cfg.Load().Clone()

	stats, err := Gate(c.Samples)
	slog.Info("audio stats", "max", stats.Max, "avg", stats.Avg, "rms", stats.RMS, "non_zero", stats.NonZero, "len", stats.Len)
	if err != nil {
		kind := "too_quiet"
		if errors.Is(err, ErrNoSignal) {
			kind = "no_signal"
		}
		return "", p.fail(ctx, kind, err)
	}

	data, err := encode(cfg.ASR.Provider, c.Samples, c.SampleRate, c.Channels)
	if err != nil {
		return "", p.fail(ctx, "encoding", err)
	}

	recognizer, err := p.newRecognizer(cfg.ASR)
	if err != nil {
		return "", p.fail(ctx, "config", err)
	}
	res, err := recognizer.Recognize(ctx, data, c.SampleRate)
	if err != nil {
		return "", p.fail(ctx, asr.KindOf(err).String(), err)
	}
	text := res.Text
	slog.Info("recognized", "provider", cfg.ASR.Provider, "chars", len([]rune(text)))

	if cfg.LLM.Enabled && text != "" {
		text = p.refine(ctx, cfg.LLM, text)
	}

	if text != "" {
		if err := p.emitter.Emit(text, cfg.Output.RestoreClipboard, cfg.Output.PasteDelayMS, pid); err != nil {
			return "", p.fail(ctx, "output", fmt.Errorf("%w: %w", ErrOutput, err))
		}
	}

	p.metrics.Processed(ctx, cfg.ASR.Provider, time.Since(start))
	return text, nil
}

func (p *Pipeline) refine(ctx context.Context, cfg config.LLMConfig, text string) string {
	refiner, err := p.newRefiner(cfg)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			slog.Debug("refinement skipped", "provider", cfg.Provider)
		} else {
			slog.Warn("create refiner", "error", err)
		}
		return text
	}

	refined, err := refiner.Refine(ctx, text)
	if err != nil {
		slog.Warn("refine text", "provider", cfg.Provider, "error", err)
		return text
	}
	if refined == "" {
		return text
	}
	return refined
}

func (p *Pipeline) fail(ctx context.Context, kind string, err error) error {
	p.metrics.Failed(ctx, kind)
	return err
}

// Gate rejects buffers that cannot plausibly contain speech.
func Gate(samples []float32) (audio.Stats, error) {
	st := audio.Analyze(samples)
	switch {
	case st.Max < NoSignalPeak:
		return st, ErrNoSignal
	case st.Max < QuietPeak:
		return st, ErrTooQuiet
	}
	return st, nil
}

// encode produces the payload the provider expects: a WAV file for the
// OpenAI upload, raw PCM16LE for the streaming providers.
func encode(provider string, samples []float32, rate, channels int) ([]byte, error) {
	if provider == config.ASROpenAIWhisper {
		return audio.EncodeWAV(samples, rate, channels)
	}
	return audio.EncodePCM16(samples), nil
}

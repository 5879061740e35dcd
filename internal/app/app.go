// Package app wires the recorder, pipeline and hotkey supervisor together
// and exposes the command surface used by a UI layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.aimuz.me/vhisper/asr"
	"go.aimuz.me/vhisper/cache"
	"go.aimuz.me/vhisper/config"
	"go.aimuz.me/vhisper/hotkey"
	"go.aimuz.me/vhisper/internal/crash"
	"go.aimuz.me/vhisper/llm"
	"go.aimuz.me/vhisper/pipeline"
	"go.aimuz.me/vhisper/telemetry"
)

// Output is the text sink. Frontmost reports the focused process so the
// paste can go back to it.
type Output interface {
	pipeline.Emitter
	Frontmost() (pid int32, ok bool)
}

// Notifier shows processing failures outside the UI.
type Notifier interface {
	Error(message string)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Config     config.Config
	ConfigPath string // empty means config.Path()
	Recorder   pipeline.Recorder
	Output     Output
	Listener   hotkey.Listener
	Events     Events
	Notifier   Notifier // optional
	Cache      *cache.Cache
	Metrics    *telemetry.Metrics

	// NewRecognizer overrides asr.New.
	NewRecognizer pipeline.RecognizerFactory
}

// Service is the application root.
type Service struct {
	cfgMu   sync.RWMutex
	cfg     config.Config
	cfgPath string

	events   Events
	notifier Notifier
	pipeline *pipeline.Pipeline
	detector *hotkey.Detector
	hotkey   *supervisorAdapter
	recorder *recorder

	runMu  sync.Mutex
	runCtx context.Context
}

// New builds a Service from d.
func New(d Deps) *Service {
	s := &Service{
		cfg:      d.Config.Clone(),
		cfgPath:  d.ConfigPath,
		events:   d.Events,
		notifier: d.Notifier,
		detector: hotkey.NewDetector(),
	}
	if s.events == nil {
		s.events = EventsFunc(func(string, any) {})
	}

	opts := []pipeline.Option{
		pipeline.WithRefinerFactory(refinerFactory(d.Cache)),
		pipeline.WithMetrics(d.Metrics),
	}
	if d.NewRecognizer != nil {
		opts = append(opts, pipeline.WithRecognizerFactory(d.NewRecognizer))
	}
	s.pipeline = pipeline.New(d.Recorder, d.Output, s.cfg, opts...)

	s.hotkey = &supervisorAdapter{supervisor: hotkey.NewSupervisor(d.Listener, s.detector)}
	s.recorder = &recorder{
		pipeline:  s.pipeline,
		frontmost: d.Output.Frontmost,
		stopped:   func() { s.events.Emit(EventRecordingStopped, nil) },
		done:      s.finish,
	}
	return s
}

// Run starts the hotkey supervisor (when enabled) and dispatches edges
// until ctx is done. In-flight processing is waited for before returning.
func (s *Service) Run(ctx context.Context) error {
	s.runMu.Lock()
	s.runCtx = ctx
	s.runMu.Unlock()

	cfg := s.GetConfig()
	if cfg.Hotkey.Enabled {
		s.hotkey.start(ctx, cfg.Hotkey.Binding)
	} else {
		slog.Info("hotkey disabled")
	}

	defer s.recorder.wait()
	defer s.hotkey.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.detector.Edges():
			s.dispatch(e)
		}
	}
}

func (s *Service) dispatch(e hotkey.Edge) {
	defer crash.Handle("hotkey edge")

	slog.Debug("hotkey edge", "kind", e.Kind, "binding", e.Binding.DisplayText())
	switch e.Kind {
	case hotkey.Press:
		if err := s.StartRecording(); err != nil {
			slog.Error("start recording", "error", err)
		}
	case hotkey.Release:
		s.StopRecording()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// GetConfig returns a copy of the current configuration.
func (s *Service) GetConfig() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// SaveConfig persists cfg, makes it current and forwards the binding to
// the hotkey supervisor.
func (s *Service) SaveConfig(cfg config.Config) error {
	path := s.cfgPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := cfg.SaveFile(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	s.cfgMu.Lock()
	s.cfg = cfg.Clone()
	s.cfgMu.Unlock()
	s.pipeline.SetConfig(cfg)

	switch {
	case !cfg.Hotkey.Enabled:
		s.hotkey.stop()
	case s.hotkey.running():
		s.hotkey.apply(cfg.Hotkey.Binding)
	default:
		s.runMu.Lock()
		ctx := s.runCtx
		s.runMu.Unlock()
		if ctx != nil && ctx.Err() == nil {
			s.hotkey.start(ctx, cfg.Hotkey.Binding)
		}
	}
	s.events.Emit(EventHotkeyBindingLoaded, cfg.Hotkey.Binding.DisplayText())
	slog.Info("config saved", "path", path)
	return nil
}

// StartRecording begins a recording. It does nothing while one is active.
func (s *Service) StartRecording() error {
	started, err := s.recorder.start()
	if err != nil {
		s.reportError(err)
		return err
	}
	if started {
		s.events.Emit(EventRecordingStarted, nil)
	}
	return nil
}

// StopRecording ends the active recording and processes it in the
// background. The result arrives as EventProcessingComplete or
// EventProcessingError.
func (s *Service) StopRecording() {
	s.recorder.stop()
}

// TestAPI checks connectivity for a recognition provider or the Ollama
// refinement backend.
func (s *Service) TestAPI(ctx context.Context, provider string) (string, error) {
	return TestAPI(ctx, s.GetConfig(), provider)
}

// TestAPI probes provider using the settings in cfg.
func TestAPI(ctx context.Context, cfg config.Config, provider string) (string, error) {
	if provider == config.LLMOllama {
		o := cfg.LLM.Ollama
		if o == nil {
			return "", fmt.Errorf("%w: %s", llm.ErrNotConfigured, provider)
		}
		return llm.TestOllama(ctx, o.Endpoint, o.Model)
	}
	return asr.TestAPI(ctx, provider, cfg.ASR)
}

func (s *Service) finish(text string, err error) {
	if err != nil {
		s.reportError(err)
		return
	}
	s.events.Emit(EventProcessingComplete, ProcessingComplete{Text: text})
}

func (s *Service) reportError(err error) {
	msg := errorMessage(err)
	slog.Error("processing failed", "error", err)
	s.events.Emit(EventProcessingError, ProcessingError{Message: msg})
	if s.notifier != nil {
		s.notifier.Error(msg)
	}
}

// errorMessage turns err into text suitable for a notification.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoSignal), errors.Is(err, pipeline.ErrTooQuiet):
		return capitalize(err.Error())
	case errors.Is(err, asr.ErrNetwork):
		return "Recognition service unreachable: " + err.Error()
	case errors.Is(err, asr.ErrAPI):
		return "Recognition service error: " + err.Error()
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/vhisper/asr"
	"go.aimuz.me/vhisper/config"
	"go.aimuz.me/vhisper/hotkey"
	"go.aimuz.me/vhisper/llm"
)

const waitTimeout = 2 * time.Second

type listenerRun struct {
	binding hotkey.Binding
	observe func(bool)
	stop    <-chan struct{}
}

// fakeListener hands each run to the test and blocks until stopped.
type fakeListener struct {
	runs chan listenerRun
}

func newFakeListener() *fakeListener {
	return &fakeListener{runs: make(chan listenerRun, 8)}
}

func (f *fakeListener) Run(stop <-chan struct{}, b hotkey.Binding, observe func(bool)) error {
	f.runs <- listenerRun{binding: b, observe: observe, stop: stop}
	<-stop
	return nil
}

func (f *fakeListener) next(t *testing.T) listenerRun {
	t.Helper()
	select {
	case r := <-f.runs:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("listener was not started")
		return listenerRun{}
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	samples []float32
	starts  int
}

func (f *fakeRecorder) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeRecorder) Stop() ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples, nil
}

func (f *fakeRecorder) SampleRate() int { return 16000 }
func (f *fakeRecorder) Channels() int   { return 1 }

func (f *fakeRecorder) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeOutput struct {
	mu    sync.Mutex
	texts []string
	pids  []*int32
}

func (f *fakeOutput) Emit(text string, _ bool, _ uint64, pid *int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.pids = append(f.pids, pid)
	return nil
}

func (f *fakeOutput) Frontmost() (int32, bool) { return 77, true }

type mockRecognizer struct{ text string }

func (m mockRecognizer) Recognize(context.Context, []byte, int) (asr.Result, error) {
	return asr.Result{Text: m.text, IsFinal: true}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Error(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

type event struct {
	name string
	data any
}

// eventLog records UI events.
type eventLog struct {
	ch chan event
}

func newEventLog() *eventLog { return &eventLog{ch: make(chan event, 32)} }

func (l *eventLog) Emit(name string, data any) { l.ch <- event{name, data} }

func (l *eventLog) waitFor(t *testing.T, name string) any {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-l.ch:
			if e.name == name {
				return e.data
			}
		case <-deadline:
			t.Fatalf("no %s event", name)
			return nil
		}
	}
}

func (l *eventLog) none(t *testing.T, name string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case e := <-l.ch:
			if e.name == name {
				t.Fatalf("unexpected %s event", name)
			}
		case <-deadline:
			return
		}
	}
}

func tone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

type harness struct {
	svc      *Service
	listener *fakeListener
	recorder *fakeRecorder
	output   *fakeOutput
	events   *eventLog
	notifier *fakeNotifier
	path     string
}

func newHarness(t *testing.T, cfg config.Config, samples []float32) *harness {
	t.Helper()
	h := &harness{
		listener: newFakeListener(),
		recorder: &fakeRecorder{samples: samples},
		output:   &fakeOutput{},
		events:   newEventLog(),
		notifier: &fakeNotifier{},
		path:     filepath.Join(t.TempDir(), "config.json"),
	}
	h.svc = New(Deps{
		Config:     cfg,
		ConfigPath: h.path,
		Recorder:   h.recorder,
		Output:     h.output,
		Listener:   h.listener,
		Events:     h.events,
		Notifier:   h.notifier,
		NewRecognizer: func(config.ASRConfig) (asr.Recognizer, error) {
			return mockRecognizer{text: "hello"}, nil
		},
	})
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Error("Run did not return")
		}
	})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LLM.Enabled = false
	return cfg
}

func TestPushToTalk(t *testing.T) {
	h := newHarness(t, testConfig(), tone(16000, 0.2))
	h.run(t)

	l := h.listener.next(t)
	if l.binding.Key != hotkey.Alt {
		t.Fatalf("listener binding = %v, want Alt", l.binding)
	}

	l.observe(true)
	h.events.waitFor(t, EventRecordingStarted)
	// auto-repeat while held
	l.observe(true)
	l.observe(false)
	h.events.waitFor(t, EventRecordingStopped)

	data := h.events.waitFor(t, EventProcessingComplete)
	if got := data.(ProcessingComplete).Text; got != "hello" {
		t.Errorf("processing-complete text = %q, want hello", got)
	}

	if n := h.recorder.startCount(); n != 1 {
		t.Errorf("recorder started %d times, want 1", n)
	}
	h.output.mu.Lock()
	defer h.output.mu.Unlock()
	if len(h.output.texts) != 1 || h.output.texts[0] != "hello" {
		t.Errorf("output = %v, want [hello]", h.output.texts)
	}
	if p := h.output.pids[0]; p == nil || *p != 77 {
		t.Errorf("pid = %v, want 77", p)
	}
}

func TestProcessingErrorNotifies(t *testing.T) {
	h := newHarness(t, testConfig(), make([]float32, 1600))

	if err := h.svc.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.svc.StopRecording()

	data := h.events.waitFor(t, EventProcessingError)
	msg := data.(ProcessingError).Message
	if !strings.Contains(msg, "microphone permission") {
		t.Errorf("message = %q", msg)
	}

	h.svc.recorder.wait()
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.msgs) != 1 || h.notifier.msgs[0] != msg {
		t.Errorf("notifications = %v", h.notifier.msgs)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	h := newHarness(t, testConfig(), tone(1600, 0.2))
	h.svc.StopRecording()
	h.events.none(t, EventRecordingStopped, 50*time.Millisecond)
}

func TestSaveConfigReloadsBinding(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.run(t)
	first := h.listener.next(t)

	cfg := h.svc.GetConfig()
	cfg.Hotkey.Binding = hotkey.Binding{Key: hotkey.F5, Modifiers: []hotkey.KeyCode{hotkey.Shift}}
	if err := h.svc.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	second := h.listener.next(t)
	if !second.binding.Equal(cfg.Hotkey.Binding) {
		t.Errorf("new listener binding = %v, want %v", second.binding, cfg.Hotkey.Binding)
	}
	select {
	case <-first.stop:
	default:
		t.Error("old listener still running")
	}

	if got := h.events.waitFor(t, EventHotkeyBindingLoaded); got != "Shift + F5" {
		t.Errorf("binding event = %v", got)
	}

	loaded, err := config.LoadFile(h.path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !loaded.Hotkey.Binding.Equal(cfg.Hotkey.Binding) {
		t.Errorf("saved binding = %v", loaded.Hotkey.Binding)
	}
	if !h.svc.GetConfig().Hotkey.Binding.Equal(cfg.Hotkey.Binding) {
		t.Error("in-memory config not updated")
	}
}

func TestSaveConfigTogglesHotkey(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.run(t)
	first := h.listener.next(t)

	cfg := h.svc.GetConfig()
	cfg.Hotkey.Enabled = false
	if err := h.svc.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	select {
	case <-first.stop:
	case <-time.After(waitTimeout):
		t.Fatal("listener not stopped after disabling the hotkey")
	}

	cfg.Hotkey.Enabled = true
	if err := h.svc.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	h.listener.next(t)
}

func TestSaveConfigRejectsInvalidBinding(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	cfg := h.svc.GetConfig()
	cfg.Hotkey.Binding = hotkey.Binding{}

	if err := h.svc.SaveConfig(cfg); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(h.path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("config file written for invalid binding: %v", err)
	}
	if h.svc.GetConfig().Hotkey.Binding.Key != hotkey.Alt {
		t.Error("invalid config replaced the current one")
	}
}

func TestHotkeyDisabledCommandsStillWork(t *testing.T) {
	cfg := testConfig()
	cfg.Hotkey.Enabled = false
	h := newHarness(t, cfg, tone(16000, 0.2))
	h.run(t)

	select {
	case <-h.listener.runs:
		t.Fatal("listener started with hotkey disabled")
	case <-time.After(50 * time.Millisecond):
	}

	if err := h.svc.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.events.waitFor(t, EventRecordingStarted)
	h.svc.StopRecording()
	h.events.waitFor(t, EventProcessingComplete)
}

func TestTestAPI(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Ollama = nil
	h := newHarness(t, cfg, nil)

	tests := []struct {
		provider string
		want     error
	}{
		{config.LLMOllama, llm.ErrNotConfigured},
		{config.ASRDashScope, asr.ErrNotConfigured},
		{"Whisperer", asr.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			if _, err := h.svc.TestAPI(context.Background(), tt.provider); !errors.Is(err, tt.want) {
				t.Errorf("TestAPI(%q) error = %v, want %v", tt.provider, err, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("boom"), "boom"},
		{&asr.Error{Kind: asr.KindNetwork, Msg: "dial"}, "Recognition service unreachable: network error: dial"},
		{&asr.Error{Kind: asr.KindAPI, Msg: "InvalidApiKey"}, "Recognition service error: api error: InvalidApiKey"},
	}
	for _, tt := range tests {
		if got := errorMessage(tt.err); got != tt.want {
			t.Errorf("errorMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if got := errorMessage(errors.Join(errors.New("x"))); got != "x" {
		t.Errorf("got %q", got)
	}
}

// gatedRecorder holds the first Stop until release is closed.
type gatedRecorder struct {
	fakeRecorder
	stopping chan struct{}
	release  chan struct{}
	once     sync.Once
}

func (g *gatedRecorder) Stop() ([]float32, error) {
	g.once.Do(func() {
		close(g.stopping)
		<-g.release
	})
	return g.fakeRecorder.Stop()
}

func TestStartWaitsForInFlightStop(t *testing.T) {
	rec := &gatedRecorder{
		fakeRecorder: fakeRecorder{samples: tone(16000, 0.2)},
		stopping:     make(chan struct{}),
		release:      make(chan struct{}),
	}
	events := newEventLog()
	svc := New(Deps{
		Config:     testConfig(),
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		Recorder:   rec,
		Output:     &fakeOutput{},
		Listener:   newFakeListener(),
		Events:     events,
		NewRecognizer: func(config.ASRConfig) (asr.Recognizer, error) {
			return mockRecognizer{text: "hello"}, nil
		},
	})

	if err := svc.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	go svc.StopRecording()
	select {
	case <-rec.stopping:
	case <-time.After(waitTimeout):
		t.Fatal("device stop not reached")
	}

	started := make(chan error, 1)
	go func() { started <- svc.StartRecording() }()
	select {
	case err := <-started:
		t.Fatalf("StartRecording returned (%v) while the device was still stopping", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(rec.release)
	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("StartRecording: %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("StartRecording did not return")
	}

	if n := rec.startCount(); n != 2 {
		t.Errorf("recorder started %d times, want 2", n)
	}
	if !svc.pipeline.Recording() {
		t.Error("pipeline not recording after the second start")
	}

	svc.StopRecording()
	svc.recorder.wait()
}

package audiocapture

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStream fills the read buffer with a constant value.
type fakeStream struct {
	buf      []float32
	value    float32
	reads    atomic.Int32
	stopped  atomic.Bool
	closed   atomic.Bool
	startErr error
	stopErr  error
}

func (f *fakeStream) Start() error { return f.startErr }

func (f *fakeStream) Read() error {
	for i := range f.buf {
		f.buf[i] = f.value
	}
	f.reads.Add(1)
	time.Sleep(time.Millisecond)
	return nil
}

func (f *fakeStream) Stop() error  { f.stopped.Store(true); return f.stopErr }
func (f *fakeStream) Close() error { f.closed.Store(true); return nil }

func newFakeRecorder(f *fakeStream) *Recorder {
	r := New(16000)
	r.open = func(channels, sampleRate int, buf []float32) (stream, error) {
		f.buf = buf
		return f, nil
	}
	return r
}

func waitReads(t *testing.T, f *fakeStream, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.reads.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d reads", f.reads.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(0)
	if r.SampleRate() != DefaultSampleRate || r.Channels() != 1 {
		t.Errorf("got rate=%d channels=%d", r.SampleRate(), r.Channels())
	}
}

func TestStartStop(t *testing.T) {
	f := &fakeStream{value: 0.25}
	r := newFakeRecorder(f)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Recording() {
		t.Fatal("Recording() = false after Start")
	}
	waitReads(t, f, 3)

	samples, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(samples) == 0 || len(samples)%framesPerBuffer != 0 {
		t.Fatalf("got %d samples, want a non-zero multiple of %d", len(samples), framesPerBuffer)
	}
	for _, s := range samples {
		if s != 0.25 {
			t.Fatalf("sample = %v, want 0.25", s)
		}
	}
	if !f.stopped.Load() || !f.closed.Load() {
		t.Error("stream was not stopped and closed")
	}
	if r.Recording() {
		t.Error("Recording() = true after Stop")
	}
}

func TestDoubleStart(t *testing.T) {
	r := newFakeRecorder(&fakeStream{})
	if err := r.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer r.Stop()

	if err := r.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start = %v, want ErrAlreadyRecording", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	r := newFakeRecorder(&fakeStream{})

	samples, err := r.Stop()
	if err != nil || samples != nil {
		t.Fatalf("Stop without Start = (%v, %v)", samples, err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if samples, err := r.Stop(); err != nil || samples != nil {
		t.Fatalf("double Stop = (%v, %v)", samples, err)
	}
}

func TestStartFailure(t *testing.T) {
	f := &fakeStream{startErr: errors.New("device busy")}
	r := newFakeRecorder(f)

	if err := r.Start(); err == nil {
		t.Fatal("expected error")
	}
	if !f.closed.Load() {
		t.Error("stream should be closed after a failed start")
	}
	if r.Recording() {
		t.Error("Recording() = true after failed Start")
	}

	r.open = func(int, int, []float32) (stream, error) { return nil, errors.New("no device") }
	if err := r.Start(); err == nil {
		t.Fatal("expected open error")
	}
}

func TestStopReturnsSamplesOnStreamError(t *testing.T) {
	f := &fakeStream{value: 1, stopErr: errors.New("underflow")}
	r := newFakeRecorder(f)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitReads(t, f, 1)

	samples, err := r.Stop()
	if err == nil {
		t.Fatal("expected stop error")
	}
	if len(samples) == 0 {
		t.Error("samples should survive a stream stop error")
	}
}

func TestConcurrentStop(t *testing.T) {
	r := newFakeRecorder(&fakeStream{})
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Stop()
		}()
	}
	wg.Wait()
	if r.Recording() {
		t.Error("still recording")
	}
}

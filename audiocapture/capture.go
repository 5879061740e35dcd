// Package audiocapture records microphone input through PortAudio.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrAlreadyRecording is returned by Start while a recording is active.
var ErrAlreadyRecording = errors.New("already recording")

const (
	// DefaultSampleRate matches what every recognizer accepts.
	DefaultSampleRate = 16000
	framesPerBuffer   = 1024
)

// stream is the subset of *portaudio.Stream the recorder drives.
type stream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// openFunc opens an input stream that fills buf on every Read.
type openFunc func(channels, sampleRate int, buf []float32) (stream, error)

// Recorder captures mono float32 samples from the default input device.
// The zero value is not usable; create one with New.
type Recorder struct {
	sampleRate int
	channels   int
	open       openFunc

	stopMu sync.Mutex

	mu      sync.Mutex
	samples []float32
	stop    chan struct{}
	done    chan struct{}
	stream  stream
}

// New creates a Recorder at sampleRate (DefaultSampleRate when zero).
func New(sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Recorder{
		sampleRate: sampleRate,
		channels:   1,
		open:       openPortAudio,
	}
}

// SampleRate returns the capture rate in Hz.
func (r *Recorder) SampleRate() int { return r.sampleRate }

// Channels returns the number of interleaved channels.
func (r *Recorder) Channels() int { return r.channels }

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

// Start opens the input device and begins buffering samples.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return ErrAlreadyRecording
	}

	buf := make([]float32, framesPerBuffer*r.channels)
	s, err := r.open(r.channels, r.sampleRate, buf)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return fmt.Errorf("start stream: %w", err)
	}

	r.samples = r.samples[:0]
	r.stream = s
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.readLoop(s, buf, r.stop, r.done)

	slog.Info("recording started", "sample_rate", r.sampleRate)
	return nil
}

// Stop ends the capture and returns everything recorded since Start.
// Stopping an idle recorder returns nil samples and no error.
func (r *Recorder) Stop() ([]float32, error) {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()

	r.mu.Lock()
	s, stop, done := r.stream, r.stop, r.done
	r.mu.Unlock()

	if s == nil {
		return nil, nil
	}

	close(stop)
	<-done

	err := s.Stop()
	if cerr := s.Close(); err == nil {
		err = cerr
	}

	r.mu.Lock()
	samples := r.samples
	r.samples = nil
	r.stream = nil
	r.mu.Unlock()

	slog.Info("recording stopped", "samples", len(samples))
	if err != nil {
		return samples, fmt.Errorf("stop stream: %w", err)
	}
	return samples, nil
}

func (r *Recorder) readLoop(s stream, buf []float32, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := s.Read(); err != nil {
			// Overflows are transient; keep reading.
			slog.Debug("read stream", "error", err)
			continue
		}

		r.mu.Lock()
		r.samples = append(r.samples, buf...)
		r.mu.Unlock()
	}
}

var paOnce = sync.OnceValue(portaudio.Initialize)

func openPortAudio(channels, sampleRate int, buf []float32) (stream, error) {
	if err := paOnce(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	s, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), len(buf)/channels, buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	return s, nil
}

// Terminate releases PortAudio. Call once at process exit.
func Terminate() {
	if paOnce() == nil {
		_ = portaudio.Terminate()
	}
}

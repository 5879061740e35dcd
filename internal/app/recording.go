package app

import (
	"context"
	"log/slog"
	"sync"

	"go.aimuz.me/vhisper/internal/crash"
	"go.aimuz.me/vhisper/pipeline"
)

// recorder serializes engage/disengage requests from the hotkey and the
// command surface onto the pipeline. mu covers the recording flag together
// with the pipeline call that changes the device state.
type recorder struct {
	pipeline  *pipeline.Pipeline
	frontmost func() (int32, bool)
	stopped   func()
	done      func(text string, err error)

	mu        sync.Mutex
	recording bool
	pid       *int32
	wg        sync.WaitGroup
}

// start begins a recording unless one is already running. It reports
// whether this call started it.
func (r *recorder) start() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return false, nil
	}

	r.pid = nil
	if r.frontmost != nil {
		if pid, ok := r.frontmost(); ok {
			r.pid = &pid
		}
	}

	if err := r.pipeline.StartRecording(); err != nil {
		return false, err
	}
	r.recording = true
	return true, nil
}

// stop drains the recorder and processes the capture in the background.
// stopped runs once the device is idle, before any result is reported.
func (r *recorder) stop() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	pid := r.pid
	r.pid = nil
	c, err := r.pipeline.Stop()
	r.stopped()
	r.mu.Unlock()

	if err != nil {
		r.done("", err)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer crash.Handle("process recording")

		// Once started, a run is not cancelled.
		text, err := r.pipeline.Process(context.Background(), c, pid)
		r.done(text, err)
	}()
}

// wait blocks until in-flight processing finishes.
func (r *recorder) wait() {
	r.wg.Wait()
	slog.Debug("in-flight processing finished")
}

package app

import (
	"context"
	"sync"

	"go.aimuz.me/vhisper/hotkey"
	"go.aimuz.me/vhisper/internal/crash"
)

// supervisorAdapter starts and stops the hotkey supervisor as the
// enabled flag changes.
type supervisorAdapter struct {
	supervisor *hotkey.Supervisor

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// running reports whether the supervisor loop is active.
func (a *supervisorAdapter) running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// start runs the supervisor with b until stop or ctx ends. It is a no-op
// when already running.
func (a *supervisorAdapter) start(ctx context.Context, b hotkey.Binding) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel, a.done = cancel, done

	go func() {
		defer close(done)
		defer crash.Handle("hotkey supervisor")
		_ = a.supervisor.Run(ctx, b)
	}()
}

// apply forwards b to a running supervisor.
func (a *supervisorAdapter) apply(b hotkey.Binding) {
	if a.running() {
		a.supervisor.Reload(b)
	}
}

// stop cancels the supervisor and waits for its listener to exit. A
// binding held at that moment is released.
func (a *supervisorAdapter) stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.supervisor.Detector().Observe(false)
}

package hotkey

import (
	"context"
	"errors"
	"log/slog"
)

// ErrUnsupported is returned by listeners on platforms without a keyboard hook.
var ErrUnsupported = errors.New("hotkey: unsupported platform")

// Listener observes raw keyboard input for one binding.
//
// Run blocks until stop is closed or the listener fails. It reports the
// current match state of b through observe; repeated identical reports are
// fine. Implementations pin themselves to an OS thread and must never block
// on anything but input.
type Listener interface {
	Run(stop <-chan struct{}, b Binding, observe func(pressed bool)) error
}

// Supervisor owns the active binding and hot-swaps listeners on reload.
type Supervisor struct {
	listener Listener
	detector *Detector
	reload   chan Binding
}

// NewSupervisor creates a Supervisor feeding d from l.
func NewSupervisor(l Listener, d *Detector) *Supervisor {
	return &Supervisor{
		listener: l,
		detector: d,
		reload:   make(chan Binding, 1),
	}
}

// Detector returns the edge detector fed by the supervised listeners.
func (s *Supervisor) Detector() *Detector {
	return s.detector
}

// Reload requests a listener restart with b. It never blocks: a pending
// request that has not been picked up yet is replaced.
func (s *Supervisor) Reload(b Binding) {
	b = b.Clone()
	for {
		select {
		case s.reload <- b:
			slog.Info("hotkey reload requested", "binding", b.DisplayText())
			return
		default:
		}
		select {
		case <-s.reload:
		default:
		}
	}
}

// Run starts a listener for initial and restarts it whenever Reload is
// called. It returns when ctx is done.
//
// A press seen by the old listener is kept across the swap when the binding
// is unchanged, so the new listener reports the release. When the binding
// changes while pressed, the old press is completed with a Release before
// the new listener starts.
func (s *Supervisor) Run(ctx context.Context, initial Binding) error {
	current := initial.Clone()
	for {
		s.detector.setBinding(current)
		slog.Info("start hotkey listener", "binding", current.DisplayText())

		stop := make(chan struct{})
		done := make(chan error, 1)
		go func(b Binding) {
			done <- s.listener.Run(stop, b, s.detector.Observe)
		}(current)

		var (
			next   Binding
			failed bool
		)
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return ctx.Err()
		case next = <-s.reload:
			close(stop)
			if err := <-done; err != nil {
				slog.Warn("hotkey listener exited", "error", err)
			}
		case err := <-done:
			failed = true
			if err != nil {
				slog.Error("run hotkey listener", "error", err, "binding", current.DisplayText())
			}
		}

		if failed {
			// Nothing is listening now; wait for a new binding.
			s.detector.Observe(false)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case next = <-s.reload:
			}
		}

		if !next.Equal(current) {
			s.detector.Observe(false)
		}
		slog.Info("previous hotkey listener stopped", "next", next.DisplayText())
		current = next
	}
}

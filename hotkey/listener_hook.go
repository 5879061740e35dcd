//go:build darwin || linux

package hotkey

import (
	"errors"
	"log/slog"
	"runtime"

	hook "github.com/robotn/gohook"
)

// hookListener follows a global keyboard event hook.
type hookListener struct{}

// NewListener returns the platform keyboard listener.
func NewListener() Listener {
	return hookListener{}
}

func (hookListener) Run(stop <-chan struct{}, b Binding, observe func(pressed bool)) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m := newMatcher(b)
	events := hook.Start()
	defer hook.End()

	slog.Debug("keyboard hook started", "binding", b.DisplayText(), "modifier_primary", b.ModifierPrimary())

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("hotkey: event hook closed")
			}
			var down bool
			switch ev.Kind {
			case hook.KeyHold:
				down = true
			case hook.KeyUp:
			default:
				continue
			}
			if pressed, ok := m.handle(keyEvent{down: down, code: ev.Keycode, mask: ev.Mask}); ok {
				observe(pressed)
			}
		}
	}
}

//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/windows"
)

const pollInterval = 10 * time.Millisecond

var procGetAsyncKeyState = windows.NewLazySystemDLL("user32.dll").NewProc("GetAsyncKeyState")

// pollListener samples the physical key state at a fixed interval.
type pollListener struct {
	interval time.Duration
}

// NewListener returns the platform keyboard listener.
func NewListener() Listener {
	return pollListener{interval: pollInterval}
}

func (l pollListener) Run(stop <-chan struct{}, b Binding, observe func(pressed bool)) error {
	if err := procGetAsyncKeyState.Find(); err != nil {
		return fmt.Errorf("load GetAsyncKeyState: %w", err)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	primary := virtualKey(b.Key)
	mods := make([]uint16, 0, len(b.Modifiers))
	for _, m := range b.Modifiers {
		mods = append(mods, virtualKey(m))
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			pressed := keyDown(primary)
			for _, vk := range mods {
				pressed = pressed && keyDown(vk)
			}
			observe(pressed)
		}
	}
}

func keyDown(vk uint16) bool {
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(r)&0x8000 != 0
}

//go:build windows

package output

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
)

// The EnumWindows callback is created once: the runtime never frees
// callbacks and caps how many exist. search holds the lookup in progress
// and is guarded by enumMu.
var (
	enumMu sync.Mutex
	search struct {
		pid    uint32
		target windows.HWND
	}
	enumWindowsProc = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		s := &search
		var owner uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &owner); err != nil || owner != s.pid {
			return 1
		}
		if visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd)); visible == 0 {
			return 1
		}
		s.target = hwnd
		return 0
	})
)

// findWindow returns a visible top-level window owned by pid, or 0.
func findWindow(pid uint32) windows.HWND {
	enumMu.Lock()
	defer enumMu.Unlock()

	search.pid, search.target = pid, 0
	// EnumWindows reports an error when the callback stops early.
	_ = windows.EnumWindows(enumWindowsProc, unsafe.Pointer(nil))
	return search.target
}

type platformFocus struct{}

func (platformFocus) Frontmost() (int32, bool) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return 0, false
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
		return 0, false
	}
	return int32(pid), true
}

func (platformFocus) Activate(pid int32) error {
	target := findWindow(uint32(pid))
	if target == 0 {
		return fmt.Errorf("no window for process %d", pid)
	}
	if ok, _, err := procSetForegroundWindow.Call(uintptr(target)); ok == 0 {
		return fmt.Errorf("set foreground window: %w", err)
	}
	return nil
}

//go:build windows

package output

import (
	"os"
	"testing"
)

// Each lookup reuses the one EnumWindows callback; creating a callback per
// call would exhaust the runtime's callback table long before this loop ends.
func TestFindWindowRepeated(t *testing.T) {
	pid := uint32(os.Getpid())
	for i := 0; i < 2500; i++ {
		findWindow(pid)
	}
}

func TestFindWindowUnknownProcess(t *testing.T) {
	if hwnd := findWindow(0xFFFFFFF0); hwnd != 0 {
		t.Errorf("findWindow(unknown) = %#x, want 0", hwnd)
	}
}

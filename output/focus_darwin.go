//go:build darwin

package output

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>

static int frontmostPID() {
	NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
	if (app == nil) {
		return -1;
	}
	return (int)[app processIdentifier];
}

static int activatePID(int pid) {
	NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
	if (app == nil) {
		return 0;
	}
	return [app activateWithOptions:NSApplicationActivateIgnoringOtherApps] ? 1 : 0;
}
*/
import "C"

import "fmt"

type platformFocus struct{}

func (platformFocus) Frontmost() (int32, bool) {
	pid := int32(C.frontmostPID())
	return pid, pid > 0
}

func (platformFocus) Activate(pid int32) error {
	if C.activatePID(C.int(pid)) == 0 {
		return fmt.Errorf("activate process %d", pid)
	}
	return nil
}

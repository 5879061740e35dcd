// Package crash reports panics before letting them continue.
package crash

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

var enabled bool

// Init configures Sentry. An empty dsn leaves reporting off.
func Init(dsn, release string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: release,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	enabled = true
	slog.Info("sentry initialized")
	return nil
}

// Flush waits for buffered reports.
func Flush() {
	if enabled {
		sentry.Flush(flushTimeout)
	}
}

// Handle logs and reports a panic, then re-panics. Use it deferred:
//
//	defer crash.Handle("hotkey edge")
func Handle(where string) {
	r := recover()
	if r == nil {
		return
	}
	report(where, r, debug.Stack())
	panic(r)
}

func report(where string, r any, stack []byte) {
	slog.Error("panic", "in", where, "value", fmt.Sprint(r), "at", location(), "stack", string(stack))
	if !enabled {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("goroutine", where)
	})
	hub.Recover(r)
	hub.Flush(flushTimeout)
}

// location returns file:line of the first frame outside the runtime and
// this file.
func location() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") && filepath.Base(f.File) != "crash.go" {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

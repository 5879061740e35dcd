// Package output delivers recognized text to the focused application by
// placing it on the clipboard and sending a paste keystroke.
package output

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
)

const (
	// restoreDelay gives the target application time to read the
	// clipboard before the previous contents are put back.
	restoreDelay = 150 * time.Millisecond
	activateWait = 100 * time.Millisecond
)

type clipboardAccess interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type focuser interface {
	Frontmost() (pid int32, ok bool)
	Activate(pid int32) error
}

// Paster writes text into the frontmost application.
type Paster struct {
	clip  clipboardAccess
	focus focuser
	paste func() error
	sleep func(time.Duration)
}

// New returns a Paster using the system clipboard and keyboard.
func New() *Paster {
	return &Paster{
		clip:  systemClipboard{},
		focus: platformFocus{},
		paste: sendPaste,
		sleep: time.Sleep,
	}
}

// Frontmost returns the pid of the application that currently has focus.
func (p *Paster) Frontmost() (int32, bool) {
	return p.focus.Frontmost()
}

// Emit pastes text. When pid is set and another application took focus in
// the meantime, that process is activated first. With restoreClipboard the
// previous clipboard text is put back after the paste.
func (p *Paster) Emit(text string, restoreClipboard bool, pasteDelayMs uint64, pid *int32) error {
	if pid != nil {
		p.refocus(*pid)
	}

	var (
		previous   string
		canRestore bool
	)
	if restoreClipboard {
		prev, err := p.clip.ReadAll()
		if err != nil {
			slog.Debug("read clipboard", "error", err)
		} else {
			previous, canRestore = prev, true
		}
	}

	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	p.sleep(time.Duration(pasteDelayMs) * time.Millisecond)

	if err := p.paste(); err != nil {
		return fmt.Errorf("send paste: %w", err)
	}

	if canRestore {
		p.sleep(restoreDelay)
		if err := p.clip.WriteAll(previous); err != nil {
			slog.Warn("restore clipboard", "error", err)
		}
	}
	return nil
}

func (p *Paster) refocus(pid int32) {
	if cur, ok := p.focus.Frontmost(); ok && cur == pid {
		return
	}
	if err := p.focus.Activate(pid); err != nil {
		slog.Warn("activate target", "pid", pid, "error", err)
		return
	}
	p.sleep(activateWait)
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Package notify shows desktop notifications.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier posts desktop notifications. Failures are logged, never returned.
type Notifier struct {
	title string
	send  func(title, message string, icon any) error
}

// New creates a Notifier that titles notifications with appName.
func New(appName string) *Notifier {
	beeep.AppName = appName
	return &Notifier{title: appName, send: beeep.Notify}
}

// Error shows a processing failure.
func (n *Notifier) Error(message string) {
	if n == nil {
		return
	}
	if err := n.send(n.title, message, ""); err != nil {
		slog.Warn("send notification", "error", err)
	}
}

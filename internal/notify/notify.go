// Package notify delivers user-facing notifications.
package notify

import (
	"log/slog"
	"sync/atomic"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
)

// Notifier sends a notification with a title and a body.
type Notifier interface {
	Notify(title, message string) error
}

// Desktop sends native desktop notifications. It can be muted at runtime.
type Desktop struct {
	log     *slog.Logger
	send    func(title, message string, icon any) error
	enabled atomic.Bool
}

// NewDesktop creates a desktop notifier.
func NewDesktop(enabled bool, log *slog.Logger) *Desktop {
	d := &Desktop{
		log:  logger.Or(log),
		send: beeep.Notify,
	}
	d.enabled.Store(enabled)
	return d
}

// SetEnabled mutes or unmutes the notifier.
func (d *Desktop) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

// Enabled reports whether notifications are delivered.
func (d *Desktop) Enabled() bool {
	return d.enabled.Load()
}

// Notify implements Notifier. A muted notifier drops the message.
func (d *Desktop) Notify(title, message string) error {
	if !d.enabled.Load() {
		d.log.Debug("notification muted", slog.String("title", title))
		return nil
	}
	return d.send(title, message, "")
}

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(string, string) error { return nil }

// Package notify bridges recalculation outcomes to chat platforms (Slack,
// Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Name identifies the platform, e.g. "slack".
	Name() string

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel; empty uses the adapter default
	Text      string           // message text (platform-native formatting)
	Events    []FormattedEvent // structured event attachments
}

// FormattedEvent represents a schedule event formatted for display in chat.
type FormattedEvent struct {
	Title    string  // event headline (e.g. "Warehouse finish slipped 3 days")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Notifier fans slip alerts out to every configured adapter.
type Notifier struct {
	adapters []Adapter
}

// NewNotifier returns a Notifier for adapters. Nil adapters are skipped.
func NewNotifier(adapters ...Adapter) *Notifier {
	n := &Notifier{}
	for _, a := range adapters {
		if a != nil {
			n.adapters = append(n.adapters, a)
		}
	}
	return n
}

// Enabled reports whether any adapter is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.adapters) > 0 }

// Adapters returns the configured adapter names.
func (n *Notifier) Adapters() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.adapters))
	for _, a := range n.adapters {
		names = append(names, a.Name())
	}
	return names
}

// NotifySlip sends the formatted slip to every adapter. A failing adapter
// does not stop the others; all failures are joined into the result.
func (n *Notifier) NotifySlip(ctx context.Context, s Slip) error {
	if !n.Enabled() {
		return nil
	}
	evt := FormatSlip(s)
	msg := OutboundMessage{Text: evt.Title, Events: []FormattedEvent{evt}}

	var errs []error
	for _, a := range n.adapters {
		if err := a.Send(ctx, msg); err != nil {
			log.Printf("notify: %s: send slip for %s: %v", a.Name(), s.ProjectID, err)
			errs = append(errs, fmt.Errorf("notify: %s: %w", a.Name(), err))
		}
	}
	return errors.Join(errs...)
}

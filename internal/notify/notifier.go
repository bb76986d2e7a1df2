// Package notify turns waitlist events into messages and delivers them
// asynchronously through a Notifier.
package notify

import (
	"context"

	"plotwaitlist-backend/internal/logger"
)

// Notifier delivers one message to a set of addresses.
type Notifier interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Message is a rendered notification ready for delivery.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// LogNotifier writes messages to the application log instead of sending
// them. It is used for local development and the "log" mail provider.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	logger.InfoContext(ctx, "Notification", "to", to, "subject", subject, "body", body)
	return nil
}

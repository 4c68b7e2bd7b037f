// Package notify delivers outbound user notifications. Delivery failures
// are reported to the caller for logging but must never block or fail the
// response already owed to the user.
package notify

import (
	"context"
	"log/slog"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes notifications to the log instead of delivering them.
// Used in dev mode when no SMTP relay is configured. A nil Logger falls
// back to slog.Default, so the zero value is usable.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification (not delivered, no smtp relay configured)",
		"to", to,
		"subject", subject,
	)
	return nil
}

package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them.
// Used in local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "notification",
		slog.String("kind", string(msg.Kind)),
		slog.String("email", msg.Email),
		slog.String("account_id", string(msg.AccountID)),
		slog.String("code", msg.Code),
		slog.Int64("expiration", msg.Expiration),
		slog.String("device", msg.Device),
	)
	return nil
}

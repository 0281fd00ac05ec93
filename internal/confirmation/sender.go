package confirmation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sender delivers confirmation requests to customers.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// LogSender records outbound messages instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg OutboundMessage) error {
	s.logger.Info("confirmation message",
		zap.String("tenant_id", msg.TenantID),
		zap.String("confirmation_id", msg.ConfirmationID),
		zap.String("hold_id", msg.HoldID),
		zap.String("channel", string(msg.Channel)),
		zap.String("body", msg.Body),
	)
	return nil
}

func messageBody(c *Confirmation) string {
	deadline := c.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")
	if c.Channel == ChannelLinkClick {
		return fmt.Sprintf("Open your confirmation link to confirm the booking before %s.", deadline)
	}
	return fmt.Sprintf("Reply SI to confirm your booking or NO to cancel it. This request expires %s.", deadline)
}

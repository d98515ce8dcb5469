package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier records the message instead of delivering it.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notification")}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	n.log.Info("payment link notification",
		zap.String("to", msg.To),
		zap.String("payment_link", msg.PaymentLink),
		zap.String("amount", msg.Amount.StringFixed(2)),
		zap.Time("due_date", msg.DueDate),
	)
	return nil
}

package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.log.Info("event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("restaurant_id", event.RestaurantID),
		zap.String("invoice_id", event.InvoiceID),
	)
	return nil
}

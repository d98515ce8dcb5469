// Package events publishes billing state changes to interested consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeInvoiceCreated      = "invoice.created"
	TypeInvoicePaid         = "invoice.paid"
	TypeInvoiceFailed       = "invoice.failed"
	TypeInvoiceCancelled    = "invoice.cancelled"
	TypeSubscriptionUpdated = "subscription.updated"
)

type Event struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	RestaurantID string         `json:"restaurant_id"`
	InvoiceID    string         `json:"invoice_id,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Data         map[string]any `json:"data,omitempty"`
}

func New(eventType, restaurantID, invoiceID string, occurredAt time.Time, data map[string]any) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		RestaurantID: restaurantID,
		InvoiceID:    invoiceID,
		OccurredAt:   occurredAt.UTC(),
		Data:         data,
	}
}

// Publisher is called after the owning transaction commits. Failures are
// reported to the caller but never undo the committed change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublishAll publishes in order and stops at the first failure.
func PublishAll(ctx context.Context, p Publisher, evts ...Event) error {
	for _, evt := range evts {
		if err := p.Publish(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

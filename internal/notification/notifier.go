// Package notification delivers payment links to restaurants.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoRecipient = errors.New("notification_no_recipient")

type Message struct {
	To             string
	RestaurantName string
	PaymentLink    string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	DueDate        time.Time
}

// Notifier is best-effort; callers log failures and carry on.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

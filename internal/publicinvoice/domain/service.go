package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	GetInvoicePublicStatus(ctx context.Context, token string) (PublicInvoiceStatus, error)
	CreateCheckoutSession(ctx context.Context, token string) (CheckoutSession, error)
}

// PublicInvoiceStatus is everything a payer may see. Terminal statuses are
// definitive and must not be rendered as a payment form.
type PublicInvoiceStatus struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	DueDate     time.Time       `json:"due_date"`
	Status      string          `json:"status"`
	Terminal    bool            `json:"terminal"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

type CheckoutSession struct {
	KeyID       string          `json:"key_id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

var (
	ErrInvalidToken        = errors.New("invalid_token")
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrInvoiceUnavailable  = errors.New("invoice_unavailable")
	ErrCheckoutUnavailable = errors.New("checkout_unavailable")
)

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const ProviderRazorpay = "razorpay"

// Outcome of one verification callback as recorded in payment_events.
type Outcome string

const (
	OutcomePaid     Outcome = "PAID"
	OutcomeFailed   Outcome = "FAILED"
	OutcomeRejected Outcome = "REJECTED"
)

// EventRecord is an append-only audit row. (provider, payment_id, outcome)
// is unique, so replays collapse into one row.
type EventRecord struct {
	ID         snowflake.ID `json:"id" gorm:"column:id;primaryKey"`
	InvoiceID  snowflake.ID `json:"invoice_id" gorm:"column:invoice_id"`
	Provider   string       `json:"provider" gorm:"column:provider"`
	OrderID    string       `json:"order_id" gorm:"column:order_id"`
	PaymentID  string       `json:"payment_id" gorm:"column:payment_id"`
	Outcome    Outcome      `json:"outcome" gorm:"column:outcome"`
	ReceivedAt time.Time    `json:"received_at" gorm:"column:received_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]EventRecord, error)
}

type VerifyRequest struct {
	Token     string `json:"-"`
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// SubscriptionState is the restaurant subscription after settlement.
type SubscriptionState struct {
	PricePerMonth decimal.Decimal `json:"price_per_month"`
	EndDate       time.Time       `json:"end_date"`
	IsActive      bool            `json:"is_active"`
}

type VerifyResult struct {
	InvoiceID    snowflake.ID       `json:"invoice_id"`
	Status       string             `json:"status"`
	Subscription *SubscriptionState `json:"subscription,omitempty"`
}

type Service interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	Cancel(ctx context.Context, invoiceID string) (VerifyResult, error)
}

var (
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrAlreadyProcessed  = errors.New("invoice_already_processed")
	ErrOrderMismatch     = errors.New("order_mismatch")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrUnsupportedEffect = errors.New("unsupported_invoice_effect")
)

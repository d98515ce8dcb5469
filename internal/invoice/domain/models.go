// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceType selects how an invoice was priced and what it does when paid.
type InvoiceType string

const (
	InvoiceTypeExtraTable InvoiceType = "EXTRA_TABLE"
	InvoiceTypeRenewal    InvoiceType = "RENEWAL"
	InvoiceTypeExtension  InvoiceType = "EXTENSION"
	InvoiceTypeMonthly    InvoiceType = "MONTHLY"
)

// InvoiceStatus represents invoice lifecycle states. PENDING is the only
// non-terminal status.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusFailed    InvoiceStatus = "FAILED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) IsTerminal() bool {
	return s != InvoiceStatusPending
}

// DueIn is how long a payment link stays due after issue.
const DueIn = 7 * 24 * time.Hour

// Invoice is never deleted; it only moves out of PENDING once.
type Invoice struct {
	ID                snowflake.ID    `json:"id" gorm:"column:id;primaryKey"`
	RestaurantID      snowflake.ID    `json:"restaurant_id" gorm:"column:restaurant_id"`
	Type              InvoiceType     `json:"type" gorm:"column:type"`
	Amount            decimal.Decimal `json:"amount" gorm:"column:amount"`
	Currency          string          `json:"currency" gorm:"column:currency"`
	TablesAdded       int             `json:"tables_added" gorm:"column:tables_added"`
	MonthsAdded       int             `json:"months_added" gorm:"column:months_added"`
	ProratedDays      int             `json:"prorated_days" gorm:"column:prorated_days"`
	Status            InvoiceStatus   `json:"status" gorm:"column:status"`
	PaymentLinkToken  string          `json:"-" gorm:"column:payment_link_token"`
	RazorpayOrderID   *string         `json:"razorpay_order_id,omitempty" gorm:"column:razorpay_order_id"`
	RazorpayPaymentID *string         `json:"razorpay_payment_id,omitempty" gorm:"column:razorpay_payment_id"`
	DueDate           time.Time       `json:"due_date" gorm:"column:due_date"`
	PaidAt            *time.Time      `json:"paid_at,omitempty" gorm:"column:paid_at"`
	Description       string          `json:"description" gorm:"column:description"`
	Metadata          datatypes.JSON  `json:"metadata" gorm:"column:metadata"`
	CreatedAt         time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// PaymentLink embeds only the opaque token, never the invoice id.
func (i Invoice) PaymentLink(baseURL string) string {
	return baseURL + "/pay/" + i.PaymentLinkToken
}

func (i Invoice) OrderID() string {
	if i.RazorpayOrderID == nil {
		return ""
	}
	return *i.RazorpayOrderID
}

// InvoiceView is the admin representation, including the payment link.
type InvoiceView struct {
	Invoice
	PaymentLink string `json:"payment_link"`
}

// Package gateway defines the payment gateway collaborator used for order
// creation and callback verification.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// MaxReceiptLength is the longest receipt the gateway accepts.
const MaxReceiptLength = 40

var (
	ErrMalformedInput = errors.New("gateway_malformed_input")
	ErrNotConfigured  = errors.New("gateway_not_configured")
	ErrUnavailable    = errors.New("gateway_unavailable")
	ErrInvalidOrder   = errors.New("gateway_invalid_order")
)

// OrderRequest carries an amount in major units. Conversion to minor units
// happens inside the gateway implementation.
type OrderRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	VerifyPayment(orderID, paymentID, signature string) (bool, error)
}

// ToMinorUnits converts a major-unit amount, e.g. 16.67 -> 1667.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// BuildReceipt produces a gateway receipt such as "extra-table-1789..." capped
// at MaxReceiptLength characters.
func BuildReceipt(kind string, reference string) string {
	prefix := slug.Make(kind)
	receipt := strings.TrimSpace(reference)
	if prefix != "" {
		receipt = prefix + "-" + receipt
	}
	return TruncateReceipt(receipt)
}

func TruncateReceipt(receipt string) string {
	if len(receipt) <= MaxReceiptLength {
		return receipt
	}
	return receipt[:MaxReceiptLength]
}

type disabled struct{}

// Disabled is used when no gateway credentials are configured.
func Disabled() Gateway { return disabled{} }

func (disabled) CreateOrder(context.Context, OrderRequest) (Order, error) {
	return Order{}, ErrNotConfigured
}

func (disabled) VerifyPayment(string, string, string) (bool, error) {
	return false, ErrNotConfigured
}

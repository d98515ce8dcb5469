// Package razorpay implements gateway.Gateway on top of the Razorpay SDK.
package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/smallbiznis/tablebill/internal/gateway"
	"go.uber.org/zap"
)

// orderAPI is the subset of the SDK order resource in use.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Client struct {
	orders orderAPI
	secret string
	log    *zap.Logger
}

func New(keyID, keySecret string, log *zap.Logger) *Client {
	sdk := razorpay.NewClient(keyID, keySecret)
	return newClient(sdk.Order, keySecret, log)
}

func newClient(orders orderAPI, secret string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{orders: orders, secret: secret, log: log.Named("gateway.razorpay")}
}

func (c *Client) CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.Order, error) {
	if err := ctx.Err(); err != nil {
		return gateway.Order{}, err
	}
	amount := gateway.ToMinorUnits(req.Amount)
	if amount <= 0 {
		return gateway.Order{}, gateway.ErrInvalidOrder
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return gateway.Order{}, gateway.ErrInvalidOrder
	}
	receipt := gateway.TruncateReceipt(req.Receipt)

	resp, err := c.orders.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		c.log.Warn("order creation failed",
			zap.String("receipt", receipt),
			zap.Int64("amount_minor", amount),
			zap.Error(err),
		)
		return gateway.Order{}, errors.Join(gateway.ErrUnavailable, err)
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return gateway.Order{}, fmt.Errorf("%w: response missing order id", gateway.ErrUnavailable)
	}
	status, _ := resp["status"].(string)

	return gateway.Order{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   status,
	}, nil
}

func (c *Client) VerifyPayment(orderID, paymentID, signature string) (bool, error) {
	return gateway.VerifySignature(c.secret, orderID, paymentID, signature)
}

package razorpay

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tablebill/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	lastData map[string]interface{}
	resp     map[string]interface{}
	err      error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.lastData = data
	return f.resp, f.err
}

func TestCreateOrder_ConvertsToMinorUnits(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{"id": "order_abc", "status": "created"}}
	client := newClient(orders, "secret", nil)

	order, err := client.CreateOrder(context.Background(), gateway.OrderRequest{
		Amount:   decimal.RequireFromString("16.67"),
		Currency: "inr",
		Receipt:  "extra-table-0123456789012345678901234567890123456789",
	})
	require.NoError(t, err)

	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(1667), orders.lastData["amount"])
	assert.Equal(t, "INR", orders.lastData["currency"])
	assert.Len(t, orders.lastData["receipt"], gateway.MaxReceiptLength)
}

func TestCreateOrder_GatewayFailure(t *testing.T) {
	orders := &fakeOrders{err: errors.New("connection reset")}
	client := newClient(orders, "secret", nil)

	_, err := client.CreateOrder(context.Background(), gateway.OrderRequest{
		Amount:   decimal.NewFromInt(50),
		Currency: "INR",
		Receipt:  "renewal-1",
	})
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCreateOrder_RejectsZeroAmount(t *testing.T) {
	client := newClient(&fakeOrders{}, "secret", nil)

	_, err := client.CreateOrder(context.Background(), gateway.OrderRequest{
		Amount:   decimal.Zero,
		Currency: "INR",
	})
	assert.ErrorIs(t, err, gateway.ErrInvalidOrder)
}

func TestVerifyPayment_UsesKeySecret(t *testing.T) {
	client := newClient(&fakeOrders{}, "secret", nil)

	ok, err := client.VerifyPayment("order_1", "pay_1", gateway.Sign("secret", "order_1", "pay_1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

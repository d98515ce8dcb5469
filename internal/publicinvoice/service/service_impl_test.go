package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tablebill/internal/billingtest"
	"github.com/smallbiznis/tablebill/internal/clock"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/events"
	"github.com/smallbiznis/tablebill/internal/gateway"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/tablebill/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/tablebill/internal/invoice/service"
	"github.com/smallbiznis/tablebill/internal/notification"
	publicinvoicedomain "github.com/smallbiznis/tablebill/internal/publicinvoice/domain"
	publicinvoiceservice "github.com/smallbiznis/tablebill/internal/publicinvoice/service"
	restaurantrepo "github.com/smallbiznis/tablebill/internal/restaurant/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	calls   int
	lastReq gateway.OrderRequest
	err     error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (gateway.Order, error) {
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return gateway.Order{}, g.err
	}
	return gateway.Order{ID: "order_test_1", Amount: gateway.ToMinorUnits(req.Amount), Currency: req.Currency}, nil
}

func (g *fakeGateway) VerifyPayment(string, string, string) (bool, error) { return true, nil }

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, notification.Message) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) error { return nil }

type harness struct {
	db       *gorm.DB
	fx       *billingtest.Fixtures
	mr       *miniredis.Miniredis
	gw       *fakeGateway
	invoices invoicedomain.Service
	svc      publicinvoicedomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	db := billingtest.OpenSQLite(t)
	fixtures := billingtest.NewFixtures(t, db)
	clk := clock.NewFakeClock(now)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{PublicBaseURL: "https://billing.example.com", Currency: "INR"}
	cfg.Razorpay.KeyID = "rzp_test_key"

	h := &harness{db: db, fx: fixtures, mr: mr, gw: &fakeGateway{}}
	h.invoices = invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          fixtures.Node(),
		Clock:          clk,
		Cfg:            cfg,
		Pricing:        config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
		Repo:           invoicerepo.Provide(),
		RestaurantRepo: restaurantrepo.Provide(),
		Notifier:       nopNotifier{},
		Publisher:      nopPublisher{},
	})
	h.svc = publicinvoiceservice.New(publicinvoiceservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clk,
		Cfg:         cfg,
		Gateway:     h.gw,
		InvoiceRepo: invoicerepo.Provide(),
		Redis:       client,
	})
	return h
}

func (h *harness) pendingInvoice(t *testing.T) invoicedomain.InvoiceView {
	t.Helper()
	r, _ := h.fx.Restaurant(t, time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC), 3)
	inv, err := h.invoices.CreateRenewalInvoice(context.Background(), invoicedomain.CreateTermRequest{RestaurantID: r.ID.String(), Months: 1})
	require.NoError(t, err)
	return inv
}

func TestCreateCheckoutSession_CreatesOrderOnce(t *testing.T) {
	h := newHarness(t)
	inv := h.pendingInvoice(t)
	ctx := context.Background()

	first, err := h.svc.CreateCheckoutSession(ctx, inv.PaymentLinkToken)
	require.NoError(t, err)
	assert.Equal(t, "order_test_1", first.OrderID)
	assert.Equal(t, "rzp_test_key", first.KeyID)
	assert.Equal(t, int64(15000), first.AmountMinor)
	assert.True(t, h.gw.lastReq.Amount.Equal(decimal.NewFromInt(150)))
	assert.LessOrEqual(t, len(h.gw.lastReq.Receipt), gateway.MaxReceiptLength)

	second, err := h.svc.CreateCheckoutSession(ctx, inv.PaymentLinkToken)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, h.gw.calls)

	stored := h.fx.LoadInvoice(t, inv.ID)
	require.NotNil(t, stored.RazorpayOrderID)
	assert.Equal(t, "order_test_1", *stored.RazorpayOrderID)
}

func TestCreateCheckoutSession_GatewayFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	inv := h.pendingInvoice(t)
	h.gw.err = gateway.ErrUnavailable

	_, err := h.svc.CreateCheckoutSession(context.Background(), inv.PaymentLinkToken)
	if !errors.Is(err, publicinvoicedomain.ErrCheckoutUnavailable) {
		t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
	}

	stored := h.fx.LoadInvoice(t, inv.ID)
	assert.Nil(t, stored.RazorpayOrderID)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, stored.Status)
}

func TestCreateCheckoutSession_TerminalInvoiceUnavailable(t *testing.T) {
	h := newHarness(t)
	inv := h.pendingInvoice(t)
	require.NoError(t, h.db.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, invoicedomain.InvoiceStatusCancelled, inv.ID).Error)

	_, err := h.svc.CreateCheckoutSession(context.Background(), inv.PaymentLinkToken)
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceUnavailable)
	assert.Equal(t, 0, h.gw.calls)

	_, err = h.svc.CreateCheckoutSession(context.Background(), "missing")
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceNotFound)
}

func TestGetInvoicePublicStatus_CachesOnlyTerminalReads(t *testing.T) {
	h := newHarness(t)
	inv := h.pendingInvoice(t)
	ctx := context.Background()

	pending, err := h.svc.GetInvoicePublicStatus(ctx, inv.PaymentLinkToken)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", pending.Status)
	assert.False(t, pending.Terminal)
	assert.True(t, pending.DueDate.Equal(inv.DueDate))
	assert.Empty(t, h.mr.Keys())

	require.NoError(t, h.db.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, invoicedomain.InvoiceStatusPaid, inv.ID).Error)

	paid, err := h.svc.GetInvoicePublicStatus(ctx, inv.PaymentLinkToken)
	require.NoError(t, err)
	assert.True(t, paid.Terminal)
	assert.Len(t, h.mr.Keys(), 1)

	// the cached terminal read survives even if the row is tampered with
	require.NoError(t, h.db.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, invoicedomain.InvoiceStatusPending, inv.ID).Error)
	again, err := h.svc.GetInvoicePublicStatus(ctx, inv.PaymentLinkToken)
	require.NoError(t, err)
	assert.Equal(t, "PAID", again.Status)
}

func TestGetInvoicePublicStatus_UnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetInvoicePublicStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvoiceNotFound)
	_, err = h.svc.GetInvoicePublicStatus(context.Background(), "")
	assert.ErrorIs(t, err, publicinvoicedomain.ErrInvalidToken)
}

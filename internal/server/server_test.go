package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tablebill/internal/billingtest"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/gateway"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/tablebill/internal/payment/domain"
	publicinvoicedomain "github.com/smallbiznis/tablebill/internal/publicinvoice/domain"
	"github.com/smallbiznis/tablebill/internal/ratelimit"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminToken = "secret-admin-token"

type fakeRestaurants struct{ err error }

func (f *fakeRestaurants) Get(_ context.Context, id string) (restaurantdomain.Overview, error) {
	if f.err != nil {
		return restaurantdomain.Overview{}, f.err
	}
	parsed, _ := snowflake.ParseString(id)
	return restaurantdomain.Overview{Restaurant: restaurantdomain.Restaurant{ID: parsed, Name: "Spice Route"}, TotalTables: 12, Plan: "PRO"}, nil
}

type fakeInvoices struct {
	invoicedomain.Service
	created   []invoicedomain.CreateExtraTableRequest
	terms     []invoicedomain.CreateTermRequest
	notified  int
	notifyErr error
	createErr error
	listReq   invoicedomain.ListInvoiceRequest
}

func (f *fakeInvoices) CreateExtraTableInvoice(_ context.Context, req invoicedomain.CreateExtraTableRequest) (invoicedomain.InvoiceView, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return invoicedomain.InvoiceView{}, f.createErr
	}
	return invoicedomain.InvoiceView{Invoice: invoicedomain.Invoice{ID: 77, Type: invoicedomain.InvoiceTypeExtraTable}}, nil
}

func (f *fakeInvoices) CreateRenewalInvoice(_ context.Context, req invoicedomain.CreateTermRequest) (invoicedomain.InvoiceView, error) {
	f.terms = append(f.terms, req)
	return invoicedomain.InvoiceView{Invoice: invoicedomain.Invoice{ID: 78, Type: invoicedomain.InvoiceTypeRenewal}}, nil
}

func (f *fakeInvoices) CreateExtensionInvoice(_ context.Context, req invoicedomain.CreateTermRequest) (invoicedomain.InvoiceView, error) {
	f.terms = append(f.terms, req)
	return invoicedomain.InvoiceView{Invoice: invoicedomain.Invoice{ID: 79, Type: invoicedomain.InvoiceTypeExtension}}, nil
}

func (f *fakeInvoices) GetByID(context.Context, string) (invoicedomain.InvoiceView, error) {
	return invoicedomain.InvoiceView{}, invoicedomain.ErrInvoiceNotFound
}

func (f *fakeInvoices) List(_ context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.listReq = req
	return invoicedomain.ListInvoiceResponse{Invoices: []invoicedomain.InvoiceView{}}, nil
}

func (f *fakeInvoices) Notify(context.Context, invoicedomain.Invoice) error {
	f.notified++
	return f.notifyErr
}

type fakePayments struct {
	verifyErr   error
	cancelErr   error
	lastReq     paymentdomain.VerifyRequest
	cancellable bool
}

func (f *fakePayments) Verify(ctx context.Context, req paymentdomain.VerifyRequest) (paymentdomain.VerifyResult, error) {
	f.lastReq = req
	f.cancellable = ctx.Done() != nil
	if f.verifyErr != nil {
		return paymentdomain.VerifyResult{}, f.verifyErr
	}
	return paymentdomain.VerifyResult{InvoiceID: 77, Status: "PAID"}, nil
}

func (f *fakePayments) Cancel(context.Context, string) (paymentdomain.VerifyResult, error) {
	if f.cancelErr != nil {
		return paymentdomain.VerifyResult{}, f.cancelErr
	}
	return paymentdomain.VerifyResult{InvoiceID: 77, Status: "CANCELLED"}, nil
}

type fakePublic struct {
	checkoutErr error
}

func (f *fakePublic) GetInvoicePublicStatus(_ context.Context, token string) (publicinvoicedomain.PublicInvoiceStatus, error) {
	if token != "tok" {
		return publicinvoicedomain.PublicInvoiceStatus{}, publicinvoicedomain.ErrInvoiceNotFound
	}
	return publicinvoicedomain.PublicInvoiceStatus{Amount: decimal.NewFromInt(150), Status: "PENDING"}, nil
}

func (f *fakePublic) CreateCheckoutSession(context.Context, string) (publicinvoicedomain.CheckoutSession, error) {
	if f.checkoutErr != nil {
		return publicinvoicedomain.CheckoutSession{}, f.checkoutErr
	}
	return publicinvoicedomain.CheckoutSession{OrderID: "order_1"}, nil
}

type testServer struct {
	engine   *gin.Engine
	invoices *fakeInvoices
	payments *fakePayments
	public   *fakePublic
}

func newTestServer(t *testing.T, limiter *ratelimit.PublicLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		engine:   NewEngine(nil),
		invoices: &fakeInvoices{},
		payments: &fakePayments{},
		public:   &fakePublic{},
	}
	srv := NewServer(Params{
		Engine:        ts.engine,
		Cfg:           config.Config{AdminAPIToken: adminToken},
		DB:            billingtest.OpenSQLite(t),
		Log:           zap.NewNop(),
		Pricing:       config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
		RestaurantSvc: &fakeRestaurants{},
		InvoiceSvc:    ts.invoices,
		PaymentSvc:    ts.payments,
		PublicSvc:     ts.public,
		Limiter:       limiter,
	})
	srv.RegisterRoutes()
	return ts
}

func (ts *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestPricingQuote(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/pricing/quote?tables=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			MonthlyPrice string `json:"monthly_price"`
			AnnualPrice  string `json:"annual_price"`
			Plan         string `json:"plan"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "150", resp.Data.MonthlyPrice)
	assert.Equal(t, "1620", resp.Data.AnnualPrice)
	assert.Equal(t, "BASIC", resp.Data.Plan)

	for _, q := range []string{"0", "abc", "-1"} {
		rec := ts.do(http.MethodGet, "/api/pricing/quote?tables="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "validation_error", decodeError(t, rec).Type)
	}
}

func TestAdminAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/admin/restaurants/42", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/admin/restaurants/42", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/admin/restaurants/42", "", "Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_EmptyTokenLocksSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(nil)
	srv := NewServer(Params{
		Engine:        engine,
		DB:            billingtest.OpenSQLite(t),
		Log:           zap.NewNop(),
		Pricing:       config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
		RestaurantSvc: &fakeRestaurants{},
		InvoiceSvc:    &fakeInvoices{},
		PaymentSvc:    &fakePayments{},
		PublicSvc:     &fakePublic{},
	})
	srv.RegisterRoutes()

	req := httptest.NewRequest(http.MethodGet, "/admin/restaurants/42", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateExtraTableInvoice(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := []string{"Authorization", "Bearer " + adminToken}

	rec := ts.do(http.MethodPost, "/admin/restaurants/42/invoices/extra-tables",
		`{"location_deltas":[{"location_id":"7","tables":2}]}`, auth...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, ts.invoices.created, 1)
	assert.Equal(t, "42", ts.invoices.created[0].RestaurantID)
	assert.Equal(t, snowflake.ID(7), ts.invoices.created[0].LocationDeltas[0].LocationID)
	assert.Equal(t, 1, ts.invoices.notified)

	rec = ts.do(http.MethodPost, "/admin/restaurants/42/invoices/extra-tables", `{"location_deltas":[]}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.NotEmpty(t, payload.Errors)
	assert.Equal(t, "LocationDeltas", payload.Errors[0].Field)

	rec = ts.do(http.MethodPost, "/admin/restaurants/abc/invoices/extra-tables",
		`{"location_deltas":[{"location_id":"7","tables":2}]}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id", decodeError(t, rec).Errors[0].Field)
}

func TestCreateInvoice_NotificationFailureStillSucceeds(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.notifyErr = errors.New("smtp down")

	rec := ts.do(http.MethodPost, "/admin/restaurants/42/invoices/renewal", `{"months":3}`,
		"Authorization", "Bearer "+adminToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.invoices.terms, 1)
	assert.Equal(t, 3, ts.invoices.terms[0].Months)
}

func TestCreateInvoice_DomainErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := []string{"Authorization", "Bearer " + adminToken}

	ts.invoices.createErr = restaurantdomain.ErrLocationNotFound
	rec := ts.do(http.MethodPost, "/admin/restaurants/42/invoices/extra-tables",
		`{"location_deltas":[{"location_id":"7","tables":2}]}`, auth...)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.invoices.createErr = invoicedomain.ErrInvalidDelta
	rec = ts.do(http.MethodPost, "/admin/restaurants/42/invoices/extra-tables",
		`{"location_deltas":[{"location_id":"7","tables":-1}]}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_location_delta", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(http.MethodPost, "/admin/restaurants/42/invoices/extension", `{"months":0}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/admin/invoices/99", "", auth...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelInvoice(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := []string{"Authorization", "Bearer " + adminToken}

	rec := ts.do(http.MethodPost, "/admin/invoices/77/cancel", "", auth...)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.payments.cancelErr = paymentdomain.ErrAlreadyProcessed
	rec = ts.do(http.MethodPost, "/admin/invoices/77/cancel", "", auth...)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Type)
}

func TestListRestaurantInvoices_BindsPagination(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := []string{"Authorization", "Bearer " + adminToken}

	rec := ts.do(http.MethodGet, "/admin/restaurants/42/invoices?page_size=5&page_token=abc", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", ts.invoices.listReq.RestaurantID)
	assert.Equal(t, 5, ts.invoices.listReq.PageSize)
	assert.Equal(t, "abc", ts.invoices.listReq.PageToken)

	rec = ts.do(http.MethodGet, "/admin/restaurants/42/invoices?page_size=500", "", auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSchedulerJob_WithoutScheduler(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPost, "/admin/scheduler/reminder/run", "", "Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyPublicPayment(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`

	rec := ts.do(http.MethodPost, "/public/invoices/tok/verify", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", ts.payments.lastReq.Token)
	assert.Equal(t, "pay_1", ts.payments.lastReq.PaymentID)
	assert.False(t, ts.payments.cancellable)

	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{paymentdomain.ErrInvalidSignature, http.StatusPaymentRequired, "payment_failed"},
		{paymentdomain.ErrAlreadyProcessed, http.StatusConflict, "conflict"},
		{paymentdomain.ErrOrderMismatch, http.StatusBadRequest, "validation_error"},
		{paymentdomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		ts.payments.verifyErr = tc.err
		rec := ts.do(http.MethodPost, "/public/invoices/tok/verify", body)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.kind, decodeError(t, rec).Type)
	}
}

func TestVerifyPublicPayment_MissingFields(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/public/invoices/tok/verify", `{"razorpay_order_id":"order_1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Len(t, payload.Errors, 2)
	assert.Equal(t, "required", payload.Errors[0].Code)
}

func TestPublicInvoiceStatusAndCheckout(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/public/invoices/tok", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/public/invoices/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/public/invoices/tok/checkout", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.public.checkoutErr = errors.Join(publicinvoicedomain.ErrCheckoutUnavailable, gateway.ErrUnavailable)
	rec = ts.do(http.MethodPost, "/public/invoices/tok/checkout", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts.public.checkoutErr = publicinvoicedomain.ErrInvoiceUnavailable
	rec = ts.do(http.MethodPost, "/public/invoices/tok/checkout", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, PublicRate: 0.001, PublicBurst: 2}}
	limiter := ratelimit.NewPublicLimiter(cfg, ratelimit.NewTokenBucket(client), zap.NewNop())
	ts := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		rec := ts.do(http.MethodGet, "/public/invoices/tok", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ts.do(http.MethodGet, "/public/invoices/tok", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)

	// buckets are per route group
	rec = ts.do(http.MethodPost, "/public/invoices/tok/checkout", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// quote and admin routes are not throttled
	rec = ts.do(http.MethodGet, "/api/pricing/quote?tables=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

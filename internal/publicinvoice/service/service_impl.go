package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tablebill/internal/cache"
	"github.com/smallbiznis/tablebill/internal/clock"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/gateway"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/tablebill/internal/observability/metrics"
	publicinvoicedomain "github.com/smallbiznis/tablebill/internal/publicinvoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const terminalStatusTTL = 24 * time.Hour

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Cfg         config.Config
	Gateway     gateway.Gateway
	InvoiceRepo invoicedomain.Repository
	Redis       *redis.Client              `optional:"true"`
	Metrics     *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	keyID       string
	gateway     gateway.Gateway
	invoiceRepo invoicedomain.Repository
	statusCache *cache.JSONCache[publicinvoicedomain.PublicInvoiceStatus]
	metrics     *obsmetrics.BillingMetrics
}

func New(p Params) publicinvoicedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("publicinvoice.service"),
		clock:       p.Clock,
		keyID:       p.Cfg.Razorpay.KeyID,
		gateway:     p.Gateway,
		invoiceRepo: p.InvoiceRepo,
		statusCache: cache.NewJSONCache[publicinvoicedomain.PublicInvoiceStatus](p.Redis, "tablebill:public-invoice:"),
		metrics:     p.Metrics,
	}
}

func (s *Service) GetInvoicePublicStatus(ctx context.Context, token string) (publicinvoicedomain.PublicInvoiceStatus, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return publicinvoicedomain.PublicInvoiceStatus{}, publicinvoicedomain.ErrInvalidToken
	}

	key := hashToken(token)
	if cached, ok, err := s.statusCache.Get(ctx, key); err != nil {
		s.log.Warn("status cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	inv, err := s.load(ctx, token)
	if err != nil {
		return publicinvoicedomain.PublicInvoiceStatus{}, err
	}

	view := publicinvoicedomain.PublicInvoiceStatus{
		Amount:      inv.Amount,
		Currency:    inv.Currency,
		Description: inv.Description,
		DueDate:     inv.DueDate,
		Status:      string(inv.Status),
		Terminal:    inv.Status.IsTerminal(),
		PaidAt:      inv.PaidAt,
	}
	if view.Terminal {
		if err := s.statusCache.Set(ctx, key, view, terminalStatusTTL); err != nil {
			s.log.Warn("status cache write failed", zap.Error(err))
		}
	}
	return view, nil
}

// CreateCheckoutSession creates the gateway order on first use and reuses it
// afterwards. A gateway failure leaves the invoice untouched.
func (s *Service) CreateCheckoutSession(ctx context.Context, token string) (publicinvoicedomain.CheckoutSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return publicinvoicedomain.CheckoutSession{}, publicinvoicedomain.ErrInvalidToken
	}

	inv, err := s.load(ctx, token)
	if err != nil {
		return publicinvoicedomain.CheckoutSession{}, err
	}
	if inv.Status.IsTerminal() {
		return publicinvoicedomain.CheckoutSession{}, publicinvoicedomain.ErrInvoiceUnavailable
	}
	if inv.OrderID() != "" {
		return s.session(inv, inv.OrderID()), nil
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   inv.Amount,
		Currency: inv.Currency,
		Receipt:  gateway.BuildReceipt(strings.ReplaceAll(string(inv.Type), "_", " "), inv.ID.String()),
	})
	s.metrics.IncGatewayOrder(err)
	if err != nil {
		s.log.Warn("gateway order creation failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return publicinvoicedomain.CheckoutSession{}, errors.Join(publicinvoicedomain.ErrCheckoutUnavailable, err)
	}

	attached, err := s.invoiceRepo.AttachOrder(ctx, s.db, inv.ID, order.ID, s.clock.Now())
	if err != nil {
		return publicinvoicedomain.CheckoutSession{}, err
	}
	if attached {
		return s.session(inv, order.ID), nil
	}

	// Lost the race to a concurrent checkout or a terminal transition.
	current, err := s.load(ctx, token)
	if err != nil {
		return publicinvoicedomain.CheckoutSession{}, err
	}
	s.log.Info("discarding unattached gateway order",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("order_id", order.ID),
	)
	if current.Status.IsTerminal() || current.OrderID() == "" {
		return publicinvoicedomain.CheckoutSession{}, publicinvoicedomain.ErrInvoiceUnavailable
	}
	return s.session(current, current.OrderID()), nil
}

func (s *Service) load(ctx context.Context, token string) (*invoicedomain.Invoice, error) {
	inv, err := s.invoiceRepo.FindByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, publicinvoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Service) session(inv *invoicedomain.Invoice, orderID string) publicinvoicedomain.CheckoutSession {
	return publicinvoicedomain.CheckoutSession{
		KeyID:       s.keyID,
		OrderID:     orderID,
		Amount:      inv.Amount,
		AmountMinor: gateway.ToMinorUnits(inv.Amount),
		Currency:    inv.Currency,
		Description: inv.Description,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

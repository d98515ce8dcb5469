package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/clock"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/events"
	"github.com/smallbiznis/tablebill/internal/gateway"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/tablebill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tablebill/internal/payment/domain"
	"github.com/smallbiznis/tablebill/internal/pricing"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Gateway        gateway.Gateway
	Pricing        *config.PricingConfigHolder
	Repo           paymentdomain.Repository
	InvoiceRepo    invoicedomain.Repository
	RestaurantRepo restaurantdomain.Repository
	Publisher      events.Publisher
	Metrics        *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	gateway        gateway.Gateway
	pricing        *config.PricingConfigHolder
	repo           paymentdomain.Repository
	invoiceRepo    invoicedomain.Repository
	restaurantRepo restaurantdomain.Repository
	publisher      events.Publisher
	metrics        *obsmetrics.BillingMetrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("payment.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		gateway:        p.Gateway,
		pricing:        p.Pricing,
		repo:           p.Repo,
		invoiceRepo:    p.InvoiceRepo,
		restaurantRepo: p.RestaurantRepo,
		publisher:      p.Publisher,
		metrics:        p.Metrics,
	}
}

// settlement carries what happened inside the transaction out to the
// post-commit side effects.
type settlement struct {
	invoice    *invoicedomain.Invoice
	outcome    paymentdomain.Outcome
	restaurant *restaurantdomain.Restaurant
}

// Verify settles one gateway callback. The signature is checked before any
// write; the status compare-and-set and the subscription effect commit
// together or not at all.
func (s *Service) Verify(ctx context.Context, req paymentdomain.VerifyRequest) (paymentdomain.VerifyResult, error) {
	req = normalizeVerifyRequest(req)
	if req.Token == "" || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return paymentdomain.VerifyResult{}, paymentdomain.ErrInvalidRequest
	}

	valid, err := s.gateway.VerifyPayment(req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		if errors.Is(err, gateway.ErrMalformedInput) {
			return paymentdomain.VerifyResult{}, paymentdomain.ErrInvalidRequest
		}
		return paymentdomain.VerifyResult{}, err
	}

	now := s.clock.Now()
	var st settlement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.invoiceRepo.FindByToken(ctx, tx, req.Token)
		if err != nil {
			return err
		}
		if inv == nil {
			return paymentdomain.ErrInvoiceNotFound
		}
		st.invoice = inv

		if inv.Status.IsTerminal() {
			return paymentdomain.ErrAlreadyProcessed
		}
		if inv.OrderID() == "" || inv.OrderID() != req.OrderID {
			return paymentdomain.ErrOrderMismatch
		}

		if !valid {
			st.outcome = paymentdomain.OutcomeFailed
			if err := s.transition(ctx, tx, inv, invoicedomain.StatusChange{
				From:      invoicedomain.InvoiceStatusPending,
				To:        invoicedomain.InvoiceStatusFailed,
				PaymentID: &req.PaymentID,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			return s.recordEvent(ctx, tx, inv.ID, req, st.outcome, now)
		}

		st.outcome = paymentdomain.OutcomePaid
		if err := s.transition(ctx, tx, inv, invoicedomain.StatusChange{
			From:      invoicedomain.InvoiceStatusPending,
			To:        invoicedomain.InvoiceStatusPaid,
			PaymentID: &req.PaymentID,
			PaidAt:    &now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		restaurant, err := s.applyEffect(ctx, tx, inv, now)
		if err != nil {
			return err
		}
		st.restaurant = restaurant
		return s.recordEvent(ctx, tx, inv.ID, req, st.outcome, now)
	})
	if err != nil {
		s.reject(ctx, st.invoice, req, err, now)
		return paymentdomain.VerifyResult{}, err
	}

	result := s.afterCommit(ctx, st, now)
	if st.outcome == paymentdomain.OutcomeFailed {
		return result, paymentdomain.ErrInvalidSignature
	}
	return result, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, change invoicedomain.StatusChange) error {
	ok, err := s.invoiceRepo.TransitionStatus(ctx, tx, inv.ID, change)
	if err != nil {
		return err
	}
	if !ok {
		return paymentdomain.ErrAlreadyProcessed
	}
	inv.Status = change.To
	inv.PaidAt = change.PaidAt
	return nil
}

// applyEffect performs the single subscription mutation implied by the
// invoice type, under a row lock on the restaurant.
func (s *Service) applyEffect(
	ctx context.Context,
	tx *gorm.DB,
	inv *invoicedomain.Invoice,
	now time.Time,
) (*restaurantdomain.Restaurant, error) {
	restaurant, err := s.restaurantRepo.FindByIDForUpdate(ctx, tx, inv.RestaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, restaurantdomain.ErrNotFound
	}

	meta, err := invoicedomain.DecodeMetadata(inv.Metadata)
	if err != nil {
		return nil, err
	}
	if meta.Kind != inv.Type {
		return nil, invoicedomain.ErrInvalidMetadata
	}

	switch inv.Type {
	case invoicedomain.InvoiceTypeExtraTable:
		quote, ok := pricing.NewCalculator(s.pricing.Get()).CalculatePrice(meta.ExtraTable.BasisTableCount)
		if !ok {
			return nil, invoicedomain.ErrInvalidMetadata
		}
		restaurant.PricePerMonth = quote.MonthlyPrice
		for _, d := range meta.ExtraTable.LocationDeltas {
			if err := s.restaurantRepo.AddLocationTables(ctx, tx, restaurant.ID, d.LocationID, d.Tables, now); err != nil {
				return nil, err
			}
		}
	case invoicedomain.InvoiceTypeRenewal, invoicedomain.InvoiceTypeMonthly:
		base := restaurant.EndDate
		if now.After(base) {
			base = now
		}
		restaurant.ExtendFrom(base, meta.Term.MonthsAdded)
		restaurant.IsActive = true
	case invoicedomain.InvoiceTypeExtension:
		restaurant.ExtendFrom(restaurant.EndDate, meta.Term.MonthsAdded)
		restaurant.IsActive = restaurant.EndDate.After(now)
	default:
		return nil, paymentdomain.ErrUnsupportedEffect
	}

	restaurant.UpdatedAt = now
	restaurant.Normalize(now)
	if err := s.restaurantRepo.UpdateSubscription(ctx, tx, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}

func (s *Service) recordEvent(
	ctx context.Context,
	db *gorm.DB,
	invoiceID snowflake.ID,
	req paymentdomain.VerifyRequest,
	outcome paymentdomain.Outcome,
	now time.Time,
) error {
	_, err := s.repo.InsertEvent(ctx, db, &paymentdomain.EventRecord{
		ID:         s.genID.Generate(),
		InvoiceID:  invoiceID,
		Provider:   paymentdomain.ProviderRazorpay,
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		Outcome:    outcome,
		ReceivedAt: now,
	})
	return err
}

// reject audits callbacks that reached a known invoice but changed nothing.
func (s *Service) reject(ctx context.Context, inv *invoicedomain.Invoice, req paymentdomain.VerifyRequest, cause error, now time.Time) {
	if inv == nil {
		return
	}
	if !errors.Is(cause, paymentdomain.ErrAlreadyProcessed) && !errors.Is(cause, paymentdomain.ErrOrderMismatch) {
		s.log.Error("settlement failed", zap.String("invoice_id", inv.ID.String()), zap.Error(cause))
		return
	}

	s.metrics.IncSettlement("rejected")
	s.log.Info("verification rejected",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("status", string(inv.Status)),
		zap.String("reason", cause.Error()),
	)
	if err := s.recordEvent(ctx, s.db, inv.ID, req, paymentdomain.OutcomeRejected, now); err != nil {
		s.log.Warn("record rejected payment event failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
}

func (s *Service) afterCommit(ctx context.Context, st settlement, now time.Time) paymentdomain.VerifyResult {
	inv := st.invoice
	restaurantID := inv.RestaurantID.String()
	invoiceID := inv.ID.String()

	result := paymentdomain.VerifyResult{InvoiceID: inv.ID, Status: string(inv.Status)}
	var evts []events.Event

	switch st.outcome {
	case paymentdomain.OutcomePaid:
		s.metrics.IncSettlement("paid")
		evts = append(evts, events.New(events.TypeInvoicePaid, restaurantID, invoiceID, now, map[string]any{
			"type":   inv.Type,
			"amount": inv.Amount.StringFixed(2),
		}))
		if r := st.restaurant; r != nil {
			result.Subscription = &paymentdomain.SubscriptionState{
				PricePerMonth: r.PricePerMonth,
				EndDate:       r.EndDate,
				IsActive:      r.IsActive,
			}
			evts = append(evts, events.New(events.TypeSubscriptionUpdated, restaurantID, invoiceID, now, map[string]any{
				"price_per_month": r.PricePerMonth.StringFixed(2),
				"end_date":        r.EndDate,
				"is_active":       r.IsActive,
			}))
		}
		s.log.Info("invoice settled",
			zap.String("invoice_id", invoiceID),
			zap.String("restaurant_id", restaurantID),
			zap.String("type", string(inv.Type)),
		)
	case paymentdomain.OutcomeFailed:
		s.metrics.IncSettlement("failed")
		evts = append(evts, events.New(events.TypeInvoiceFailed, restaurantID, invoiceID, now, nil))
		s.log.Warn("payment signature mismatch", zap.String("invoice_id", invoiceID))
	}

	if err := events.PublishAll(ctx, s.publisher, evts...); err != nil {
		s.log.Warn("publish settlement events failed", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
	return result
}

// Cancel administratively closes a PENDING invoice.
func (s *Service) Cancel(ctx context.Context, invoiceID string) (paymentdomain.VerifyResult, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return paymentdomain.VerifyResult{}, paymentdomain.ErrInvalidRequest
	}

	now := s.clock.Now()
	var inv *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.invoiceRepo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return paymentdomain.ErrInvoiceNotFound
		}
		if found.Status.IsTerminal() {
			return paymentdomain.ErrAlreadyProcessed
		}
		inv = found
		return s.transition(ctx, tx, found, invoicedomain.StatusChange{
			From:      invoicedomain.InvoiceStatusPending,
			To:        invoicedomain.InvoiceStatusCancelled,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return paymentdomain.VerifyResult{}, err
	}

	s.metrics.IncSettlement("cancelled")
	evt := events.New(events.TypeInvoiceCancelled, inv.RestaurantID.String(), inv.ID.String(), now, nil)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("publish invoice.cancelled failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
	return paymentdomain.VerifyResult{InvoiceID: inv.ID, Status: string(inv.Status)}, nil
}

func normalizeVerifyRequest(req paymentdomain.VerifyRequest) paymentdomain.VerifyRequest {
	req.Token = strings.TrimSpace(req.Token)
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	return req
}

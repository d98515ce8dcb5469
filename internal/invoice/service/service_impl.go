package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tablebill/internal/clock"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/events"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	"github.com/smallbiznis/tablebill/internal/notification"
	obsmetrics "github.com/smallbiznis/tablebill/internal/observability/metrics"
	"github.com/smallbiznis/tablebill/internal/pricing"
	"github.com/smallbiznis/tablebill/internal/proration"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/smallbiznis/tablebill/pkg/db"
	"github.com/smallbiznis/tablebill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Cfg            config.Config
	Pricing        *config.PricingConfigHolder
	Repo           invoicedomain.Repository
	RestaurantRepo restaurantdomain.Repository
	Notifier       notification.Notifier
	Publisher      events.Publisher
	Metrics        *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	publicBaseURL string
	currency      string
	pricing       *config.PricingConfigHolder

	repo           invoicedomain.Repository
	restaurantRepo restaurantdomain.Repository
	notifier       notification.Notifier
	publisher      events.Publisher
	metrics        *obsmetrics.BillingMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		publicBaseURL: p.Cfg.PublicBaseURL,
		currency:      p.Cfg.Currency,
		pricing:       p.Pricing,

		repo:           p.Repo,
		restaurantRepo: p.RestaurantRepo,
		notifier:       p.Notifier,
		publisher:      p.Publisher,
		metrics:        p.Metrics,
	}
}

func (s *Service) CreateExtraTableInvoice(ctx context.Context, req invoicedomain.CreateExtraTableRequest) (invoicedomain.InvoiceView, error) {
	restaurantID, err := parseID(req.RestaurantID, invoicedomain.ErrInvalidRestaurant)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	deltas, err := normalizeDeltas(req.LocationDeltas)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	restaurant, err := s.loadRestaurant(ctx, restaurantID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	locations, err := s.restaurantRepo.ListLocations(ctx, s.db, restaurantID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	known := lo.SliceToMap(locations, func(l restaurantdomain.Location) (snowflake.ID, struct{}) {
		return l.ID, struct{}{}
	})
	for _, d := range deltas {
		if _, ok := known[d.LocationID]; !ok {
			return invoicedomain.InvoiceView{}, restaurantdomain.ErrLocationNotFound
		}
	}

	current := lo.SumBy(locations, func(l restaurantdomain.Location) int { return l.TotalTables })
	added := lo.SumBy(deltas, func(d restaurantdomain.LocationDelta) int { return d.Tables })
	basis := current + added

	calc := pricing.NewCalculator(s.pricing.Get())
	if _, ok := calc.CalculatePrice(basis); !ok {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrNoBillableTables
	}

	now := s.clock.Now()
	prorated := proration.Calculate(added, calc.PricePerTable(), now, restaurant.EndDate)

	metadata, err := invoicedomain.EncodeMetadata(invoicedomain.NewExtraTableMetadata(basis, deltas))
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	description := fmt.Sprintf("%d extra table(s), prorated for %d of %d day(s)", added, prorated.RemainingDays, prorated.DaysInMonth)
	proratedDays := prorated.RemainingDays
	if prorated.FullMonth {
		description = fmt.Sprintf("%d extra table(s), full month", added)
		proratedDays = 0
	}

	inv, err := s.newInvoice(restaurantID, invoicedomain.InvoiceTypeExtraTable, prorated.Amount, description, metadata, now)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	inv.TablesAdded = added
	inv.ProratedDays = proratedDays

	return s.persist(ctx, inv)
}

func (s *Service) CreateRenewalInvoice(ctx context.Context, req invoicedomain.CreateTermRequest) (invoicedomain.InvoiceView, error) {
	return s.createTermInvoice(ctx, invoicedomain.InvoiceTypeRenewal, req)
}

func (s *Service) CreateExtensionInvoice(ctx context.Context, req invoicedomain.CreateTermRequest) (invoicedomain.InvoiceView, error) {
	return s.createTermInvoice(ctx, invoicedomain.InvoiceTypeExtension, req)
}

func (s *Service) createTermInvoice(
	ctx context.Context,
	invoiceType invoicedomain.InvoiceType,
	req invoicedomain.CreateTermRequest,
) (invoicedomain.InvoiceView, error) {
	restaurantID, err := parseID(req.RestaurantID, invoicedomain.ErrInvalidRestaurant)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if req.Months < 1 {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidMonths
	}
	if _, err := s.loadRestaurant(ctx, restaurantID); err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	basis, err := s.restaurantRepo.SumTables(ctx, s.db, restaurantID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	quote, ok := pricing.NewCalculator(s.pricing.Get()).CalculatePrice(basis)
	if !ok {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrNoBillableTables
	}
	amount := quote.MonthlyPrice.Mul(decimal.NewFromInt(int64(req.Months)))

	metadata, err := invoicedomain.EncodeMetadata(invoicedomain.NewTermMetadata(invoiceType, req.Months))
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	label := "renewal"
	if invoiceType == invoicedomain.InvoiceTypeExtension {
		label = "extension"
	}
	description := fmt.Sprintf("Subscription %s for %d month(s), %d table(s) on %s plan", label, req.Months, quote.TotalTables, quote.Plan)

	inv, err := s.newInvoice(restaurantID, invoiceType, amount, description, metadata, s.clock.Now())
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	inv.MonthsAdded = req.Months

	return s.persist(ctx, inv)
}

func (s *Service) newInvoice(
	restaurantID snowflake.ID,
	invoiceType invoicedomain.InvoiceType,
	amount decimal.Decimal,
	description string,
	metadata []byte,
	now time.Time,
) (*invoicedomain.Invoice, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	return &invoicedomain.Invoice{
		ID:               s.genID.Generate(),
		RestaurantID:     restaurantID,
		Type:             invoiceType,
		Amount:           amount,
		Currency:         s.currency,
		Status:           invoicedomain.InvoiceStatusPending,
		PaymentLinkToken: token,
		DueDate:          now.Add(invoicedomain.DueIn),
		Description:      description,
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *Service) persist(ctx context.Context, inv *invoicedomain.Invoice) (invoicedomain.InvoiceView, error) {
	err := s.repo.Insert(ctx, s.db, inv)
	if db.IsDuplicateKeyErr(err) {
		// token collision; ids come from snowflake and cannot clash
		token, tokenErr := generateToken()
		if tokenErr != nil {
			return invoicedomain.InvoiceView{}, tokenErr
		}
		inv.PaymentLinkToken = token
		err = s.repo.Insert(ctx, s.db, inv)
	}
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	s.metrics.IncInvoiceCreated(string(inv.Type))
	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("restaurant_id", inv.RestaurantID.String()),
		zap.String("type", string(inv.Type)),
		zap.String("amount", inv.Amount.StringFixed(2)),
	)

	evt := events.New(events.TypeInvoiceCreated, inv.RestaurantID.String(), inv.ID.String(), inv.CreatedAt, map[string]any{
		"type":   inv.Type,
		"amount": inv.Amount.StringFixed(2),
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("publish invoice.created failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}

	return s.view(*inv), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidRequest)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	inv, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if inv == nil {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvoiceNotFound
	}
	return s.view(*inv), nil
}

func (s *Service) GetByToken(ctx context.Context, token string) (*invoicedomain.Invoice, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invoicedomain.ErrInvalidRequest
	}
	inv, err := s.repo.FindByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	restaurantID, err := parseID(req.RestaurantID, invoicedomain.ErrInvalidRestaurant)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	var before snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		before = snowflake.ID(cursor.ID)
	}

	limit := req.Limit()
	items, err := s.repo.ListByRestaurant(ctx, s.db, restaurantID, before, limit+1)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	page, info, err := pagination.Trim(items, limit, func(inv invoicedomain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: inv.ID.Int64(), CreatedAt: inv.CreatedAt.Format(time.RFC3339)}
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	return invoicedomain.ListInvoiceResponse{
		PageInfo: info,
		Invoices: lo.Map(page, func(inv invoicedomain.Invoice, _ int) invoicedomain.InvoiceView { return s.view(inv) }),
	}, nil
}

func (s *Service) FindPendingRenewal(ctx context.Context, restaurantID snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.repo.FindLatestPending(ctx, s.db, restaurantID, invoicedomain.InvoiceTypeRenewal)
}

// Notify sends the payment link. The error is for the caller's log only.
func (s *Service) Notify(ctx context.Context, inv invoicedomain.Invoice) error {
	restaurant, err := s.restaurantRepo.FindByID(ctx, s.db, inv.RestaurantID)
	if err == nil && restaurant == nil {
		err = invoicedomain.ErrRestaurantNotFound
	}
	if err == nil {
		err = s.notifier.Send(ctx, notification.Message{
			To:             restaurant.Email,
			RestaurantName: restaurant.Name,
			PaymentLink:    inv.PaymentLink(s.publicBaseURL),
			Amount:         inv.Amount,
			Currency:       inv.Currency,
			Description:    inv.Description,
			DueDate:        inv.DueDate,
		})
	}
	s.metrics.IncNotification(err)
	return err
}

func (s *Service) loadRestaurant(ctx context.Context, id snowflake.ID) (*restaurantdomain.Restaurant, error) {
	restaurant, err := s.restaurantRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, invoicedomain.ErrRestaurantNotFound
	}
	return restaurant, nil
}

func (s *Service) view(inv invoicedomain.Invoice) invoicedomain.InvoiceView {
	return invoicedomain.InvoiceView{Invoice: inv, PaymentLink: inv.PaymentLink(s.publicBaseURL)}
}

// normalizeDeltas merges repeated locations and rejects non-positive changes.
func normalizeDeltas(deltas []restaurantdomain.LocationDelta) ([]restaurantdomain.LocationDelta, error) {
	if len(deltas) == 0 {
		return nil, invoicedomain.ErrInvalidDelta
	}
	merged := make(map[snowflake.ID]int, len(deltas))
	order := make([]snowflake.ID, 0, len(deltas))
	for _, d := range deltas {
		if d.LocationID == 0 || d.Tables < 1 {
			return nil, invoicedomain.ErrInvalidDelta
		}
		if _, seen := merged[d.LocationID]; !seen {
			order = append(order, d.LocationID)
		}
		merged[d.LocationID] += d.Tables
	}
	return lo.Map(order, func(id snowflake.ID, _ int) restaurantdomain.LocationDelta {
		return restaurantdomain.LocationDelta{LocationID: id, Tables: merged[id]}
	}), nil
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/smallbiznis/tablebill/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateExtraTableRequest struct {
	RestaurantID   string                           `json:"restaurant_id"`
	LocationDeltas []restaurantdomain.LocationDelta `json:"location_deltas" binding:"required,min=1,dive"`
}

type CreateTermRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Months       int    `json:"months" binding:"required,min=1,max=36"`
}

type ListInvoiceRequest struct {
	RestaurantID string
	pagination.Pagination
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []InvoiceView `json:"invoices"`
}

// StatusChange is applied only if the invoice is still in From.
type StatusChange struct {
	From      InvoiceStatus
	To        InvoiceStatus
	PaymentID *string
	PaidAt    *time.Time
	UpdatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*Invoice, error)
	FindLatestPending(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, invoiceType InvoiceType) (*Invoice, error)
	ListByRestaurant(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, beforeID snowflake.ID, limit int) ([]Invoice, error)
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, change StatusChange) (bool, error)
	AttachOrder(ctx context.Context, db *gorm.DB, id snowflake.ID, orderID string, updatedAt time.Time) (bool, error)
}

type Service interface {
	CreateExtraTableInvoice(ctx context.Context, req CreateExtraTableRequest) (InvoiceView, error)
	CreateRenewalInvoice(ctx context.Context, req CreateTermRequest) (InvoiceView, error)
	CreateExtensionInvoice(ctx context.Context, req CreateTermRequest) (InvoiceView, error)
	GetByID(ctx context.Context, id string) (InvoiceView, error)
	GetByToken(ctx context.Context, token string) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	FindPendingRenewal(ctx context.Context, restaurantID snowflake.ID) (*Invoice, error)
	Notify(ctx context.Context, inv Invoice) error
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidRestaurant  = errors.New("invalid_restaurant")
	ErrRestaurantNotFound = errors.New("restaurant_not_found")
	ErrNoBillableTables   = errors.New("no_billable_tables")
	ErrInvalidMonths      = errors.New("invalid_months")
	ErrInvalidDelta       = errors.New("invalid_location_delta")
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvalidMetadata    = errors.New("invalid_invoice_metadata")
)

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/invoice/domain"
	"gorm.io/gorm"
)

const invoiceColumns = `id, restaurant_id, type, amount, currency, tables_added, months_added, prorated_days,
	status, payment_link_token, razorpay_order_id, razorpay_payment_id, due_date, paid_at,
	description, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.RestaurantID,
		inv.Type,
		inv.Amount,
		inv.Currency,
		inv.TablesAdded,
		inv.MonthsAdded,
		inv.ProratedDays,
		inv.Status,
		inv.PaymentLinkToken,
		inv.RazorpayOrderID,
		inv.RazorpayPaymentID,
		inv.DueDate,
		inv.PaidAt,
		inv.Description,
		inv.Metadata,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Invoice, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, `SELECT `+invoiceColumns+` FROM invoices WHERE payment_link_token = ? LIMIT 1`, token)
}

func (r *repo) FindLatestPending(
	ctx context.Context,
	db *gorm.DB,
	restaurantID snowflake.ID,
	invoiceType domain.InvoiceType,
) (*domain.Invoice, error) {
	return r.findOne(ctx, db,
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE restaurant_id = ? AND type = ? AND status = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		restaurantID, invoiceType, domain.InvoiceStatusPending,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Invoice, error) {
	var item domain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// ListByRestaurant returns newest first. beforeID of zero starts at the top.
func (r *repo) ListByRestaurant(
	ctx context.Context,
	db *gorm.DB,
	restaurantID snowflake.ID,
	beforeID snowflake.ID,
	limit int,
) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE restaurant_id = ?`
	args := []any{restaurantID}
	if beforeID != 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var items []domain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// TransitionStatus is the compare-and-set that guards every move out of
// PENDING. It reports false when another writer got there first.
func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, change domain.StatusChange) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?,
			razorpay_payment_id = COALESCE(?, razorpay_payment_id),
			paid_at = COALESCE(?, paid_at),
			updated_at = ?
		 WHERE id = ? AND status = ?`,
		change.To,
		change.PaymentID,
		change.PaidAt,
		change.UpdatedAt,
		id,
		change.From,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AttachOrder(ctx context.Context, db *gorm.DB, id snowflake.ID, orderID string, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET razorpay_order_id = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND razorpay_order_id IS NULL`,
		orderID,
		updatedAt,
		id,
		domain.InvoiceStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(insertEventSQL(db),
		event.ID,
		event.InvoiceID,
		event.Provider,
		event.OrderID,
		event.PaymentID,
		event.Outcome,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func insertEventSQL(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "mysql" {
		return `INSERT IGNORE INTO payment_events (
			id, invoice_id, provider, order_id, payment_id, outcome, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`
	}
	return `INSERT INTO payment_events (
			id, invoice_id, provider, order_id, payment_id, outcome, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, payment_id, outcome) DO NOTHING`
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.EventRecord, error) {
	var items []domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, provider, order_id, payment_id, outcome, received_at
		 FROM payment_events
		 WHERE invoice_id = ?
		 ORDER BY received_at ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Package billingtest provides in-memory databases and fixtures for billing tests.
package billingtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

const schema = `
CREATE TABLE restaurants (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	price_per_month TEXT NOT NULL DEFAULT '0',
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE restaurant_locations (
	id INTEGER PRIMARY KEY,
	restaurant_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	total_tables INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE invoices (
	id INTEGER PRIMARY KEY,
	restaurant_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	tables_added INTEGER NOT NULL DEFAULT 0,
	months_added INTEGER NOT NULL DEFAULT 0,
	prorated_days INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	payment_link_token TEXT NOT NULL UNIQUE,
	razorpay_order_id TEXT,
	razorpay_payment_id TEXT,
	due_date DATETIME NOT NULL,
	paid_at DATETIME,
	description TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE payment_events (
	id INTEGER PRIMARY KEY,
	invoice_id INTEGER NOT NULL,
	provider TEXT NOT NULL,
	order_id TEXT NOT NULL,
	payment_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	received_at DATETIME NOT NULL,
	UNIQUE (provider, payment_id, outcome)
);
`

// DSN returns a fresh shared-cache in-memory database name.
func DSN() string {
	return fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
}

// Open creates the billing schema on the given dialector. The pool is pinned
// to one connection so concurrent transactions queue instead of failing with
// SQLITE_BUSY.
func Open(t testing.TB, dialector gorm.Dialector) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec(schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

// OpenSQLite opens a new in-memory database with the cgo driver.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	return Open(t, sqlite.Open(DSN()))
}

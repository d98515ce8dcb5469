package billingtest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/tablebill/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/tablebill/internal/payment/repository"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"gorm.io/gorm"
)

// Fixtures seeds and inspects billing rows directly.
type Fixtures struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	t.Helper()
	node, err := snowflake.NewNode(900)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return &Fixtures{db: db, genID: node}
}

func (f *Fixtures) Node() *snowflake.Node { return f.genID }

// Restaurant inserts an active restaurant ending at endDate with one location
// per entry in tables.
func (f *Fixtures) Restaurant(t testing.TB, endDate time.Time, tables ...int) (restaurantdomain.Restaurant, []restaurantdomain.Location) {
	t.Helper()
	now := endDate.AddDate(0, -1, 0)
	r := restaurantdomain.Restaurant{
		ID:            f.genID.Generate(),
		Name:          "Spice Route",
		Email:         "owner@spiceroute.test",
		PricePerMonth: decimal.NewFromInt(0),
		StartDate:     now,
		EndDate:       endDate,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	total := 0
	for _, n := range tables {
		total += n
	}
	r.PricePerMonth = decimal.NewFromInt(int64(total * 50))

	if err := f.db.Exec(
		`INSERT INTO restaurants (id, name, email, price_per_month, start_date, end_date, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Email, r.PricePerMonth, r.StartDate, r.EndDate, r.IsActive, r.CreatedAt, r.UpdatedAt,
	).Error; err != nil {
		t.Fatalf("insert restaurant: %v", err)
	}

	locations := make([]restaurantdomain.Location, 0, len(tables))
	for i, n := range tables {
		loc := restaurantdomain.Location{
			ID:           f.genID.Generate(),
			RestaurantID: r.ID,
			Name:         "Floor " + string(rune('A'+i)),
			TotalTables:  n,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := f.db.Exec(
			`INSERT INTO restaurant_locations (id, restaurant_id, name, total_tables, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			loc.ID, loc.RestaurantID, loc.Name, loc.TotalTables, loc.CreatedAt, loc.UpdatedAt,
		).Error; err != nil {
			t.Fatalf("insert location: %v", err)
		}
		locations = append(locations, loc)
	}
	return r, locations
}

// SetEndDate moves a subscription window, e.g. to simulate expiry.
func (f *Fixtures) SetEndDate(t testing.TB, restaurantID snowflake.ID, endDate time.Time, active bool) {
	t.Helper()
	if err := f.db.Exec(
		`UPDATE restaurants SET end_date = ?, is_active = ? WHERE id = ?`,
		endDate, active, restaurantID,
	).Error; err != nil {
		t.Fatalf("set end date: %v", err)
	}
}

func (f *Fixtures) LoadRestaurant(t testing.TB, id snowflake.ID) restaurantdomain.Restaurant {
	t.Helper()
	var r restaurantdomain.Restaurant
	if err := f.db.WithContext(context.Background()).Raw(
		`SELECT id, name, email, price_per_month, start_date, end_date, is_active, created_at, updated_at
		 FROM restaurants WHERE id = ?`, id,
	).Scan(&r).Error; err != nil {
		t.Fatalf("load restaurant: %v", err)
	}
	return r
}

func (f *Fixtures) TotalTables(t testing.TB, restaurantID snowflake.ID) int {
	t.Helper()
	var total int64
	if err := f.db.Raw(
		`SELECT COALESCE(SUM(total_tables), 0) FROM restaurant_locations WHERE restaurant_id = ?`, restaurantID,
	).Scan(&total).Error; err != nil {
		t.Fatalf("sum tables: %v", err)
	}
	return int(total)
}

func (f *Fixtures) LoadInvoice(t testing.TB, id snowflake.ID) invoicedomain.Invoice {
	t.Helper()
	var inv invoicedomain.Invoice
	if err := f.db.Raw(
		`SELECT id, restaurant_id, type, amount, currency, tables_added, months_added, prorated_days,
			status, payment_link_token, razorpay_order_id, razorpay_payment_id, due_date, paid_at,
			description, metadata, created_at, updated_at
		 FROM invoices WHERE id = ?`, id,
	).Scan(&inv).Error; err != nil {
		t.Fatalf("load invoice: %v", err)
	}
	return inv
}

func (f *Fixtures) CountInvoices(t testing.TB, restaurantID snowflake.ID, status invoicedomain.InvoiceStatus) int {
	t.Helper()
	var n int64
	if err := f.db.Raw(
		`SELECT COUNT(*) FROM invoices WHERE restaurant_id = ? AND status = ?`, restaurantID, status,
	).Scan(&n).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	return int(n)
}

func (f *Fixtures) CountPaymentEvents(t testing.TB, invoiceID snowflake.ID) int {
	t.Helper()
	return len(f.PaymentEvents(t, invoiceID))
}

// PaymentEvents lists recorded gateway callbacks for an invoice, oldest first.
func (f *Fixtures) PaymentEvents(t testing.TB, invoiceID snowflake.ID) []paymentdomain.EventRecord {
	t.Helper()
	items, err := paymentrepo.Provide().ListByInvoice(context.Background(), f.db, invoiceID)
	if err != nil {
		t.Fatalf("list payment events: %v", err)
	}
	return items
}

// AttachOrder sets the gateway order id as a checkout would.
func (f *Fixtures) AttachOrder(t testing.TB, invoiceID snowflake.ID, orderID string) {
	t.Helper()
	if err := f.db.Exec(`UPDATE invoices SET razorpay_order_id = ? WHERE id = ?`, orderID, invoiceID).Error; err != nil {
		t.Fatalf("attach order: %v", err)
	}
}

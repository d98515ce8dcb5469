package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"gorm.io/gorm"
)

const restaurantColumns = `id, name, email, price_per_month, start_date, end_date, is_active, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Restaurant, error) {
	return r.find(ctx, db, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Restaurant, error) {
	return r.find(ctx, db, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = ?`+lockClause(db), id)
}

// lockClause returns the row lock for dialects that have one. SQLite
// serializes writers at the database level.
func lockClause(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ""
	}
	return ` FOR UPDATE`
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, id snowflake.ID) (*domain.Restaurant, error) {
	var item domain.Restaurant
	if err := db.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListLocations(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]domain.Location, error) {
	var items []domain.Location
	err := db.WithContext(ctx).Raw(
		`SELECT id, restaurant_id, name, total_tables, created_at, updated_at
		 FROM restaurant_locations
		 WHERE restaurant_id = ?
		 ORDER BY id ASC`,
		restaurantID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumTables(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (int, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_tables), 0) FROM restaurant_locations WHERE restaurant_id = ?`,
		restaurantID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, item *domain.Restaurant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE restaurants
		 SET price_per_month = ?, end_date = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		item.PricePerMonth,
		item.EndDate,
		item.IsActive,
		item.UpdatedAt,
		item.ID,
	).Error
}

func (r *repo) AddLocationTables(
	ctx context.Context,
	db *gorm.DB,
	restaurantID, locationID snowflake.ID,
	delta int,
	now time.Time,
) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE restaurant_locations
		 SET total_tables = total_tables + ?, updated_at = ?
		 WHERE id = ? AND restaurant_id = ?`,
		delta,
		now,
		locationID,
		restaurantID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrLocationNotFound
	}
	return nil
}

func (r *repo) ListActiveEndingBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Restaurant, error) {
	var items []domain.Restaurant
	err := db.WithContext(ctx).Raw(
		`SELECT `+restaurantColumns+`
		 FROM restaurants
		 WHERE is_active = ? AND end_date >= ? AND end_date < ?
		 ORDER BY end_date ASC, id ASC`,
		true,
		from,
		to,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Package domain holds the restaurant aggregate that billing reads from and
// settles into.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Restaurant embeds its subscription columns directly.
type Restaurant struct {
	ID            snowflake.ID    `json:"id" gorm:"column:id;primaryKey"`
	Name          string          `json:"name" gorm:"column:name"`
	Email         string          `json:"email" gorm:"column:email"`
	PricePerMonth decimal.Decimal `json:"price_per_month" gorm:"column:price_per_month"`
	StartDate     time.Time       `json:"start_date" gorm:"column:start_date"`
	EndDate       time.Time       `json:"end_date" gorm:"column:end_date"`
	IsActive      bool            `json:"is_active" gorm:"column:is_active"`
	CreatedAt     time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Restaurant) TableName() string { return "restaurants" }

// Normalize deactivates a subscription whose end date has passed. It never
// reactivates one; settled renewals and extensions do that.
func (r *Restaurant) Normalize(now time.Time) {
	if now.After(r.EndDate) {
		r.IsActive = false
	}
}

// ExtendFrom moves the end date forward by months counted from base.
func (r *Restaurant) ExtendFrom(base time.Time, months int) {
	r.EndDate = base.AddDate(0, months, 0)
}

type Location struct {
	ID           snowflake.ID `json:"id" gorm:"column:id;primaryKey"`
	RestaurantID snowflake.ID `json:"restaurant_id" gorm:"column:restaurant_id"`
	Name         string       `json:"name" gorm:"column:name"`
	TotalTables  int          `json:"total_tables" gorm:"column:total_tables"`
	CreatedAt    time.Time    `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"column:updated_at"`
}

func (Location) TableName() string { return "restaurant_locations" }

// LocationDelta is a requested change in table count at one location.
type LocationDelta struct {
	LocationID snowflake.ID `json:"location_id"`
	Tables     int          `json:"tables"`
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error)
	ListLocations(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]Location, error)
	SumTables(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (int, error)
	UpdateSubscription(ctx context.Context, db *gorm.DB, r *Restaurant) error
	AddLocationTables(ctx context.Context, db *gorm.DB, restaurantID, locationID snowflake.ID, delta int, now time.Time) error
	ListActiveEndingBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Restaurant, error)
}

type Overview struct {
	Restaurant  Restaurant `json:"restaurant"`
	Locations   []Location `json:"locations"`
	TotalTables int        `json:"total_tables"`
	Plan        string     `json:"plan"`
}

type Service interface {
	Get(ctx context.Context, id string) (Overview, error)
}

var (
	ErrNotFound         = errors.New("restaurant_not_found")
	ErrLocationNotFound = errors.New("location_not_found")
	ErrInvalidID        = errors.New("invalid_restaurant_id")
)

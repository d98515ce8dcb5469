package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/tablebill/internal/billingtest"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/pricing"
	"github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/smallbiznis/tablebill/internal/restaurant/repository"
	"github.com/smallbiznis/tablebill/internal/restaurant/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGet_SumsLocationsIntoPlan(t *testing.T) {
	db := billingtest.OpenSQLite(t)
	fixtures := billingtest.NewFixtures(t, db)
	svc := service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		Repo:    repository.Provide(),
		Pricing: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	small, _ := fixtures.Restaurant(t, end, 1, 2)
	got, err := svc.Get(ctx, small.ID.String())
	require.NoError(t, err)
	assert.Equal(t, small.ID, got.Restaurant.ID)
	assert.Len(t, got.Locations, 2)
	assert.Equal(t, 3, got.TotalTables)
	assert.Equal(t, string(pricing.PlanBasic), got.Plan)

	large, _ := fixtures.Restaurant(t, end, 8, 4)
	got, err = svc.Get(ctx, large.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 12, got.TotalTables)
	assert.Equal(t, string(pricing.PlanPro), got.Plan)
}

func TestGet_RejectsBadAndUnknownIDs(t *testing.T) {
	db := billingtest.OpenSQLite(t)
	svc := service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		Repo:    repository.Provide(),
		Pricing: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})
	ctx := context.Background()

	_, err := svc.Get(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = svc.Get(ctx, "0")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = svc.Get(ctx, "123456789")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

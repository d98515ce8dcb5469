package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/tablebill/internal/config"
	"github.com/smallbiznis/tablebill/internal/pricing"
	"github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Pricing *config.PricingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	pricing *config.PricingConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("restaurant.service"),
		repo:    p.Repo,
		pricing: p.Pricing,
	}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Overview, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || restaurantID == 0 {
		return domain.Overview{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, restaurantID)
	if err != nil {
		return domain.Overview{}, err
	}
	if item == nil {
		return domain.Overview{}, domain.ErrNotFound
	}

	locations, err := s.repo.ListLocations(ctx, s.db, restaurantID)
	if err != nil {
		return domain.Overview{}, err
	}
	total := lo.SumBy(locations, func(l domain.Location) int { return l.TotalTables })

	calc := pricing.NewCalculator(s.pricing.Get())
	return domain.Overview{
		Restaurant:  *item,
		Locations:   locations,
		TotalTables: total,
		Plan:        string(calc.PlanName(total)),
	}, nil
}

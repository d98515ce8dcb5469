package restaurant

import (
	"github.com/smallbiznis/tablebill/internal/restaurant/repository"
	"github.com/smallbiznis/tablebill/internal/restaurant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("restaurant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

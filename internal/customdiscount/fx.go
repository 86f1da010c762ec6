package customdiscount

import (
	"github.com/smallbiznis/eroom/internal/customdiscount/domain"
	"github.com/smallbiznis/eroom/internal/customdiscount/repository"
	"github.com/smallbiznis/eroom/internal/customdiscount/service"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("customdiscount.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) pricingdomain.DiscountLookup { return svc }),
)

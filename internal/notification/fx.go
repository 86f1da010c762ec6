package notification

import (
	"github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/internal/notification/repository"
	"github.com/smallbiznis/eroom/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.Notifier { return svc }),
)

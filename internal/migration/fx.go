package migration

import (
	"context"

	"github.com/smallbiznis/eroom/internal/config"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, notifications notificationdomain.Service, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}

		seeded, err := notifications.SeedTemplates(context.Background())
		if err != nil {
			return err
		}
		log.Info("migrations applied",
			zap.String("db_type", cfg.DBType),
			zap.Int("templates_seeded", seeded),
		)
		return nil
	}),
)

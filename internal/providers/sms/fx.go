package sms

import (
	"github.com/smallbiznis/eroom/internal/config"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

// NewFromConfig picks the gateway. config.Load already downgrades Aligo
// without credentials to the stub.
func NewFromConfig(cfg config.Config, log *zap.Logger) domain.Provider {
	if cfg.SMS.Provider == config.SMSProviderAligo {
		log.Info("sms provider selected", zap.String("provider", "aligo"), zap.Bool("test_mode", cfg.SMS.AligoTestMode))
		return NewAligo(AligoConfig{
			APIKey:   cfg.SMS.AligoAPIKey,
			UserID:   cfg.SMS.AligoUserID,
			Sender:   cfg.SMS.AligoSender,
			Endpoint: cfg.SMS.AligoEndpoint,
			TestMode: cfg.SMS.AligoTestMode,
		})
	}
	log.Info("sms provider selected", zap.String("provider", "stub"))
	return NewStub(log)
}

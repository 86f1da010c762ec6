package sms

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/eroom/internal/audit/masking"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	"go.uber.org/zap"
)

// StubProvider logs instead of sending. It is used when no gateway is configured.
type StubProvider struct {
	log *zap.Logger
}

func NewStub(log *zap.Logger) *StubProvider {
	return &StubProvider{log: log.Named("sms.stub")}
}

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) Send(ctx context.Context, to, content string) (string, error) {
	size, kind := domain.MeasureContent(content)
	p.log.Info("sms stub send",
		zap.String("receiver", masking.MaskPhone(to)),
		zap.Int("bytes", size),
		zap.String("msg_type", string(kind)),
	)
	return "stub_" + ulid.Make().String(), nil
}

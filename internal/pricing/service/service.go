package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/config"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/pricing/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/smallbiznis/eroom/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Policy    *config.PricingPolicyHolder
	Rooms     roomdomain.Provider
	Coupons   coupondomain.Repository
	Discounts domain.DiscountLookup `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	policy    *config.PricingPolicyHolder
	rooms     roomdomain.Provider
	coupons   coupondomain.Repository
	discounts domain.DiscountLookup
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("pricing.service"),
		clock:     p.Clock,
		policy:    p.Policy,
		rooms:     p.Rooms,
		coupons:   p.Coupons,
		discounts: p.Discounts,
	}
}

func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest, strict bool) (*domain.Quote, error) {
	room, err := s.rooms.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodBank
	}
	paymentDay := req.PaymentDay
	if paymentDay == 0 {
		paymentDay = 1
	}

	code := strings.ToUpper(strings.TrimSpace(req.CouponCode))
	var coupon *coupondomain.Coupon
	if code != "" {
		coupon, err = s.coupons.FindByCode(ctx, s.db, code)
		if err != nil {
			return nil, db.Classify(err)
		}
	}

	resolution := ResolveCoupon(code, coupon, room.IsHourly(), req.Months, clock.Today(s.clock), strict)
	switch resolution.Outcome {
	case domain.CouponRejected:
		return nil, errs.BusinessRule(resolution.Err, resolution.Reason)
	case domain.CouponNone:
		if resolution.Err != nil {
			s.log.Info("coupon ignored",
				zap.String("code", code),
				zap.String("room_id", room.ID.String()),
				zap.Error(resolution.Err),
			)
		}
	}

	var applied *coupondomain.Coupon
	if resolution.Outcome == domain.CouponApplied {
		applied = resolution.Coupon
	}

	breakdown, err := ComputeBreakdown(s.policy.Get(), domain.Input{
		Room:          *room,
		Months:        req.Months,
		Hours:         req.Hours,
		Coupon:        applied,
		StartDate:     req.StartDate,
		PaymentDay:    paymentDay,
		PaymentMethod: method,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Quote{Room: room, Breakdown: breakdown, Resolution: resolution}, nil
}

func (s *Service) MonthlyCharge(ctx context.Context, contractID snowflake.ID, breakdown domain.Breakdown, month time.Time) (int64, error) {
	charge := breakdown.RecurringPrice
	if s.discounts == nil {
		return charge, nil
	}
	discount, err := s.discounts.AmountFor(ctx, contractID, month.Format("2006-01"))
	if err != nil {
		return 0, err
	}
	return nonNegative(charge - discount), nil
}

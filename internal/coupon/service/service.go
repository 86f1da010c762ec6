package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	validate *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("coupon.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		validate: validator.New(),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Coupon, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, errs.Validation(err)
	}
	if req.DiscountType == domain.DiscountTypePercentage && req.DiscountValue > 100 {
		return nil, errs.Validation(domain.ErrInvalidCoupon)
	}

	cycle := req.Cycle
	if cycle == "" {
		cycle = domain.CycleOnce
	}
	policy := req.StackPolicy
	if policy == "" {
		policy = domain.StackWithMonthlyPromo
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := time.Now().UTC()
	coupon := &domain.Coupon{
		ID:            s.genID.Generate(),
		Code:          req.Code,
		Name:          req.Name,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Cycle:         cycle,
		StackPolicy:   policy,
		ValidFrom:     dateOnly(req.ValidFrom),
		ValidUntil:    dateOnly(req.ValidUntil),
		MinMonths:     req.MinMonths,
		UsageLimit:    req.UsageLimit,
		IsActive:      active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, coupon); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, errs.Conflict(domain.ErrCouponCodeTaken)
		}
		return nil, db.Classify(err)
	}

	s.log.Info("coupon created",
		zap.String("coupon_id", coupon.ID.String()),
		zap.String("code", coupon.Code),
		zap.String("discount_type", string(coupon.DiscountType)),
		zap.String("stack_policy", string(coupon.StackPolicy)),
	)
	return coupon, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Classify(err)
	}
	if coupon == nil {
		return nil, errs.NotFound(domain.ErrCouponNotFound)
	}
	return coupon, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errs.Validation(domain.ErrInvalidCode)
	}
	coupon, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, db.Classify(err)
	}
	if coupon == nil {
		return nil, errs.NotFound(domain.ErrCouponNotFound)
	}
	return coupon, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, db.Classify(err)
	}
	return coupons, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (*domain.Coupon, error) {
	rows, err := s.repo.SetActive(ctx, s.db, id, active)
	if err != nil {
		return nil, db.Classify(err)
	}
	if rows == 0 {
		return nil, errs.NotFound(domain.ErrCouponNotFound)
	}
	return s.Get(ctx, id)
}

// Delete removes a coupon nobody has used yet; used coupons must be deactivated instead.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coupon, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return db.Classify(err)
		}
		if coupon == nil {
			return errs.NotFound(domain.ErrCouponNotFound)
		}
		rows, err := s.repo.DeleteUnused(ctx, tx, id)
		if err != nil {
			return db.Classify(err)
		}
		if rows == 0 {
			return errs.BusinessRule(domain.ErrCouponInUse, "이미 사용된 쿠폰은 삭제할 수 없습니다. 비활성화를 이용하세요.")
		}
		s.log.Info("coupon deleted", zap.String("coupon_id", id.String()), zap.String("code", coupon.Code))
		return nil
	})
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateRequest struct {
	Code          string       `json:"code" validate:"required,max=64"`
	Name          string       `json:"name" validate:"max=128"`
	DiscountType  DiscountType `json:"discount_type" validate:"required,oneof=fixed percentage"`
	DiscountValue int64        `json:"discount_value" validate:"gt=0"`
	Cycle         Cycle        `json:"discount_cycle" validate:"omitempty,oneof=once monthly"`
	StackPolicy   StackPolicy  `json:"stack_policy" validate:"omitempty,oneof=STACK_WITH_MONTHLY_PROMO EXCLUSIVE"`
	ValidFrom     time.Time    `json:"valid_from" validate:"required"`
	ValidUntil    time.Time    `json:"valid_until" validate:"required,gtefield=ValidFrom"`
	MinMonths     *int         `json:"min_months" validate:"omitempty,gte=1"`
	UsageLimit    *int         `json:"usage_limit" validate:"omitempty,gte=1"`
	IsActive      *bool        `json:"is_active"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Coupon, error)
	Get(ctx context.Context, id snowflake.ID) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) (*Coupon, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

// Repository is the coupon store. FindByCode returns nil, nil when absent.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, coupon *Coupon) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Coupon, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Coupon, error)
	List(ctx context.Context, db *gorm.DB) ([]Coupon, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error)
	// TryConsume increments used_count only while it stays within usage_limit.
	TryConsume(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	DeleteUnused(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}

var (
	ErrInvalidCoupon    = errors.New("invalid_coupon")
	ErrCouponNotFound   = errors.New("coupon_not_found")
	ErrCouponInactive   = errors.New("coupon_inactive")
	ErrCouponNotStarted = errors.New("coupon_not_started")
	ErrCouponExpired    = errors.New("coupon_expired")
	ErrCouponExhausted  = errors.New("coupon_usage_limit_exceeded")
	ErrCouponMinMonths  = errors.New("coupon_min_months_unmet")
	ErrCouponInUse      = errors.New("coupon_in_use")
	ErrCouponCodeTaken  = errors.New("coupon_code_taken")
	ErrInvalidCode      = errors.New("invalid_coupon_code")
)

// Reason renders the tenant-facing message for a coupon rejection.
func Reason(err error, c *Coupon) string {
	switch {
	case errors.Is(err, ErrInvalidCoupon), errors.Is(err, ErrCouponNotFound):
		return "존재하지 않는 쿠폰입니다."
	case errors.Is(err, ErrCouponInactive):
		return "비활성화된 쿠폰입니다."
	case errors.Is(err, ErrCouponNotStarted):
		return "아직 사용 기간이 아닌 쿠폰입니다."
	case errors.Is(err, ErrCouponExpired):
		return "유효기간이 지난 쿠폰입니다."
	case errors.Is(err, ErrCouponExhausted):
		return "선착순 마감된 쿠폰입니다. (사용 한도 초과)"
	case errors.Is(err, ErrCouponMinMonths):
		if c != nil && c.MinMonths != nil {
			return fmt.Sprintf("최소 %d개월 이상 계약 시 사용 가능한 쿠폰입니다.", *c.MinMonths)
		}
		return "계약 기간 조건을 충족하지 않는 쿠폰입니다."
	default:
		return "사용할 수 없는 쿠폰입니다."
	}
}

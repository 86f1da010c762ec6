package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

type Service interface {
	// Quote resolves room and coupon then prices. strict turns an unusable
	// coupon into an error instead of pricing without it.
	Quote(ctx context.Context, req QuoteRequest, strict bool) (*Quote, error)
	// MonthlyCharge is the recurring price for month after custom discounts.
	MonthlyCharge(ctx context.Context, contractID snowflake.ID, breakdown Breakdown, month time.Time) (int64, error)
}

// DiscountLookup returns the ad-hoc discount for a contract month (YYYY-MM), 0 when none.
type DiscountLookup interface {
	AmountFor(ctx context.Context, contractID snowflake.ID, month string) (int64, error)
}

var (
	ErrInvalidMonths        = errors.New("invalid_months")
	ErrInvalidHours         = errors.New("invalid_hours")
	ErrInvalidPaymentDay    = errors.New("invalid_payment_day")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidStartDate     = errors.New("invalid_start_date")
	ErrCouponNotApplicable  = errors.New("coupon_not_applicable")
)

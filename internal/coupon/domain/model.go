package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypePercentage DiscountType = "percentage"
)

type Cycle string

const (
	CycleOnce    Cycle = "once"
	CycleMonthly Cycle = "monthly"
)

type StackPolicy string

const (
	StackWithMonthlyPromo StackPolicy = "STACK_WITH_MONTHLY_PROMO"
	StackExclusive        StackPolicy = "EXCLUSIVE"
)

type Coupon struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Code          string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name          string       `gorm:"type:text" json:"name"`
	DiscountType  DiscountType `gorm:"type:text;not null" json:"discount_type"`
	DiscountValue int64        `gorm:"not null" json:"discount_value"`
	Cycle         Cycle        `gorm:"column:discount_cycle;type:text;not null;default:'once'" json:"discount_cycle"`
	StackPolicy   StackPolicy  `gorm:"type:text;not null;default:'STACK_WITH_MONTHLY_PROMO'" json:"stack_policy"`
	ValidFrom     time.Time    `gorm:"not null" json:"valid_from"`
	ValidUntil    time.Time    `gorm:"not null" json:"valid_until"`
	MinMonths     *int         `json:"min_months,omitempty"`
	UsageLimit    *int         `json:"usage_limit,omitempty"`
	UsedCount     int          `gorm:"not null;default:0" json:"used_count"`
	IsActive      bool         `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (Coupon) TableName() string { return "coupons" }

// Check reports why the coupon cannot be used today for a contract of months.
// Dates compare on calendar days, both ends inclusive.
func (c *Coupon) Check(months int, today time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if today.Before(dateOnly(c.ValidFrom)) {
		return ErrCouponNotStarted
	}
	if today.After(dateOnly(c.ValidUntil)) {
		return ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrCouponExhausted
	}
	if c.MinMonths != nil && months < *c.MinMonths {
		return ErrCouponMinMonths
	}
	return nil
}

// Discount is the amount the coupon takes off base.
func (c *Coupon) Discount(base int64) int64 {
	switch c.DiscountType {
	case DiscountTypePercentage:
		return base * c.DiscountValue / 100
	default:
		return c.DiscountValue
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

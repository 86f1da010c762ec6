package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const MonthLayout = "2006-01"

type UpsertRequest struct {
	ContractID snowflake.ID `json:"-"`
	Month      string       `json:"target_month" validate:"required"`
	Amount     int64        `json:"amount" validate:"gte=0"`
	Reason     string       `json:"reason" validate:"max=255"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*CustomDiscount, error)
	List(ctx context.Context, contractID snowflake.ID) ([]CustomDiscount, error)
	Delete(ctx context.Context, contractID snowflake.ID, month string) error
	// AmountFor is the discount for a contract month, 0 when none is set.
	AmountFor(ctx context.Context, contractID snowflake.ID, month string) (int64, error)
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, discount *CustomDiscount) error
	Find(ctx context.Context, db *gorm.DB, contractID snowflake.ID, month string) (*CustomDiscount, error)
	List(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]*CustomDiscount, error)
	Delete(ctx context.Context, db *gorm.DB, contractID snowflake.ID, month string) (int64, error)
}

var (
	ErrInvalidMonth     = errors.New("invalid_target_month")
	ErrInvalidAmount    = errors.New("invalid_discount_amount")
	ErrDiscountNotFound = errors.New("custom_discount_not_found")
)

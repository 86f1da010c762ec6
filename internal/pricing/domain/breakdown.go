package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
)

type PaymentMethod string

const (
	PaymentMethodBank PaymentMethod = "bank"
	PaymentMethodCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodBank || m == PaymentMethodCard
}

// Breakdown is the frozen price snapshot stored on a contract. All amounts are KRW.
type Breakdown struct {
	BasePrice            int64                    `json:"base_price"`
	MonthlyPromoDiscount int64                    `json:"monthly_promo_discount"`
	CouponDiscount       int64                    `json:"coupon_discount"`
	CouponID             *snowflake.ID            `json:"coupon_id,omitempty"`
	CouponCode           string                   `json:"coupon_code,omitempty"`
	StackPolicy          coupondomain.StackPolicy `json:"stack_policy,omitempty"`
	DiscountCycle        coupondomain.Cycle       `json:"discount_cycle,omitempty"`
	RecurringPrice       int64                    `json:"recurring_price"`
	FirstPeriodPrice     int64                    `json:"first_period_price"`
	ProrationDays        int                      `json:"proration_days"`
	ProrationAdjustment  int64                    `json:"proration_adjustment"`
	InitialPayment       int64                    `json:"initial_payment"`
	VATAmount            int64                    `json:"vat_amount"`
	TotalDue             int64                    `json:"total_due"`
	Deposit              int64                    `json:"deposit"`
	PaymentMethod        PaymentMethod            `json:"payment_method"`
	Months               int                      `json:"months,omitempty"`
	Hours                int                      `json:"hours,omitempty"`
}

// Input is everything the engine needs. Coupon must already be resolved as applicable.
type Input struct {
	Room          roomdomain.Room
	Months        int
	Hours         int
	Coupon        *coupondomain.Coupon
	StartDate     time.Time
	PaymentDay    int
	PaymentMethod PaymentMethod
}

type CouponOutcome int

const (
	CouponNone CouponOutcome = iota
	CouponApplied
	CouponRejected
)

// CouponResolution is the result of checking a supplied code. Rejected only
// appears in strict mode; silent mode folds it into None.
type CouponResolution struct {
	Outcome CouponOutcome
	Coupon  *coupondomain.Coupon
	Err     error
	Reason  string
}

type QuoteRequest struct {
	RoomID        snowflake.ID  `json:"room_id"`
	Months        int           `json:"months"`
	Hours         int           `json:"hours"`
	CouponCode    string        `json:"coupon_code"`
	StartDate     time.Time     `json:"start_date"`
	PaymentDay    int           `json:"payment_day"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type Quote struct {
	Room       *roomdomain.Room
	Breakdown  Breakdown
	Resolution CouponResolution
}

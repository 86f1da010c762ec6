package service

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/smallbiznis/eroom/internal/config"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/pricing/domain"
)

// ComputeBreakdown prices a contract. It has no side effects: the same input
// and policy always give the same breakdown.
func ComputeBreakdown(policy config.PricingPolicy, in domain.Input) (domain.Breakdown, error) {
	if !in.PaymentMethod.Valid() {
		return domain.Breakdown{}, errs.Validation(domain.ErrInvalidPaymentMethod)
	}
	if in.StartDate.IsZero() {
		return domain.Breakdown{}, errs.Validation(domain.ErrInvalidStartDate)
	}
	if in.Room.IsHourly() {
		return computeHourly(policy, in)
	}
	if in.Months < 1 {
		return domain.Breakdown{}, errs.Validation(domain.ErrInvalidMonths)
	}
	if in.PaymentDay < 1 || in.PaymentDay > 31 {
		return domain.Breakdown{}, errs.Validation(domain.ErrInvalidPaymentDay)
	}

	base := in.Room.Price
	promo := policy.PromoFor(in.Months)

	out := domain.Breakdown{
		BasePrice:     base,
		PaymentMethod: in.PaymentMethod,
		Months:        in.Months,
		Deposit:       in.Room.Deposit,
	}

	var couponDiscount int64
	cycle := coupondomain.Cycle("")
	if c := in.Coupon; c != nil {
		couponDiscount = c.Discount(base)
		cycle = c.Cycle
		if c.StackPolicy == coupondomain.StackExclusive {
			promo = 0
		}
		id := c.ID
		out.CouponID = &id
		out.CouponCode = c.Code
		out.StackPolicy = c.StackPolicy
		out.DiscountCycle = c.Cycle
	}

	recurring := base - promo
	if cycle == coupondomain.CycleMonthly {
		recurring -= couponDiscount
	}
	recurring = nonNegative(recurring)

	firstPeriod := recurring
	if cycle == coupondomain.CycleOnce {
		firstPeriod = nonNegative(recurring - couponDiscount)
	}

	days, adjustment := Prorate(in.StartDate, in.PaymentDay, recurring, policy.ProrationUnit)

	initial := recurring + adjustment
	if cycle == coupondomain.CycleOnce {
		initial -= couponDiscount
	}
	initial = nonNegative(initial)

	out.MonthlyPromoDiscount = promo
	out.CouponDiscount = couponDiscount
	out.RecurringPrice = recurring
	out.FirstPeriodPrice = firstPeriod
	out.ProrationDays = days
	out.ProrationAdjustment = adjustment
	out.InitialPayment = initial
	out.TotalDue = ApplyVAT(policy, in.PaymentMethod, initial)
	out.VATAmount = out.TotalDue - initial
	return out, nil
}

func computeHourly(policy config.PricingPolicy, in domain.Input) (domain.Breakdown, error) {
	if in.Hours < 1 {
		return domain.Breakdown{}, errs.Validation(domain.ErrInvalidHours)
	}
	price := in.Room.Price * int64(in.Hours)
	out := domain.Breakdown{
		BasePrice:        in.Room.Price,
		RecurringPrice:   price,
		FirstPeriodPrice: price,
		InitialPayment:   price,
		PaymentMethod:    in.PaymentMethod,
		Hours:            in.Hours,
	}
	out.TotalDue = ApplyVAT(policy, in.PaymentMethod, price)
	out.VATAmount = out.TotalDue - price
	return out, nil
}

// Prorate returns the signed day count from start to the anchor day of the
// start month and the matching adjustment rounded to unit, half away from zero.
// An anchor past the month end is clamped to the last day.
func Prorate(start time.Time, anchorDay int, recurring, unit int64) (int, int64) {
	y, m, d := start.Date()
	dim := DaysIn(y, m)
	anchor := anchorDay
	if anchor > dim {
		anchor = dim
	}
	days := anchor - d
	if unit <= 0 {
		unit = 1
	}
	return days, roundDiv(int64(days)*recurring, int64(dim)*unit) * unit
}

// ApplyVAT multiplies by 1+rate and truncates. Integer basis points keep the
// truncation exact.
func ApplyVAT(policy config.PricingPolicy, method domain.PaymentMethod, amount int64) int64 {
	if method != domain.PaymentMethodCard {
		return amount
	}
	bp := int64(math.Round(policy.VATRate * 10000))
	return amount * (10000 + bp) / 10000
}

// ResolveCoupon decides whether a looked-up coupon is used. coupon is nil when
// the code did not match anything.
func ResolveCoupon(code string, coupon *coupondomain.Coupon, hourly bool, months int, today time.Time, strict bool) domain.CouponResolution {
	if strings.TrimSpace(code) == "" {
		return domain.CouponResolution{Outcome: domain.CouponNone}
	}

	var err error
	switch {
	case coupon == nil:
		err = coupondomain.ErrInvalidCoupon
	case hourly:
		err = domain.ErrCouponNotApplicable
	default:
		err = coupon.Check(months, today)
	}
	if err == nil {
		return domain.CouponResolution{Outcome: domain.CouponApplied, Coupon: coupon}
	}

	// An exhausted coupon is never dropped quietly: the booking would lose a
	// discount the tenant was shown, so both modes reject it.
	if strict || errors.Is(err, coupondomain.ErrCouponExhausted) {
		reason := coupondomain.Reason(err, coupon)
		if errors.Is(err, domain.ErrCouponNotApplicable) {
			reason = "시간제 객실에는 쿠폰을 사용할 수 없습니다."
		}
		return domain.CouponResolution{Outcome: domain.CouponRejected, Coupon: coupon, Err: err, Reason: reason}
	}
	return domain.CouponResolution{Outcome: domain.CouponNone, Coupon: coupon, Err: err}
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// roundDiv divides n by positive d rounding half away from zero.
func roundDiv(n, d int64) int64 {
	if n >= 0 {
		return (2*n + d) / (2 * d)
	}
	return -((-2*n + d) / (2 * d))
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

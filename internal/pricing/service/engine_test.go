package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/config"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/pricing/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthlyRoom(price int64) roomdomain.Room {
	return roomdomain.Room{ID: snowflake.ID(1), Name: "301", Price: price, Deposit: 500000, Type: roomdomain.RoomTypeMonthly}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func TestComputeBreakdown_TwelveMonthsBankProratedToFirst(t *testing.T) {
	policy := config.DefaultPricingPolicy()

	bd, err := ComputeBreakdown(policy, domain.Input{
		Room:          monthlyRoom(500000),
		Months:        12,
		StartDate:     date(2025, time.September, 10),
		PaymentDay:    1,
		PaymentMethod: domain.PaymentMethodBank,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(500000), bd.BasePrice)
	assert.Equal(t, int64(50000), bd.MonthlyPromoDiscount)
	assert.Equal(t, int64(450000), bd.RecurringPrice)
	assert.Equal(t, -9, bd.ProrationDays)
	// -9 days * 450000 / 30 = -135000
	assert.Equal(t, int64(-135000), bd.ProrationAdjustment)
	assert.Equal(t, int64(315000), bd.InitialPayment)
	assert.Equal(t, int64(315000), bd.TotalDue)
	assert.Zero(t, bd.VATAmount)
	assert.Nil(t, bd.CouponID)
}

func TestComputeBreakdown_CardAddsTruncatedVAT(t *testing.T) {
	policy := config.DefaultPricingPolicy()

	bd, err := ComputeBreakdown(policy, domain.Input{
		Room:          monthlyRoom(500000),
		Months:        12,
		StartDate:     date(2025, time.September, 10),
		PaymentDay:    1,
		PaymentMethod: domain.PaymentMethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(315000), bd.InitialPayment)
	assert.Equal(t, int64(346500), bd.TotalDue)
	assert.Equal(t, int64(31500), bd.VATAmount)

	// 12345 * 1.1 = 13579.5 truncates
	assert.Equal(t, int64(13579), ApplyVAT(policy, domain.PaymentMethodCard, 12345))
	assert.Equal(t, int64(12345), ApplyVAT(policy, domain.PaymentMethodBank, 12345))
}

func TestComputeBreakdown_FixedOnceCouponStacksWithPromo(t *testing.T) {
	coupon := &coupondomain.Coupon{
		ID:            snowflake.ID(77),
		Code:          "WELCOME",
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: 20000,
		Cycle:         coupondomain.CycleOnce,
		StackPolicy:   coupondomain.StackWithMonthlyPromo,
	}

	bd, err := ComputeBreakdown(config.DefaultPricingPolicy(), domain.Input{
		Room:          monthlyRoom(500000),
		Months:        6,
		Coupon:        coupon,
		StartDate:     date(2025, time.September, 1),
		PaymentDay:    1,
		PaymentMethod: domain.PaymentMethodBank,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(30000), bd.MonthlyPromoDiscount)
	assert.Equal(t, int64(20000), bd.CouponDiscount)
	assert.Equal(t, int64(470000), bd.RecurringPrice)
	assert.Equal(t, int64(450000), bd.FirstPeriodPrice)
	assert.Equal(t, int64(0), bd.ProrationAdjustment)
	assert.Equal(t, int64(450000), bd.InitialPayment)
	require.NotNil(t, bd.CouponID)
	assert.Equal(t, snowflake.ID(77), *bd.CouponID)
	assert.Equal(t, coupondomain.CycleOnce, bd.DiscountCycle)
}

func TestComputeBreakdown_MonthlyPercentageCouponRecurs(t *testing.T) {
	coupon := &coupondomain.Coupon{
		ID:            snowflake.ID(5),
		DiscountType:  coupondomain.DiscountTypePercentage,
		DiscountValue: 10,
		Cycle:         coupondomain.CycleMonthly,
		StackPolicy:   coupondomain.StackWithMonthlyPromo,
	}

	bd, err := ComputeBreakdown(config.DefaultPricingPolicy(), domain.Input{
		Room:          monthlyRoom(333333),
		Months:        3,
		Coupon:        coupon,
		StartDate:     date(2025, time.October, 1),
		PaymentDay:    1,
		PaymentMethod: domain.PaymentMethodBank,
	})
	require.NoError(t, err)

	// floor(333333 * 10 / 100)
	assert.Equal(t, int64(33333), bd.CouponDiscount)
	assert.Equal(t, int64(333333-20000-33333), bd.RecurringPrice)
	assert.Equal(t, bd.RecurringPrice, bd.FirstPeriodPrice)
	assert.Equal(t, bd.RecurringPrice, bd.InitialPayment)
}

func TestComputeBreakdown_ExclusiveCouponAlwaysZeroesPromo(t *testing.T) {
	coupon := &coupondomain.Coupon{
		ID:            snowflake.ID(9),
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: 10000,
		Cycle:         coupondomain.CycleMonthly,
		StackPolicy:   coupondomain.StackExclusive,
	}

	for months := 1; months <= 24; months++ {
		bd, err := ComputeBreakdown(config.DefaultPricingPolicy(), domain.Input{
			Room:          monthlyRoom(400000),
			Months:        months,
			Coupon:        coupon,
			StartDate:     date(2025, time.March, 1),
			PaymentDay:    1,
			PaymentMethod: domain.PaymentMethodBank,
		})
		require.NoError(t, err)
		assert.Zero(t, bd.MonthlyPromoDiscount, "months=%d", months)
		assert.Equal(t, int64(390000), bd.RecurringPrice, "months=%d", months)
	}
}

func TestComputeBreakdown_PromoTiersAreMonotonic(t *testing.T) {
	policy := config.DefaultPricingPolicy()
	var previous int64
	for months := 1; months <= 24; months++ {
		bd, err := ComputeBreakdown(policy, domain.Input{
			Room:          monthlyRoom(500000),
			Months:        months,
			StartDate:     date(2025, time.January, 1),
			PaymentDay:    1,
			PaymentMethod: domain.PaymentMethodBank,
		})
		require.NoError(t, err)
		assert.Equal(t, bd.BasePrice-policy.PromoFor(months), bd.RecurringPrice)
		assert.GreaterOrEqual(t, bd.MonthlyPromoDiscount, previous, "months=%d", months)
		previous = bd.MonthlyPromoDiscount
	}

	assert.Equal(t, int64(0), policy.PromoFor(2))
	assert.Equal(t, int64(20000), policy.PromoFor(3))
	assert.Equal(t, int64(30000), policy.PromoFor(6))
	assert.Equal(t, int64(50000), policy.PromoFor(12))
}

func TestComputeBreakdown_OnceCouponAppliedAfterProration(t *testing.T) {
	coupon := &coupondomain.Coupon{
		ID:            snowflake.ID(3),
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: 20000,
		Cycle:         coupondomain.CycleOnce,
		StackPolicy:   coupondomain.StackWithMonthlyPromo,
	}

	bd, err := ComputeBreakdown(config.DefaultPricingPolicy(), domain.Input{
		Room:          monthlyRoom(500000),
		Months:        6,
		Coupon:        coupon,
		StartDate:     date(2025, time.September, 2),
		PaymentDay:    1,
		PaymentMethod: domain.PaymentMethodBank,
	})
	require.NoError(t, err)

	// -1 * 470000 / 30 = -15666.7 rounds to -16000
	assert.Equal(t, int64(-16000), bd.ProrationAdjustment)
	assert.Equal(t, int64(470000-16000-20000), bd.InitialPayment)
}

func TestProrate_ClampsAnchorToMonthEnd(t *testing.T) {
	days, adj := Prorate(date(2025, time.February, 10), 31, 280000, 1000)
	assert.Equal(t, 18, days)
	assert.Equal(t, int64(180000), adj)

	days, adj = Prorate(date(2025, time.April, 30), 31, 300000, 1000)
	assert.Equal(t, 0, days)
	assert.Zero(t, adj)
}

func TestRoundDiv_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(2), roundDiv(1500, 1000))
	assert.Equal(t, int64(-2), roundDiv(-1500, 1000))
	assert.Equal(t, int64(1), roundDiv(1499, 1000))
	assert.Equal(t, int64(-1), roundDiv(-1499, 1000))
	assert.Equal(t, int64(0), roundDiv(0, 1000))
}

func TestComputeBreakdown_HourlyRoom(t *testing.T) {
	room := roomdomain.Room{ID: snowflake.ID(2), Price: 15000, Deposit: 100000, Type: roomdomain.RoomTypeTimeBased}

	bd, err := ComputeBreakdown(config.DefaultPricingPolicy(), domain.Input{
		Room:          room,
		Hours:         4,
		StartDate:     date(2025, time.May, 20),
		PaymentMethod: domain.PaymentMethodBank,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(60000), bd.TotalDue)
	assert.Zero(t, bd.Deposit)
	assert.Zero(t, bd.MonthlyPromoDiscount)
	assert.Zero(t, bd.ProrationAdjustment)
	assert.Equal(t, 4, bd.Hours)
}

func TestComputeBreakdown_RejectsBadInput(t *testing.T) {
	base := domain.Input{
		Room:          monthlyRoom(500000),
		Months:        1,
		StartDate:     date(2025, time.May, 1),
		PaymentDay:    1,
		PaymentMethod: domain.PaymentMethodBank,
	}

	cases := []struct {
		name   string
		mutate func(in *domain.Input)
		want   error
	}{
		{name: "months", mutate: func(in *domain.Input) { in.Months = 0 }, want: domain.ErrInvalidMonths},
		{name: "payment_day", mutate: func(in *domain.Input) { in.PaymentDay = 32 }, want: domain.ErrInvalidPaymentDay},
		{name: "method", mutate: func(in *domain.Input) { in.PaymentMethod = "cash" }, want: domain.ErrInvalidPaymentMethod},
		{name: "start", mutate: func(in *domain.Input) { in.StartDate = time.Time{} }, want: domain.ErrInvalidStartDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := ComputeBreakdown(config.DefaultPricingPolicy(), in)
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestResolveCoupon_StrictAndSilentModes(t *testing.T) {
	today := date(2025, time.June, 15)
	valid := &coupondomain.Coupon{
		Code:       "OK",
		IsActive:   true,
		ValidFrom:  date(2025, time.January, 1),
		ValidUntil: date(2025, time.December, 31),
		MinMonths:  intPtr(3),
	}
	expired := *valid
	expired.ValidUntil = date(2025, time.June, 14)
	exhausted := *valid
	exhausted.UsageLimit = intPtr(1)
	exhausted.UsedCount = 1

	t.Run("no code", func(t *testing.T) {
		res := ResolveCoupon("", nil, false, 6, today, true)
		assert.Equal(t, domain.CouponNone, res.Outcome)
	})
	t.Run("applied", func(t *testing.T) {
		res := ResolveCoupon("OK", valid, false, 6, today, true)
		assert.Equal(t, domain.CouponApplied, res.Outcome)
	})
	t.Run("unknown code strict", func(t *testing.T) {
		res := ResolveCoupon("NOPE", nil, false, 6, today, true)
		assert.Equal(t, domain.CouponRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, coupondomain.ErrInvalidCoupon)
	})
	t.Run("unknown code silent", func(t *testing.T) {
		res := ResolveCoupon("NOPE", nil, false, 6, today, false)
		assert.Equal(t, domain.CouponNone, res.Outcome)
	})
	t.Run("expired strict", func(t *testing.T) {
		res := ResolveCoupon("OK", &expired, false, 6, today, true)
		assert.Equal(t, domain.CouponRejected, res.Outcome)
		assert.Equal(t, "유효기간이 지난 쿠폰입니다.", res.Reason)
	})
	t.Run("expired silent", func(t *testing.T) {
		res := ResolveCoupon("OK", &expired, false, 6, today, false)
		assert.Equal(t, domain.CouponNone, res.Outcome)
		assert.ErrorIs(t, res.Err, coupondomain.ErrCouponExpired)
	})
	t.Run("min months silent", func(t *testing.T) {
		res := ResolveCoupon("OK", valid, false, 2, today, false)
		assert.Equal(t, domain.CouponNone, res.Outcome)
	})
	t.Run("exhausted rejected in both modes", func(t *testing.T) {
		for _, strict := range []bool{true, false} {
			res := ResolveCoupon("OK", &exhausted, false, 6, today, strict)
			assert.Equal(t, domain.CouponRejected, res.Outcome)
			assert.Contains(t, res.Reason, "사용 한도 초과")
		}
	})
	t.Run("hourly room strict", func(t *testing.T) {
		res := ResolveCoupon("OK", valid, true, 0, today, true)
		assert.Equal(t, domain.CouponRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, domain.ErrCouponNotApplicable)
	})
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/config"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	couponrepo "github.com/smallbiznis/eroom/internal/coupon/repository"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/pricing/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	roomrepo "github.com/smallbiznis/eroom/internal/room/repository"
	roomservice "github.com/smallbiznis/eroom/internal/room/service"
	"github.com/smallbiznis/eroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type quoteFixture struct {
	svc     domain.Service
	db      *gorm.DB
	clock   *clock.FakeClock
	room    roomdomain.Room
	hourly  roomdomain.Room
	coupons coupondomain.Repository
}

type fixedDiscounts map[string]int64

func (f fixedDiscounts) AmountFor(_ context.Context, _ snowflake.ID, month string) (int64, error) {
	return f[month], nil
}

func newQuoteFixture(t *testing.T, discounts domain.DiscountLookup) *quoteFixture {
	t.Helper()
	db := testutil.OpenDB(t, &roomdomain.Room{}, &coupondomain.Coupon{})
	policy, err := config.NewStaticPricingPolicy(config.DefaultPricingPolicy())
	require.NoError(t, err)

	f := &quoteFixture{
		db:      db,
		clock:   clock.NewFakeClock(time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC)),
		room:    roomdomain.Room{ID: 100, BranchName: "강남점", Name: "301", Price: 500000, Deposit: 500000, Type: roomdomain.RoomTypeMonthly, Status: roomdomain.RoomStatusAvailable},
		hourly:  roomdomain.Room{ID: 200, BranchName: "강남점", Name: "라운지", Price: 15000, Type: roomdomain.RoomTypeTimeBased, Status: roomdomain.RoomStatusAvailable},
		coupons: couponrepo.Provide(),
	}
	rooms := roomrepo.Provide()
	require.NoError(t, rooms.Insert(context.Background(), db, &f.room))
	require.NoError(t, rooms.Insert(context.Background(), db, &f.hourly))

	f.svc = NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     f.clock,
		Policy:    policy,
		Rooms:     roomservice.NewService(roomservice.Params{DB: db, Log: zap.NewNop(), Repo: rooms}),
		Coupons:   f.coupons,
		Discounts: discounts,
	})
	return f
}

func (f *quoteFixture) addCoupon(t *testing.T, c coupondomain.Coupon) coupondomain.Coupon {
	t.Helper()
	if c.ValidFrom.IsZero() {
		c.ValidFrom = date(2025, time.January, 1)
	}
	if c.ValidUntil.IsZero() {
		c.ValidUntil = date(2025, time.December, 31)
	}
	if c.Cycle == "" {
		c.Cycle = coupondomain.CycleOnce
	}
	if c.StackPolicy == "" {
		c.StackPolicy = coupondomain.StackWithMonthlyPromo
	}
	require.NoError(t, f.coupons.Insert(context.Background(), f.db, &c))
	return c
}

func (f *quoteFixture) request(code string) domain.QuoteRequest {
	return domain.QuoteRequest{
		RoomID:     f.room.ID,
		Months:     12,
		CouponCode: code,
		StartDate:  date(2025, time.September, 10),
		PaymentDay: 1,
	}
}

func TestQuote_DefaultsToBankWithoutCoupon(t *testing.T) {
	f := newQuoteFixture(t, nil)

	req := f.request("")
	req.PaymentDay = 0
	req.StartDate = date(2025, time.September, 1)

	q, err := f.svc.Quote(context.Background(), req, false)
	require.NoError(t, err)

	assert.Equal(t, domain.CouponNone, q.Resolution.Outcome)
	assert.Equal(t, domain.PaymentMethodBank, q.Breakdown.PaymentMethod)
	assert.Equal(t, int64(450000), q.Breakdown.RecurringPrice)
	assert.Zero(t, q.Breakdown.ProrationDays)
	assert.Equal(t, int64(450000), q.Breakdown.TotalDue)
	assert.Equal(t, int64(500000), q.Breakdown.Deposit)
}

func TestQuote_AppliesValidCouponCaseInsensitive(t *testing.T) {
	f := newQuoteFixture(t, nil)
	c := f.addCoupon(t, coupondomain.Coupon{ID: 1, Code: "WELCOME", DiscountType: coupondomain.DiscountTypeFixed, DiscountValue: 20000, IsActive: true})

	q, err := f.svc.Quote(context.Background(), f.request(" welcome "), true)
	require.NoError(t, err)

	assert.Equal(t, domain.CouponApplied, q.Resolution.Outcome)
	require.NotNil(t, q.Breakdown.CouponID)
	assert.Equal(t, c.ID, *q.Breakdown.CouponID)
	assert.Equal(t, int64(20000), q.Breakdown.CouponDiscount)
	// 315000 prorated initial payment less the once-off coupon
	assert.Equal(t, int64(295000), q.Breakdown.TotalDue)
}

func TestQuote_StrictRejectsWithReason(t *testing.T) {
	f := newQuoteFixture(t, nil)
	f.addCoupon(t, coupondomain.Coupon{ID: 1, Code: "LONGSTAY", DiscountType: coupondomain.DiscountTypeFixed, DiscountValue: 30000, MinMonths: intPtr(24), IsActive: true})
	f.addCoupon(t, coupondomain.Coupon{ID: 2, Code: "OLD", DiscountType: coupondomain.DiscountTypeFixed, DiscountValue: 10000, ValidUntil: date(2025, time.August, 31), IsActive: true})

	cases := []struct {
		code   string
		target error
		reason string
	}{
		{"LONGSTAY", coupondomain.ErrCouponMinMonths, "최소 24개월 이상 계약 시 사용 가능한 쿠폰입니다."},
		{"OLD", coupondomain.ErrCouponExpired, "유효기간이 지난 쿠폰입니다."},
		{"NOPE", coupondomain.ErrInvalidCoupon, "존재하지 않는 쿠폰입니다."},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			_, err := f.svc.Quote(context.Background(), f.request(tc.code), true)
			require.ErrorIs(t, err, tc.target)
			assert.ErrorIs(t, err, errs.ErrBusinessRule)
			assert.Equal(t, tc.reason, errs.Reason(err))
		})
	}
}

func TestQuote_SilentDropsInapplicableCoupon(t *testing.T) {
	f := newQuoteFixture(t, nil)
	f.addCoupon(t, coupondomain.Coupon{ID: 1, Code: "LONGSTAY", DiscountType: coupondomain.DiscountTypeFixed, DiscountValue: 30000, MinMonths: intPtr(24), IsActive: true})

	q, err := f.svc.Quote(context.Background(), f.request("LONGSTAY"), false)
	require.NoError(t, err)

	assert.Equal(t, domain.CouponNone, q.Resolution.Outcome)
	assert.ErrorIs(t, q.Resolution.Err, coupondomain.ErrCouponMinMonths)
	assert.Nil(t, q.Breakdown.CouponID)
	assert.Zero(t, q.Breakdown.CouponDiscount)
	assert.Equal(t, int64(315000), q.Breakdown.TotalDue)
}

func TestQuote_ExhaustedCouponRejectedInBothModes(t *testing.T) {
	f := newQuoteFixture(t, nil)
	f.addCoupon(t, coupondomain.Coupon{ID: 1, Code: "FIRST10", DiscountType: coupondomain.DiscountTypeFixed, DiscountValue: 10000, UsageLimit: intPtr(10), UsedCount: 10, IsActive: true})

	for _, strict := range []bool{true, false} {
		_, err := f.svc.Quote(context.Background(), f.request("FIRST10"), strict)
		require.ErrorIs(t, err, coupondomain.ErrCouponExhausted)
		assert.Contains(t, errs.Reason(err), "사용 한도 초과")
	}
}

func TestQuote_IsIdempotentAndConsumesNothing(t *testing.T) {
	f := newQuoteFixture(t, nil)
	c := f.addCoupon(t, coupondomain.Coupon{ID: 1, Code: "FIRST10", DiscountType: coupondomain.DiscountTypePercentage, DiscountValue: 10, Cycle: coupondomain.CycleMonthly, UsageLimit: intPtr(10), UsedCount: 9, IsActive: true})

	req := f.request("FIRST10")
	req.PaymentMethod = domain.PaymentMethodCard

	first, err := f.svc.Quote(context.Background(), req, true)
	require.NoError(t, err)
	second, err := f.svc.Quote(context.Background(), req, true)
	require.NoError(t, err)

	assert.Equal(t, first.Breakdown, second.Breakdown)

	stored, err := f.coupons.FindByID(context.Background(), f.db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, stored.UsedCount)
}

func TestQuote_HourlyRoomRejectsCoupon(t *testing.T) {
	f := newQuoteFixture(t, nil)
	f.addCoupon(t, coupondomain.Coupon{ID: 1, Code: "WELCOME", DiscountType: coupondomain.DiscountTypeFixed, DiscountValue: 20000, IsActive: true})

	req := domain.QuoteRequest{RoomID: f.hourly.ID, Hours: 3, CouponCode: "WELCOME", StartDate: date(2025, time.September, 10)}

	_, err := f.svc.Quote(context.Background(), req, true)
	require.ErrorIs(t, err, domain.ErrCouponNotApplicable)
	assert.Equal(t, "시간제 객실에는 쿠폰을 사용할 수 없습니다.", errs.Reason(err))

	q, err := f.svc.Quote(context.Background(), req, false)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), q.Breakdown.TotalDue)
	assert.Zero(t, q.Breakdown.Deposit)
}

func TestQuote_UnknownRoom(t *testing.T) {
	f := newQuoteFixture(t, nil)

	req := f.request("")
	req.RoomID = 999

	_, err := f.svc.Quote(context.Background(), req, false)
	require.ErrorIs(t, err, roomdomain.ErrRoomNotFound)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMonthlyCharge_SubtractsCustomDiscount(t *testing.T) {
	f := newQuoteFixture(t, fixedDiscounts{"2025-10": 50000, "2025-11": 900000})
	bd := domain.Breakdown{RecurringPrice: 450000}

	oct, err := f.svc.MonthlyCharge(context.Background(), 1, bd, date(2025, time.October, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(400000), oct)

	nov, err := f.svc.MonthlyCharge(context.Background(), 1, bd, date(2025, time.November, 1))
	require.NoError(t, err)
	assert.Zero(t, nov)

	dec, err := f.svc.MonthlyCharge(context.Background(), 1, bd, date(2025, time.December, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(450000), dec)
}

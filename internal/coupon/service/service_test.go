package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/coupon/repository"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t, &domain.Coupon{})
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Repo:  repository.Provide(),
	})
	return svc, db
}

func validRequest() domain.CreateRequest {
	return domain.CreateRequest{
		Code:          " spring25 ",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 20000,
		ValidFrom:     time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		ValidUntil:    time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreate_AppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	coupon, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "SPRING25", coupon.Code)
	assert.Equal(t, domain.CycleOnce, coupon.Cycle)
	assert.Equal(t, domain.StackWithMonthlyPromo, coupon.StackPolicy)
	assert.True(t, coupon.IsActive)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), coupon.ValidFrom)

	got, err := svc.GetByCode(context.Background(), "spring25")
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, got.ID)
}

func TestCreate_DuplicateCodeConflicts(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrCouponCodeTaken)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestCreate_ValidatesRequest(t *testing.T) {
	svc, _ := newTestService(t)

	req := validRequest()
	req.ValidUntil = req.ValidFrom.Add(-48 * time.Hour)
	req.DiscountType = "bogus"

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, errs.ErrValidation)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := map[string]bool{}
	for _, fe := range verrs {
		fields[fe.Field()] = true
	}
	assert.True(t, fields["DiscountType"])
	assert.True(t, fields["ValidUntil"])
}

func TestCreate_RejectsPercentageOverHundred(t *testing.T) {
	svc, _ := newTestService(t)

	req := validRequest()
	req.DiscountType = domain.DiscountTypePercentage
	req.DiscountValue = 150

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestDelete_RefusesUsedCoupon(t *testing.T) {
	svc, db := newTestService(t)

	coupon, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	ok, err := repository.Provide().TryConsume(context.Background(), db, coupon.ID)
	require.NoError(t, err)
	require.True(t, ok)

	err = svc.Delete(context.Background(), coupon.ID)
	require.ErrorIs(t, err, domain.ErrCouponInUse)
	assert.ErrorIs(t, err, errs.ErrBusinessRule)

	_, err = svc.Get(context.Background(), coupon.ID)
	require.NoError(t, err)
}

func TestDelete_RemovesUnusedCoupon(t *testing.T) {
	svc, _ := newTestService(t)

	coupon, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), coupon.ID))

	_, err = svc.Get(context.Background(), coupon.ID)
	require.ErrorIs(t, err, domain.ErrCouponNotFound)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSetActive(t *testing.T) {
	svc, _ := newTestService(t)

	coupon, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	updated, err := svc.SetActive(context.Background(), coupon.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
}

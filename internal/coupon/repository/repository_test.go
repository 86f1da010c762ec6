package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryConsume_ConcurrentCallsNeverOverrunLimit(t *testing.T) {
	limit := 3
	db := testutil.OpenDB(t, &domain.Coupon{})
	repo := Provide()
	coupon := &domain.Coupon{
		ID:            snowflake.ID(101),
		Code:          "LIMITED",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 10000,
		ValidFrom:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:    time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		UsageLimit:    &limit,
		IsActive:      true,
	}
	require.NoError(t, repo.Insert(context.Background(), db, coupon))

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TryConsume(context.Background(), db, coupon.ID)
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), granted.Load())
	got, err := repo.FindByID(context.Background(), db, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.UsedCount)
}

func TestTryConsume_UnlimitedCouponAlwaysSucceeds(t *testing.T) {
	db := testutil.OpenDB(t, &domain.Coupon{})
	repo := Provide()
	coupon := &domain.Coupon{
		ID:         snowflake.ID(7),
		Code:       "OPEN",
		ValidFrom:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		IsActive:   true,
	}
	require.NoError(t, repo.Insert(context.Background(), db, coupon))

	for i := 0; i < 5; i++ {
		ok, err := repo.TryConsume(context.Background(), db, coupon.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestFindByCode_MissingReturnsNil(t *testing.T) {
	db := testutil.OpenDB(t, &domain.Coupon{})

	got, err := Provide().FindByCode(context.Background(), db, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteUnused_KeepsUsedCoupons(t *testing.T) {
	db := testutil.OpenDB(t, &domain.Coupon{})
	repo := Provide()
	coupon := &domain.Coupon{
		ID:         snowflake.ID(8),
		Code:       "USED",
		ValidFrom:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		IsActive:   true,
	}
	require.NoError(t, repo.Insert(context.Background(), db, coupon))
	ok, err := repo.TryConsume(context.Background(), db, coupon.ID)
	require.NoError(t, err)
	require.True(t, ok)

	rows, err := repo.DeleteUnused(context.Background(), db, coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

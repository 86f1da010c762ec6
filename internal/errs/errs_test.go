package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCouponExpired = errors.New("coupon_expired")

func TestBusinessRuleKeepsSentinelAndReason(t *testing.T) {
	err := BusinessRule(errCouponExpired, "유효기간이 지난 쿠폰입니다.")

	require.ErrorIs(t, err, ErrBusinessRule)
	require.ErrorIs(t, err, errCouponExpired)
	assert.Equal(t, "유효기간이 지난 쿠폰입니다.", Reason(err))
	assert.False(t, IsRetryable(err))
}

func TestReasonSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("create contract: %w", BusinessRule(errCouponExpired, "expired"))

	assert.Equal(t, "expired", Reason(err))
	assert.Equal(t, ErrBusinessRule, Kind(err))
}

func TestTransientIsRetryable(t *testing.T) {
	err := Transient(errors.New("could not obtain lock"))

	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrTransient, Kind(err))
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, NotFound(nil))
	assert.Nil(t, Kind(errors.New("plain")))
}

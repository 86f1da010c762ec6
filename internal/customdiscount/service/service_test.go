package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/eroom/internal/auditcontext"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	contractrepo "github.com/smallbiznis/eroom/internal/contract/repository"
	"github.com/smallbiznis/eroom/internal/customdiscount/domain"
	"github.com/smallbiznis/eroom/internal/customdiscount/repository"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, contractdomain.Contract) {
	t.Helper()
	db := testutil.OpenDB(t, &contractdomain.Contract{}, &domain.CustomDiscount{})
	contracts := contractrepo.Provide()

	contract := contractdomain.Contract{
		ID:         42,
		RoomID:     1,
		TenantName: "김이룸",
		StartDate:  time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		Months:     12,
		Price:      450000,
		PaymentDay: 1,
		Status:     contractdomain.StatusActive,
	}
	require.NoError(t, contracts.Insert(context.Background(), db, &contract))

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     testutil.Node(t),
		Repo:      repository.Provide(),
		Contracts: contracts,
	})
	return svc, db, contract
}

func TestUpsert_ReplacesExistingMonth(t *testing.T) {
	svc, db, contract := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), "admin", "admin-7")

	first, err := svc.Upsert(ctx, domain.UpsertRequest{ContractID: contract.ID, Month: "2025-10", Amount: 50000, Reason: "수리 지연"})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), first.Amount)
	require.NotNil(t, first.AdminID)
	assert.Equal(t, "admin-7", *first.AdminID)

	second, err := svc.Upsert(ctx, domain.UpsertRequest{ContractID: contract.ID, Month: "2025-10", Amount: 70000, Reason: "추가 보상"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(70000), second.Amount)
	assert.Equal(t, "추가 보상", second.Reason)

	var count int64
	require.NoError(t, db.Model(&domain.CustomDiscount{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	amount, err := svc.AmountFor(context.Background(), contract.ID, "2025-10")
	require.NoError(t, err)
	assert.Equal(t, int64(70000), amount)

	amount, err = svc.AmountFor(context.Background(), contract.ID, "2025-11")
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func TestUpsert_Validation(t *testing.T) {
	svc, _, contract := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.UpsertRequest{ContractID: contract.ID, Month: "2025-13", Amount: 1000})
	assert.True(t, errors.Is(err, domain.ErrInvalidMonth))
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.Upsert(ctx, domain.UpsertRequest{ContractID: contract.ID, Month: "2025-10", Amount: -1})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.Upsert(ctx, domain.UpsertRequest{ContractID: 999, Month: "2025-10", Amount: 1000})
	assert.True(t, errors.Is(err, contractdomain.ErrContractNotFound))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestListAndDelete(t *testing.T) {
	svc, _, contract := newTestService(t)
	ctx := context.Background()

	for _, month := range []string{"2025-12", "2025-10", "2025-11"} {
		_, err := svc.Upsert(ctx, domain.UpsertRequest{ContractID: contract.ID, Month: month, Amount: 10000})
		require.NoError(t, err)
	}

	items, err := svc.List(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "2025-10", items[0].TargetMonth)
	assert.Equal(t, "2025-12", items[2].TargetMonth)

	require.NoError(t, svc.Delete(ctx, contract.ID, "2025-11"))
	err = svc.Delete(ctx, contract.ID, "2025-11")
	assert.True(t, errors.Is(err, domain.ErrDiscountNotFound))

	items, err = svc.List(ctx, contract.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = svc.List(ctx, 999)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

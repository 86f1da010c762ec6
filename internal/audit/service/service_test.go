package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/audit/repository"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/testutil"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSink(t *testing.T) (domain.Sink, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t, &domain.StatusHistory{})
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Repo:  repository.Provide(),
	}), db
}

func TestAppend_ResolvesActorFromContext(t *testing.T) {
	sink, db := newSink(t)

	ctx := auditcontext.WithActor(context.Background(), "admin", "42")
	ctx = auditcontext.WithSource(ctx, "admin_api")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	require.NoError(t, sink.Append(ctx, db, domain.Entry{ContractID: 7, OldStatus: "requested", NewStatus: "approved", Reason: "서류 확인"}))

	var rows []domain.StatusHistory
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActorTypeAdmin, rows[0].ActorType)
	require.NotNil(t, rows[0].ActorID)
	assert.Equal(t, "42", *rows[0].ActorID)
	assert.Equal(t, "admin_api", rows[0].Source)
	assert.Equal(t, "approved", rows[0].NewStatus)
	require.NotNil(t, rows[0].IPAddress)
	assert.Nil(t, rows[0].UserAgent)
}

func TestAppend_DefaultsToSystem(t *testing.T) {
	sink, db := newSink(t)

	ctx := auditcontext.WithActor(context.Background(), "robot", "x")
	require.NoError(t, sink.Append(ctx, db, domain.Entry{ContractID: 7, NewStatus: "requested"}))

	var row domain.StatusHistory
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, domain.ActorTypeSystem, row.ActorType)
	assert.Nil(t, row.ActorID)
	assert.Equal(t, "system", row.Source)
	assert.Empty(t, row.OldStatus)
	assert.Nil(t, row.Reason)
}

func TestAppend_RequiresStatusAndContract(t *testing.T) {
	sink, db := newSink(t)

	err := sink.Append(context.Background(), db, domain.Entry{ContractID: 7})
	assert.ErrorIs(t, err, errs.ErrValidation)

	err = sink.Append(context.Background(), db, domain.Entry{NewStatus: "active"})
	assert.ErrorIs(t, err, domain.ErrInvalidContract)
}

func TestAppend_RollsBackWithCallerTransaction(t *testing.T) {
	sink, db := newSink(t)

	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, sink.Append(context.Background(), tx, domain.Entry{ContractID: 7, NewStatus: "active"}))
		return assert.AnError
	})

	var count int64
	require.NoError(t, db.Model(&domain.StatusHistory{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestList_PagesNewestFirst(t *testing.T) {
	sink, db := newSink(t)
	ctx := context.Background()

	statuses := []string{"requested", "approved", "active", "terminate_requested", "terminated"}
	old := ""
	for _, status := range statuses {
		require.NoError(t, sink.Append(ctx, db, domain.Entry{ContractID: 7, OldStatus: old, NewStatus: status}))
		old = status
	}
	require.NoError(t, sink.Append(ctx, db, domain.Entry{ContractID: 8, NewStatus: "requested"}))

	first, err := sink.List(ctx, domain.ListHistoryRequest{ContractID: 7, Pagination: pagination.Pagination{PageSize: 3}})
	require.NoError(t, err)
	require.Len(t, first.History, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, "terminated", first.History[0].NewStatus)
	assert.Equal(t, "active", first.History[2].NewStatus)

	second, err := sink.List(ctx, domain.ListHistoryRequest{ContractID: 7, Pagination: pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.History, 2)
	assert.False(t, second.HasMore)
	assert.Equal(t, "approved", second.History[0].NewStatus)
	assert.Equal(t, "requested", second.History[1].NewStatus)
}

func TestList_RejectsBadToken(t *testing.T) {
	sink, _ := newSink(t)

	_, err := sink.List(context.Background(), domain.ListHistoryRequest{ContractID: 7, Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

package repository

import (
	"context"

	"github.com/smallbiznis/eroom/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, row *domain.StatusHistory) error {
	if row == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO contract_status_history (
			id, contract_id, old_status, new_status, actor_type, actor_id,
			source, reason, request_id, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.ContractID,
		row.OldStatus,
		row.NewStatus,
		row.ActorType,
		row.ActorID,
		row.Source,
		row.Reason,
		row.RequestID,
		row.IPAddress,
		row.UserAgent,
		row.CreatedAt,
	).Error
}

// List returns the newest rows first, one extra row past Limit to signal more pages.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.StatusHistory, error) {
	var rows []*domain.StatusHistory
	stmt := db.WithContext(ctx).Model(&domain.StatusHistory{}).
		Where("contract_id = ?", filter.ContractID)

	if filter.Cursor != nil {
		stmt = stmt.Where("id < ?", filter.Cursor.ID)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/pkg/db/option"
	"github.com/smallbiznis/eroom/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindActiveTemplate(ctx context.Context, db *gorm.DB, eventType domain.EventType) (*domain.Template, error) {
	tmpl, err := r.FindTemplate(ctx, db, eventType)
	if err != nil || tmpl == nil || !tmpl.IsActive {
		return nil, err
	}
	return tmpl, nil
}

func (r *repo) FindTemplate(ctx context.Context, db *gorm.DB, eventType domain.EventType) (*domain.Template, error) {
	return repository.ProvideStore[domain.Template](db).FindOne(ctx, &domain.Template{Type: eventType})
}

func (r *repo) ListTemplates(ctx context.Context, db *gorm.DB) ([]domain.Template, error) {
	items, err := repository.ProvideStore[domain.Template](db).Find(ctx, &domain.Template{}, option.WithOrder("type asc"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Template, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) SaveTemplate(ctx context.Context, db *gorm.DB, tmpl *domain.Template) error {
	tmpl.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Model(tmpl).Select("*").Omit("id", "type", "created_at").Updates(tmpl).Error
}

func (r *repo) InsertTemplateIfMissing(ctx context.Context, db *gorm.DB, tmpl *domain.Template) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "type"}}, DoNothing: true}).
		Create(tmpl)
	return result.RowsAffected > 0, result.Error
}

func (r *repo) ClaimLog(ctx context.Context, db *gorm.DB, entry *domain.Log) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CompleteLog(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.LogStatus, provider, providerMessageID, errorMessage *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sms_logs
		SET status = ?, provider = ?, provider_message_id = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		status,
		provider,
		providerMessageID,
		errorMessage,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ListLogs(ctx context.Context, db *gorm.DB, filter domain.LogFilter) ([]*domain.Log, error) {
	stmt := db.WithContext(ctx).Model(&domain.Log{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ContractID != 0 {
		stmt = stmt.Where("contract_id = ?", filter.ContractID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("id < ?", filter.Cursor.ID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.Log
	if err := stmt.Order("id desc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

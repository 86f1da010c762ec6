package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/coupon/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, coupon *domain.Coupon) error {
	return db.WithContext(ctx).Create(coupon).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Coupon, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Coupon, error) {
	return r.findOne(ctx, db, "code = ?", strings.TrimSpace(code))
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := db.WithContext(ctx).Where(query, arg).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Coupon, error) {
	var coupons []domain.Coupon
	if err := db.WithContext(ctx).Order("created_at desc, id desc").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE coupons SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) TryConsume(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE coupons
		SET used_count = used_count + 1, updated_at = ?
		WHERE id = ? AND is_active = ? AND (usage_limit IS NULL OR used_count < usage_limit)`,
		time.Now().UTC(),
		id,
		true,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) DeleteUnused(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM coupons WHERE id = ? AND used_count = 0`, id)
	return result.RowsAffected, result.Error
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/customdiscount/domain"
	"github.com/smallbiznis/eroom/pkg/db/option"
	"github.com/smallbiznis/eroom/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert inserts the discount or overwrites amount, reason and admin of the
// existing (contract, month) row.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, discount *domain.CustomDiscount) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "target_month"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":     discount.Amount,
			"reason":     discount.Reason,
			"admin_id":   discount.AdminID,
			"updated_at": time.Now().UTC(),
		}),
	}).Create(discount).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, contractID snowflake.ID, month string) (*domain.CustomDiscount, error) {
	return repository.ProvideStore[domain.CustomDiscount](db).FindOne(ctx, &domain.CustomDiscount{
		ContractID:  contractID,
		TargetMonth: month,
	})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]*domain.CustomDiscount, error) {
	return repository.ProvideStore[domain.CustomDiscount](db).Find(ctx,
		&domain.CustomDiscount{ContractID: contractID},
		option.WithOrder("target_month asc"),
	)
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, contractID snowflake.ID, month string) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM contract_custom_discounts WHERE contract_id = ? AND target_month = ?`,
		contractID,
		month,
	)
	return result.RowsAffected, result.Error
}

// Package testing moves contract dates so scheduler jobs can be exercised
// without waiting for real calendar days.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"gorm.io/gorm"
)

type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// ExpireContract moves the end date of an active contract to the day before
// today so the next sweep terminates it.
func (ta *TimeAccelerator) ExpireContract(ctx context.Context, contractID snowflake.ID, today time.Time) error {
	return ta.SetEndDate(ctx, contractID, today.AddDate(0, 0, -1))
}

// ExpireAllActive backdates every active contract ending after today.
func (ta *TimeAccelerator) ExpireAllActive(ctx context.Context, today time.Time) (int64, error) {
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE contracts
		 SET end_date = ?, updated_at = ?
		 WHERE status = ? AND end_date >= ?`,
		today.AddDate(0, 0, -1),
		time.Now().UTC(),
		contractdomain.StatusActive,
		today,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (ta *TimeAccelerator) SetEndDate(ctx context.Context, contractID snowflake.ID, endDate time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE contracts
		 SET end_date = ?, updated_at = ?
		 WHERE id = ?`,
		endDate,
		time.Now().UTC(),
		contractID,
	).Error
}

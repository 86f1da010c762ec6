package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/contract/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Create(contract).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	return r.first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Contract, error) {
	var contract domain.Contract
	if err := stmt.First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}

// Update writes every mutable column of contract.
func (r *repo) Update(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	contract.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Model(contract).Select("*").Omit("id", "created_at").Updates(contract).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	stmt := db.WithContext(ctx).Model(&domain.Contract{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.RoomID != 0 {
		stmt = stmt.Where("room_id = ?", filter.RoomID)
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		stmt = stmt.Where("user_id = ?", userID)
	}
	if filter.Unmapped {
		stmt = stmt.Where("user_id IS NULL")
	}
	if filter.AfterID != 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// ListExpired returns active contracts whose end date is before today.
func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, today time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := db.WithContext(ctx).Model(&domain.Contract{}).
		Where("status = ? AND end_date < ?", domain.StatusActive, today).
		Order("id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListActive pages through active contracts in id order after afterID.
func (r *repo) ListActive(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.Contract, error) {
	var contracts []domain.Contract
	stmt := db.WithContext(ctx).
		Where("status = ? AND id > ?", domain.StatusActive, afterID).
		Order("id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *repo) SetUser(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE contracts SET user_id = ?, updated_at = ? WHERE id = ? AND user_id IS NULL`,
		userID,
		time.Now().UTC(),
		id,
	)
	return result.RowsAffected, result.Error
}

// MapUnmappedByContact assigns userID to every unmapped contract whose stored
// phone or email matches. Empty values never match.
func (r *repo) MapUnmappedByContact(ctx context.Context, db *gorm.DB, userID, phone, email string) (int64, error) {
	conds := make([]string, 0, 2)
	args := []any{userID, time.Now().UTC()}
	if phone != "" {
		conds = append(conds, "tenant_phone = ?")
		args = append(args, phone)
	}
	if email != "" {
		conds = append(conds, "LOWER(tenant_email) = ?")
		args = append(args, strings.ToLower(email))
	}
	if len(conds) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE contracts SET user_id = ?, updated_at = ? WHERE user_id IS NULL AND (`+strings.Join(conds, " OR ")+`)`,
		args...,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertRequest(ctx context.Context, db *gorm.DB, req *domain.ContractRequest) error {
	return db.WithContext(ctx).Create(req).Error
}

func (r *repo) FindRequestForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ContractRequest, error) {
	var req domain.ContractRequest
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *repo) ListRequests(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]domain.ContractRequest, error) {
	var reqs []domain.ContractRequest
	err := db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("id desc").
		Find(&reqs).Error
	return reqs, err
}

func (r *repo) ListOpenRequests(ctx context.Context, db *gorm.DB, contractID snowflake.ID, reqType domain.RequestType) ([]domain.ContractRequest, error) {
	var reqs []domain.ContractRequest
	err := db.WithContext(ctx).
		Where("contract_id = ? AND type = ? AND status IN ?", contractID, reqType,
			[]domain.RequestStatus{domain.RequestStatusPending, domain.RequestStatusApproved}).
		Order("id asc").
		Find(&reqs).Error
	return reqs, err
}

func (r *repo) UpdateRequest(ctx context.Context, db *gorm.DB, req *domain.ContractRequest) error {
	req.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Model(req).Select("*").Omit("id", "created_at").Updates(req).Error
}

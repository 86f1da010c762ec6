package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/customdiscount/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Contracts contractdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	contracts contractdomain.Repository
	validate  *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("customdiscount.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		contracts: p.Contracts,
		validate:  validator.New(),
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.CustomDiscount, error) {
	req.Month = strings.TrimSpace(req.Month)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validate.Struct(req); err != nil {
		return nil, errs.Validation(err)
	}
	month, err := normalizeMonth(req.Month)
	if err != nil {
		return nil, err
	}
	if req.Amount < 0 {
		return nil, errs.Validation(domain.ErrInvalidAmount)
	}

	var saved *domain.CustomDiscount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureContract(ctx, tx, req.ContractID); err != nil {
			return err
		}

		now := time.Now().UTC()
		discount := &domain.CustomDiscount{
			ID:          s.genID.Generate(),
			ContractID:  req.ContractID,
			TargetMonth: month,
			Amount:      req.Amount,
			Reason:      req.Reason,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType != "" && actorID != "" {
			discount.AdminID = &actorID
		}
		if err := s.repo.Upsert(ctx, tx, discount); err != nil {
			return db.Classify(err)
		}

		stored, err := s.repo.Find(ctx, tx, req.ContractID, month)
		if err != nil {
			return db.Classify(err)
		}
		saved = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("custom discount saved",
		zap.String("contract_id", req.ContractID.String()),
		zap.String("target_month", month),
		zap.Int64("amount", req.Amount),
	)
	return saved, nil
}

func (s *Service) List(ctx context.Context, contractID snowflake.ID) ([]domain.CustomDiscount, error) {
	if err := s.ensureContract(ctx, s.db, contractID); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, s.db, contractID)
	if err != nil {
		return nil, db.Classify(err)
	}
	out := make([]domain.CustomDiscount, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, contractID snowflake.ID, month string) error {
	month, err := normalizeMonth(month)
	if err != nil {
		return err
	}
	rows, err := s.repo.Delete(ctx, s.db, contractID, month)
	if err != nil {
		return db.Classify(err)
	}
	if rows == 0 {
		return errs.NotFound(domain.ErrDiscountNotFound)
	}
	s.log.Info("custom discount deleted",
		zap.String("contract_id", contractID.String()),
		zap.String("target_month", month),
	)
	return nil
}

func (s *Service) AmountFor(ctx context.Context, contractID snowflake.ID, month string) (int64, error) {
	month, err := normalizeMonth(month)
	if err != nil {
		return 0, err
	}
	discount, err := s.repo.Find(ctx, s.db, contractID, month)
	if err != nil {
		return 0, db.Classify(err)
	}
	if discount == nil {
		return 0, nil
	}
	return discount.Amount, nil
}

func (s *Service) ensureContract(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	contract, err := s.contracts.FindByID(ctx, tx, id)
	if err != nil {
		return db.Classify(err)
	}
	if contract == nil {
		return errs.NotFound(contractdomain.ErrContractNotFound)
	}
	return nil
}

// normalizeMonth accepts YYYY-MM and rejects anything time.Parse would not
// round-trip, like 2025-13.
func normalizeMonth(month string) (string, error) {
	parsed, err := time.Parse(domain.MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return "", errs.Validation(domain.ErrInvalidMonth)
	}
	return parsed.Format(domain.MonthLayout), nil
}

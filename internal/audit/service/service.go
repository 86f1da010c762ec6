package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/audit/masking"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/pkg/db"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSource = "system"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Sink {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry domain.Entry) error {
	if entry.ContractID == 0 {
		return errs.Validation(domain.ErrInvalidContract)
	}
	newStatus := strings.TrimSpace(entry.NewStatus)
	if newStatus == "" {
		return errs.Validation(domain.ErrInvalidStatus)
	}
	if tx == nil {
		tx = s.db
	}

	actorType, actorID := resolveActor(ctx)
	source := strings.TrimSpace(auditcontext.SourceFromContext(ctx))
	if source == "" {
		source = defaultSource
	}

	row := domain.StatusHistory{
		ID:         s.genID.Generate(),
		ContractID: entry.ContractID,
		OldStatus:  strings.TrimSpace(entry.OldStatus),
		NewStatus:  newStatus,
		ActorType:  actorType,
		ActorID:    actorID,
		Source:     source,
		Reason:     optional(entry.Reason),
		RequestID:  optional(auditcontext.RequestIDFromContext(ctx)),
		IPAddress:  optional(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  optional(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, tx, &row); err != nil {
		s.log.Warn("failed to write status history",
			zap.String("contract_id", entry.ContractID.String()),
			zap.String("new_status", newStatus),
			zap.Error(err),
		)
		return db.Classify(err)
	}

	s.log.Debug("status history appended",
		zap.String("contract_id", entry.ContractID.String()),
		zap.String("old_status", row.OldStatus),
		zap.String("new_status", row.NewStatus),
		zap.String("actor_type", string(row.ActorType)),
		zap.String("actor_id", masking.MaskIdentifier(deref(row.ActorID))),
		zap.String("source", row.Source),
	)
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListHistoryRequest) (domain.ListHistoryResponse, error) {
	if req.ContractID == 0 {
		return domain.ListHistoryResponse{}, errs.Validation(domain.ErrInvalidContract)
	}

	var cursor *domain.HistoryCursor
	after, err := req.After()
	if err != nil {
		return domain.ListHistoryResponse{}, errs.Validation(domain.ErrInvalidPageToken)
	}
	if after != 0 {
		cursor = &domain.HistoryCursor{ID: after}
	}
	pageSize := req.Size(50, 250)

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		ContractID: req.ContractID,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListHistoryResponse{}, db.Classify(err)
	}
	items, pageInfo := pagination.Page(items, pageSize, func(item *domain.StatusHistory) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})

	history := make([]domain.StatusHistory, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		history = append(history, *item)
	}

	return domain.ListHistoryResponse{PageInfo: pageInfo, History: history}, nil
}

// resolveActor falls back to the system actor when the context carries none
// or an unknown type.
func resolveActor(ctx context.Context) (domain.ActorType, *string) {
	ctxType, ctxID := auditcontext.ActorFromContext(ctx)
	actorType := domain.ActorType(strings.ToLower(strings.TrimSpace(ctxType)))
	if !actorType.Valid() {
		return domain.ActorTypeSystem, nil
	}
	return actorType, optional(ctxID)
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
